package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/packmind/internal/cluster"
	"github.com/sells-group/packmind/internal/model"
)

func TestRow_Order(t *testing.T) {
	ctx := model.ContextFeatures{Weekday: 4, IsHoliday: 1, HasWorkEvent: 0, HasGymEvent: 1}
	row := Row(ctx, 2, 1)
	require.Len(t, row, len(Columns))
	assert.Equal(t, []float64{4, 1, 0, 1, 2, 1}, row)
}

func TestBuildRows_OneRowPerItem(t *testing.T) {
	ctx := model.ContextFeatures{Weekday: 0, HasWorkEvent: 1}
	items := []model.Item{
		{ID: 1, Name: "Laptop", Priority: model.PriorityHigh},
		{ID: 2, Name: "Pen", Priority: model.PriorityLow},
		{ID: 3, Name: "Mystery", Priority: model.Priority("???")},
	}
	table := cluster.Fit([]model.ContextFeatures{ctx, {Weekday: 6, HasGymEvent: 1}})

	rows := BuildRows(ctx, items, table)
	require.Len(t, rows, 3)

	clusterID := float64(table.Lookup(ctx))
	assert.Equal(t, []float64{0, 0, 1, 0, 2, clusterID}, rows[0])
	assert.Equal(t, []float64{0, 0, 1, 0, 0, clusterID}, rows[1])
	// Unrecognized priority maps to the medium ordinal.
	assert.Equal(t, []float64{0, 0, 1, 0, 1, clusterID}, rows[2])
}

func TestBuildRows_UnseenContextUsesClusterZero(t *testing.T) {
	table := cluster.Fit([]model.ContextFeatures{
		{Weekday: 0, HasWorkEvent: 1},
		{Weekday: 6, HasGymEvent: 1},
	})
	unseen := model.ContextFeatures{Weekday: 3, IsHoliday: 1}

	rows := BuildRows(unseen, []model.Item{{Priority: model.PriorityMedium}}, table)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.0, rows[0][5])
}

func TestTrainingMatrix(t *testing.T) {
	obs := []model.Observation{
		{Weekday: 0, HasWorkEvent: 1, PriorityOrdinal: 2, Needed: true, Packed: true},
		{Weekday: 0, HasWorkEvent: 1, PriorityOrdinal: 0, Needed: true, Packed: false},
		{Weekday: 6, HasGymEvent: 1, PriorityOrdinal: 1, Needed: false, Packed: false},
	}
	var tuples []model.ContextFeatures
	for _, o := range obs {
		tuples = append(tuples, o.Context())
	}
	table := cluster.Fit(tuples)

	x, need, forget := TrainingMatrix(obs, table)
	require.Len(t, x, 3)

	assert.Equal(t, []bool{true, true, false}, need)
	// Forgotten only when needed and not packed.
	assert.Equal(t, []bool{false, true, false}, forget)

	assert.Equal(t, float64(table.Lookup(obs[0].Context())), x[0][5])
	assert.Equal(t, float64(table.Lookup(obs[2].Context())), x[2][5])
}
