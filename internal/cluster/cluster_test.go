package cluster

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/packmind/internal/model"
)

func ctx(weekday, holiday, work, gym int) model.ContextFeatures {
	return model.ContextFeatures{Weekday: weekday, IsHoliday: holiday, HasWorkEvent: work, HasGymEvent: gym}
}

func TestFit_Empty(t *testing.T) {
	table := Fit(nil)
	assert.Empty(t, table.Entries)
	assert.Equal(t, 0, table.Lookup(ctx(0, 0, 0, 0)))
}

func TestFit_SingleTuple(t *testing.T) {
	table := Fit([]model.ContextFeatures{ctx(1, 0, 1, 0)})
	require.Len(t, table.Entries, 1)
	assert.Equal(t, 0, table.Entries[0].Cluster)
}

func TestFit_CollapsesDuplicates(t *testing.T) {
	// Same tuple from five different dates is still one table row.
	tuples := []model.ContextFeatures{
		ctx(0, 0, 1, 0), ctx(0, 0, 1, 0), ctx(0, 0, 1, 0),
		ctx(0, 0, 1, 0), ctx(0, 0, 1, 0),
	}
	table := Fit(tuples)
	require.Len(t, table.Entries, 1)
	assert.Equal(t, 0, table.Entries[0].Cluster)
}

func TestFit_TwoDistinct(t *testing.T) {
	table := Fit([]model.ContextFeatures{
		ctx(0, 0, 1, 0),
		ctx(6, 1, 0, 1),
	})
	require.Len(t, table.Entries, 2)
	assert.Equal(t, 2, table.NumClusters())
	// Very different tuples land in different clusters.
	assert.NotEqual(t, table.Entries[0].Cluster, table.Entries[1].Cluster)
}

func TestFit_DenseIDs(t *testing.T) {
	tuples := []model.ContextFeatures{
		ctx(0, 0, 1, 0),
		ctx(1, 0, 1, 0),
		ctx(5, 0, 0, 1),
		ctx(6, 1, 0, 0),
		ctx(2, 0, 1, 1),
		ctx(6, 0, 0, 0),
	}
	table := Fit(tuples)
	require.Len(t, table.Entries, 6)
	assert.Equal(t, 3, table.NumClusters())

	seen := make(map[int]bool)
	for _, e := range table.Entries {
		assert.GreaterOrEqual(t, e.Cluster, 0)
		assert.Less(t, e.Cluster, 3)
		seen[e.Cluster] = true
	}
	// Every id in [0, k) is used.
	assert.Len(t, seen, 3)
}

func TestFit_Deterministic(t *testing.T) {
	tuples := []model.ContextFeatures{
		ctx(0, 0, 1, 0), ctx(1, 0, 1, 0), ctx(2, 0, 1, 1),
		ctx(5, 0, 0, 1), ctx(6, 1, 0, 0),
	}

	a := Fit(tuples)
	b := Fit(tuples)
	assert.Equal(t, a.Entries, b.Entries)
}

func TestLookup_UnseenDefaultsToZero(t *testing.T) {
	table := Fit([]model.ContextFeatures{
		ctx(0, 0, 1, 0),
		ctx(5, 0, 0, 1),
		ctx(6, 1, 0, 0),
	})
	assert.Equal(t, 0, table.Lookup(ctx(3, 1, 1, 1)))
}

func TestLookup_ExactMatch(t *testing.T) {
	tuples := []model.ContextFeatures{
		ctx(0, 0, 1, 0),
		ctx(5, 0, 0, 1),
		ctx(6, 1, 0, 0),
	}
	table := Fit(tuples)
	for _, e := range table.Entries {
		assert.Equal(t, e.Cluster, table.Lookup(e.Context))
	}
}

func TestTable_JSONRoundTrip(t *testing.T) {
	table := Fit([]model.ContextFeatures{
		ctx(0, 0, 1, 0),
		ctx(5, 0, 0, 1),
		ctx(6, 1, 0, 0),
	})

	data, err := json.Marshal(table)
	require.NoError(t, err)

	var loaded Table
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, table.Entries, loaded.Entries)
	for _, e := range table.Entries {
		assert.Equal(t, e.Cluster, loaded.Lookup(e.Context))
	}
}
