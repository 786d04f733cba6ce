// Package feature flattens day contexts, items and observations into the
// numeric rows the classifiers consume. Pure transformations only.
package feature

import (
	"github.com/sells-group/packmind/internal/cluster"
	"github.com/sells-group/packmind/internal/model"
)

// Columns is the canonical feature order: the four context fields, the
// ordinal item priority, and the day-type cluster id.
var Columns = []string{"weekday", "is_holiday", "has_work_event", "has_gym_event", "priority", "cluster"}

// Row builds one feature row from a context tuple, an ordinal priority and
// a cluster id.
func Row(ctx model.ContextFeatures, priorityOrdinal, clusterID int) []float64 {
	return []float64{
		float64(ctx.Weekday),
		float64(ctx.IsHoliday),
		float64(ctx.HasWorkEvent),
		float64(ctx.HasGymEvent),
		float64(priorityOrdinal),
		float64(clusterID),
	}
}

// BuildRows produces one feature row per item for a single day context. The
// cluster id is resolved once against the table; a tuple missing from the
// table scores as cluster 0.
func BuildRows(ctx model.ContextFeatures, items []model.Item, table *cluster.Table) [][]float64 {
	clusterID := table.Lookup(ctx)
	rows := make([][]float64, len(items))
	for i, item := range items {
		rows[i] = Row(ctx, item.Priority.Ordinal(), clusterID)
	}
	return rows
}

// TrainingMatrix joins labeled observations with the cluster table into the
// feature matrix plus the need and derived forget targets.
func TrainingMatrix(observations []model.Observation, table *cluster.Table) (x [][]float64, need, forget []bool) {
	x = make([][]float64, len(observations))
	need = make([]bool, len(observations))
	forget = make([]bool, len(observations))
	for i, o := range observations {
		ctx := o.Context()
		x[i] = Row(ctx, o.PriorityOrdinal, table.Lookup(ctx))
		need[i] = o.Needed
		forget[i] = o.Forgot()
	}
	return x, need, forget
}
