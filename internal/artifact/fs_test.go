package artifact

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/packmind/internal/cluster"
	"github.com/sells-group/packmind/internal/learn"
	"github.com/sells-group/packmind/internal/model"
)

func newTestStore(t *testing.T) *FSStore {
	t.Helper()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func testArtifact(t *testing.T) *Artifact {
	t.Helper()
	x := [][]float64{
		{0, 0, 1, 0, 1, 0},
		{1, 0, 1, 0, 2, 0},
		{5, 0, 0, 1, 0, 1},
		{6, 1, 0, 0, 1, 1},
	}
	y := []bool{true, true, false, false}

	need, err := learn.FitForest(x, y, 10)
	require.NoError(t, err)
	forget, err := learn.FitLogistic(x, y, 200, 0.1)
	require.NoError(t, err)

	table := cluster.Fit([]model.ContextFeatures{
		{Weekday: 0, HasWorkEvent: 1},
		{Weekday: 5, HasGymEvent: 1},
	})
	return &Artifact{Clusters: table, Need: need, Forget: forget}
}

func TestScopeKeys(t *testing.T) {
	assert.Equal(t, "global", ScopeGlobal().Key())
	assert.Equal(t, "user_42", ScopeUser(42).Key())
	assert.True(t, ScopeGlobal().IsGlobal())
	assert.False(t, ScopeUser(42).IsGlobal())
	assert.Equal(t, int64(42), ScopeUser(42).UserID())
}

func TestFSStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	scope := ScopeUser(7)
	a := testArtifact(t)

	assert.False(t, s.Exists(scope))

	require.NoError(t, s.Save(scope, a))
	assert.True(t, s.Exists(scope))

	loaded, err := s.Load(scope)
	require.NoError(t, err)
	require.True(t, loaded.Complete())

	row := []float64{0, 0, 1, 0, 1, 0}
	assert.Equal(t, a.Need.PredictProba(row), loaded.Need.PredictProba(row))
	assert.Equal(t, a.Forget.PredictProba(row), loaded.Forget.PredictProba(row))
	assert.Equal(t, a.Clusters.Entries, loaded.Clusters.Entries)
}

func TestFSStore_ScopesAreIndependent(t *testing.T) {
	s := newTestStore(t)
	a := testArtifact(t)

	require.NoError(t, s.Save(ScopeUser(1), a))
	assert.True(t, s.Exists(ScopeUser(1)))
	assert.False(t, s.Exists(ScopeUser(2)))
	assert.False(t, s.Exists(ScopeGlobal()))
}

func TestFSStore_PartialArtifactDoesNotExist(t *testing.T) {
	s := newTestStore(t)
	scope := ScopeUser(3)
	require.NoError(t, s.Save(scope, testArtifact(t)))

	// Losing any single part makes the whole artifact absent.
	require.NoError(t, os.Remove(s.forgetPath(scope)))
	assert.False(t, s.Exists(scope))

	_, err := s.Load(scope)
	require.Error(t, err)
}

func TestFSStore_RefusesIncompleteSave(t *testing.T) {
	s := newTestStore(t)
	a := testArtifact(t)
	a.Forget = nil

	err := s.Save(ScopeUser(1), a)
	require.Error(t, err)
	assert.False(t, s.Exists(ScopeUser(1)))
}

func TestFSStore_Metrics(t *testing.T) {
	s := newTestStore(t)
	scope := ScopeGlobal()

	_, ok, err := s.LoadMetrics(scope)
	require.NoError(t, err)
	assert.False(t, ok)

	want := model.Metrics{Accuracy: 0.9, Precision: 0.8, Recall: 0.85, F1: 0.82, NSamples: 40}
	require.NoError(t, s.SaveMetrics(scope, want))

	got, ok, err := s.LoadMetrics(scope)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}
