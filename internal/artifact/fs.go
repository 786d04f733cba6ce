package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/packmind/internal/cluster"
	"github.com/sells-group/packmind/internal/learn"
	"github.com/sells-group/packmind/internal/model"
)

// FSStore keeps artifacts as JSON files in a directory, one file per part
// per scope. Existence of all three part files means the artifact exists;
// partially written files from a killed process are not guarded against
// beyond that check.
type FSStore struct {
	dir string
}

// NewFSStore creates the directory if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "artifact: create dir %s", dir)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) clustersPath(scope Scope) string {
	return filepath.Join(s.dir, "clusters_"+scope.Key()+".json")
}

func (s *FSStore) needPath(scope Scope) string {
	return filepath.Join(s.dir, "need_"+scope.Key()+".json")
}

func (s *FSStore) forgetPath(scope Scope) string {
	return filepath.Join(s.dir, "forget_"+scope.Key()+".json")
}

func (s *FSStore) metricsPath(scope Scope) string {
	return filepath.Join(s.dir, "metrics_"+scope.Key()+".json")
}

// Exists reports whether all three artifact parts are on disk.
func (s *FSStore) Exists(scope Scope) bool {
	for _, path := range []string{s.clustersPath(scope), s.needPath(scope), s.forgetPath(scope)} {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// Load reads the scope's three-part artifact.
func (s *FSStore) Load(scope Scope) (*Artifact, error) {
	a := &Artifact{
		Clusters: &cluster.Table{},
		Need:     &learn.Forest{},
		Forget:   &learn.Logistic{},
	}
	if err := readJSON(s.clustersPath(scope), a.Clusters); err != nil {
		return nil, err
	}
	if err := readJSON(s.needPath(scope), a.Need); err != nil {
		return nil, err
	}
	if err := readJSON(s.forgetPath(scope), a.Forget); err != nil {
		return nil, err
	}
	return a, nil
}

// Save writes all three parts of the artifact.
func (s *FSStore) Save(scope Scope, a *Artifact) error {
	if !a.Complete() {
		return eris.Errorf("artifact: refusing to save incomplete artifact for %s", scope)
	}
	if err := writeJSON(s.clustersPath(scope), a.Clusters); err != nil {
		return err
	}
	if err := writeJSON(s.needPath(scope), a.Need); err != nil {
		return err
	}
	return writeJSON(s.forgetPath(scope), a.Forget)
}

// SaveMetrics records the scope's training metrics.
func (s *FSStore) SaveMetrics(scope Scope, m model.Metrics) error {
	return writeJSON(s.metricsPath(scope), m)
}

// LoadMetrics reads the scope's metrics; ok is false when none exist.
func (s *FSStore) LoadMetrics(scope Scope) (model.Metrics, bool, error) {
	var m model.Metrics
	err := readJSON(s.metricsPath(scope), &m)
	if os.IsNotExist(eris.Cause(err)) {
		return model.Metrics{}, false, nil
	}
	if err != nil {
		return model.Metrics{}, false, err
	}
	return m, true, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "artifact: read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "artifact: decode %s", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "artifact: encode %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "artifact: write %s", path)
	}
	return nil
}
