// Package artifact persists trained model bundles per scope: the day-type
// cluster table, the need classifier and the forget classifier, plus the
// scope's training metrics. A scope's artifact only counts as present when
// all three parts exist.
package artifact

import (
	"fmt"

	"github.com/sells-group/packmind/internal/cluster"
	"github.com/sells-group/packmind/internal/learn"
	"github.com/sells-group/packmind/internal/model"
)

// Scope identifies whose model an artifact belongs to: one user's personal
// model, or the single shared global model.
type Scope struct {
	global bool
	userID int64
}

// ScopeUser returns the personal scope for a user.
func ScopeUser(userID int64) Scope {
	return Scope{userID: userID}
}

// ScopeGlobal returns the shared global scope.
func ScopeGlobal() Scope {
	return Scope{global: true}
}

// IsGlobal reports whether this is the shared scope.
func (s Scope) IsGlobal() bool {
	return s.global
}

// UserID returns the owning user for a personal scope, 0 for global.
func (s Scope) UserID() int64 {
	if s.global {
		return 0
	}
	return s.userID
}

// Key returns the stable identifier used in artifact file names.
func (s Scope) Key() string {
	if s.global {
		return "global"
	}
	return fmt.Sprintf("user_%d", s.userID)
}

func (s Scope) String() string {
	if s.global {
		return "global"
	}
	return fmt.Sprintf("personal(%d)", s.userID)
}

// Artifact is the three-part trained bundle for one scope. Training replaces
// it wholesale; prediction treats it as read-only.
type Artifact struct {
	Clusters *cluster.Table
	Need     *learn.Forest
	Forget   *learn.Logistic
}

// Complete reports whether all three parts are present.
func (a *Artifact) Complete() bool {
	return a != nil && a.Clusters != nil && a.Need != nil && a.Forget != nil
}

// Store persists artifacts and metrics per scope.
type Store interface {
	// Exists reports whether a complete artifact is stored for the scope.
	Exists(scope Scope) bool
	// Load reads the scope's artifact. It fails if any part is missing.
	Load(scope Scope) (*Artifact, error)
	// Save writes all three parts of the artifact.
	Save(scope Scope, a *Artifact) error
	// SaveMetrics records the scope's training metrics.
	SaveMetrics(scope Scope, m model.Metrics) error
	// LoadMetrics reads the scope's metrics; ok is false when none exist.
	LoadMetrics(scope Scope) (m model.Metrics, ok bool, err error)
}
