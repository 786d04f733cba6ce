// Package trainer fits the per-scope model bundle: day-type clusters, the
// need classifier and the forget classifier, with in-sample metrics recorded
// alongside. Training is all-or-nothing per scope; a scope whose data cannot
// support a model keeps whatever artifact it had before.
package trainer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/packmind/internal/artifact"
	"github.com/sells-group/packmind/internal/cluster"
	"github.com/sells-group/packmind/internal/config"
	"github.com/sells-group/packmind/internal/feature"
	"github.com/sells-group/packmind/internal/learn"
	"github.com/sells-group/packmind/internal/model"
	"github.com/sells-group/packmind/internal/store"
)

// Trainer runs the training pipeline against the data store and persists
// results to the artifact store.
type Trainer struct {
	store     store.Store
	artifacts artifact.Store
	cfg       config.TrainConfig
	log       *zap.Logger
}

// New creates a Trainer.
func New(st store.Store, artifacts artifact.Store, cfg config.TrainConfig) *Trainer {
	return &Trainer{
		store:     st,
		artifacts: artifacts,
		cfg:       cfg,
		log:       zap.L().With(zap.String("component", "trainer")),
	}
}

// TrainUser fits the personal model for one user. It returns false with a
// nil error when the user's labeled history cannot support a model (no
// labeled rows, or every row carries the same needed label).
func (t *Trainer) TrainUser(ctx context.Context, userID int64) (bool, error) {
	observations, err := t.store.LoadObservations(ctx, userID)
	if err != nil {
		return false, eris.Wrapf(err, "trainer: load observations for user %d", userID)
	}
	return t.fit(artifact.ScopeUser(userID), observations, t.cfg.PersonalTrees)
}

// TrainGlobal fits the shared model over every user's labeled history.
func (t *Trainer) TrainGlobal(ctx context.Context) (bool, error) {
	observations, err := t.store.LoadAllObservations(ctx)
	if err != nil {
		return false, eris.Wrap(err, "trainer: load all observations")
	}
	return t.fit(artifact.ScopeGlobal(), observations, t.cfg.GlobalTrees)
}

func (t *Trainer) fit(scope artifact.Scope, observations []model.Observation, trees int) (bool, error) {
	log := t.log.With(zap.String("scope", scope.String()))

	if len(observations) == 0 {
		log.Info("skipping training, no labeled observations")
		return false, nil
	}
	if singleClass(observations) {
		log.Info("skipping training, needed labels are single-class",
			zap.Int("observations", len(observations)))
		return false, nil
	}

	tuples := make([]model.ContextFeatures, len(observations))
	for i, o := range observations {
		tuples[i] = o.Context()
	}
	clusters := cluster.Fit(tuples)

	x, need, forget := feature.TrainingMatrix(observations, clusters)

	needModel, err := learn.FitForest(x, need, trees)
	if err != nil {
		return false, eris.Wrapf(err, "trainer: fit need classifier %s", scope.Key())
	}
	forgetModel, err := learn.FitLogistic(x, forget, t.cfg.ForgetIterations, t.cfg.ForgetLearningRate)
	if err != nil {
		return false, eris.Wrapf(err, "trainer: fit forget classifier %s", scope.Key())
	}

	// In-sample metrics on the need classifier. Optimistic by construction,
	// but comparable across retrains of the same scope.
	predictions := make([]bool, len(x))
	for i, row := range x {
		predictions[i] = needModel.Predict(row)
	}
	metrics := learn.Evaluate(need, predictions)

	bundle := &artifact.Artifact{Clusters: clusters, Need: needModel, Forget: forgetModel}
	if err := t.artifacts.Save(scope, bundle); err != nil {
		return false, eris.Wrapf(err, "trainer: save artifact %s", scope.Key())
	}
	if err := t.artifacts.SaveMetrics(scope, metrics); err != nil {
		return false, eris.Wrapf(err, "trainer: save metrics %s", scope.Key())
	}

	log.Info("trained model",
		zap.Int("observations", len(observations)),
		zap.Int("clusters", clusters.NumClusters()),
		zap.Int("trees", trees),
		zap.Float64("accuracy", metrics.Accuracy),
		zap.Float64("f1", metrics.F1))
	return true, nil
}

// singleClass reports whether every observation carries the same needed
// label. The need classifier requires both classes.
func singleClass(observations []model.Observation) bool {
	first := observations[0].Needed
	for _, o := range observations[1:] {
		if o.Needed != first {
			return false
		}
	}
	return true
}
