// Package predictor scores a user's checklist items for a day context. It
// resolves the best available model tier once per request: the user's
// personal model, falling back to the shared global model, falling back to a
// priority-keyed heuristic when neither has been trained.
package predictor

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/packmind/internal/artifact"
	"github.com/sells-group/packmind/internal/feature"
	"github.com/sells-group/packmind/internal/model"
)

// Source names the model tier a prediction came from.
type Source string

const (
	SourcePersonal  Source = "personal"
	SourceGlobal    Source = "global"
	SourceHeuristic Source = "heuristic"
)

// heuristicForgetRisk is the flat forget risk assigned when no trained
// forget classifier is available.
const heuristicForgetRisk = 0.4

// Strategy is a resolved model tier, fixed for the lifetime of one request
// so every item in a checklist is scored by the same tier.
type Strategy struct {
	Source Source
	bundle *artifact.Artifact
}

// Predictor resolves and applies prediction strategies.
type Predictor struct {
	artifacts artifact.Store
	log       *zap.Logger
}

// New creates a Predictor over the artifact store.
func New(artifacts artifact.Store) *Predictor {
	return &Predictor{
		artifacts: artifacts,
		log:       zap.L().With(zap.String("component", "predictor")),
	}
}

// Resolve picks the model tier for a user: personal when a complete personal
// artifact exists, else global, else the heuristic.
func (p *Predictor) Resolve(userID int64) (Strategy, error) {
	for _, candidate := range []struct {
		scope  artifact.Scope
		source Source
	}{
		{artifact.ScopeUser(userID), SourcePersonal},
		{artifact.ScopeGlobal(), SourceGlobal},
	} {
		if !p.artifacts.Exists(candidate.scope) {
			continue
		}
		bundle, err := p.artifacts.Load(candidate.scope)
		if err != nil {
			return Strategy{}, eris.Wrapf(err, "predictor: load %s artifact", candidate.source)
		}
		return Strategy{Source: candidate.source, bundle: bundle}, nil
	}
	p.log.Debug("no trained model, using heuristic", zap.Int64("user_id", userID))
	return Strategy{Source: SourceHeuristic}, nil
}

// Predict scores the given items for the day context and returns them in
// descending score order. Ties keep the input item order.
func (s Strategy) Predict(ctx model.ContextFeatures, items []model.Item) []model.Prediction {
	var predictions []model.Prediction
	if s.bundle.Complete() {
		predictions = s.predictModel(ctx, items)
	} else {
		predictions = predictHeuristic(items)
	}
	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Score > predictions[j].Score
	})
	return predictions
}

func (s Strategy) predictModel(ctx model.ContextFeatures, items []model.Item) []model.Prediction {
	rows := feature.BuildRows(ctx, items, s.bundle.Clusters)
	predictions := make([]model.Prediction, len(items))
	for i, item := range items {
		need := s.bundle.Need.PredictProba(rows[i])
		forget := s.bundle.Forget.PredictProba(rows[i])
		predictions[i] = model.Prediction{
			ItemID:          item.ID,
			Name:            item.Name,
			NeedProbability: need,
			ForgetRisk:      forget,
			// Weight need by forget risk so items the user tends to
			// forget rank above equally-needed items they reliably pack.
			Score: need * (0.7 + 0.3*forget),
		}
	}
	return predictions
}

func predictHeuristic(items []model.Item) []model.Prediction {
	predictions := make([]model.Prediction, len(items))
	for i, item := range items {
		need := item.Priority.HeuristicNeed()
		predictions[i] = model.Prediction{
			ItemID:          item.ID,
			Name:            item.Name,
			NeedProbability: need,
			ForgetRisk:      heuristicForgetRisk,
			Score:           need,
		}
	}
	return predictions
}
