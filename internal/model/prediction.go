package model

// Prediction is one scored checklist item for a given day context.
type Prediction struct {
	ItemID          int64   `json:"item_id"`
	Name            string  `json:"name"`
	NeedProbability float64 `json:"need_probability"`
	ForgetRisk      float64 `json:"forget_risk"`
	Score           float64 `json:"score"`
}

// Metrics holds in-sample evaluation of a scope's need classifier against
// the training set that fit it. There is no held-out split.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	NSamples  int     `json:"n_samples"`
}
