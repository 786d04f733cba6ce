package learn

import (
	"math"

	"github.com/rotisserie/eris"
)

// Logistic is a binary logistic-regression classifier fit by batch gradient
// descent over standardized features. Cheaper than the tree ensemble;
// forget risk is treated as a simple decision boundary.
type Logistic struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Means   []float64 `json:"means"`
	Scales  []float64 `json:"scales"`
}

// FitLogistic fits the classifier. iterations and learningRate fall back to
// 1000 and 0.1 when non-positive.
func FitLogistic(x [][]float64, y []bool, iterations int, learningRate float64) (*Logistic, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, eris.Errorf("learn: invalid training shape %dx%d", len(x), len(y))
	}
	if iterations <= 0 {
		iterations = 1000
	}
	if learningRate <= 0 {
		learningRate = 0.1
	}

	dims := len(x[0])
	m := &Logistic{
		Weights: make([]float64, dims),
		Means:   make([]float64, dims),
		Scales:  make([]float64, dims),
	}
	m.standardizeFrom(x)

	z := make([][]float64, len(x))
	for i, row := range x {
		z[i] = m.standardize(row)
	}

	targets := make([]float64, len(y))
	for i, v := range y {
		if v {
			targets[i] = 1
		}
	}

	n := float64(len(z))
	for iter := 0; iter < iterations; iter++ {
		gradW := make([]float64, dims)
		var gradB float64
		for i, row := range z {
			err := sigmoid(m.raw(row)) - targets[i]
			for d, v := range row {
				gradW[d] += err * v
			}
			gradB += err
		}
		for d := range m.Weights {
			m.Weights[d] -= learningRate * gradW[d] / n
		}
		m.Bias -= learningRate * gradB / n
	}
	return m, nil
}

// PredictProba returns the positive-class probability for one feature row.
func (m *Logistic) PredictProba(row []float64) float64 {
	return sigmoid(m.raw(m.standardize(row)))
}

// Predict returns the hard label at the 0.5 boundary.
func (m *Logistic) Predict(row []float64) bool {
	return m.PredictProba(row) >= 0.5
}

func (m *Logistic) raw(z []float64) float64 {
	s := m.Bias
	for d, v := range z {
		s += m.Weights[d] * v
	}
	return s
}

func (m *Logistic) standardizeFrom(x [][]float64) {
	n := float64(len(x))
	for _, row := range x {
		for d, v := range row {
			m.Means[d] += v
		}
	}
	for d := range m.Means {
		m.Means[d] /= n
	}
	for _, row := range x {
		for d, v := range row {
			diff := v - m.Means[d]
			m.Scales[d] += diff * diff
		}
	}
	for d := range m.Scales {
		m.Scales[d] = math.Sqrt(m.Scales[d] / n)
		if m.Scales[d] == 0 {
			m.Scales[d] = 1
		}
	}
}

func (m *Logistic) standardize(row []float64) []float64 {
	z := make([]float64, len(row))
	for d, v := range row {
		z[d] = (v - m.Means[d]) / m.Scales[d]
	}
	return z
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
