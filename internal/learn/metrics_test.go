package learn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_Empty(t *testing.T) {
	m := Evaluate(nil, nil)
	assert.Equal(t, 0, m.NSamples)
	assert.Equal(t, 0.0, m.Accuracy)
}

func TestEvaluate_Perfect(t *testing.T) {
	y := []bool{true, false, true, false}
	m := Evaluate(y, y)

	assert.Equal(t, 4, m.NSamples)
	assert.Equal(t, 1.0, m.Accuracy)
	assert.Equal(t, 1.0, m.Precision)
	assert.Equal(t, 1.0, m.Recall)
	assert.Equal(t, 1.0, m.F1)
}

func TestEvaluate_Mixed(t *testing.T) {
	yTrue := []bool{true, true, false, false, true}
	yPred := []bool{true, false, true, false, true}
	// tp=2 fp=1 fn=1 tn=1

	m := Evaluate(yTrue, yPred)
	assert.Equal(t, 5, m.NSamples)
	assert.InDelta(t, 0.6, m.Accuracy, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.F1, 1e-9)
}

func TestEvaluate_ZeroDivision(t *testing.T) {
	// No positive predictions and no positive truth: precision/recall/F1
	// report 0 instead of NaN.
	yTrue := []bool{false, false}
	yPred := []bool{false, false}

	m := Evaluate(yTrue, yPred)
	assert.Equal(t, 1.0, m.Accuracy)
	assert.Equal(t, 0.0, m.Precision)
	assert.Equal(t, 0.0, m.Recall)
	assert.Equal(t, 0.0, m.F1)
}
