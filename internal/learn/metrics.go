package learn

import "github.com/sells-group/packmind/internal/model"

// Evaluate computes accuracy, precision, recall and F1 for predicted labels
// against ground truth. Zero denominators yield 0, matching how the metrics
// are reported for degenerate training sets.
func Evaluate(yTrue, yPred []bool) model.Metrics {
	m := model.Metrics{NSamples: len(yTrue)}
	if len(yTrue) == 0 {
		return m
	}

	var tp, fp, fn, correct int
	for i := range yTrue {
		switch {
		case yPred[i] && yTrue[i]:
			tp++
		case yPred[i] && !yTrue[i]:
			fp++
		case !yPred[i] && yTrue[i]:
			fn++
		}
		if yPred[i] == yTrue[i] {
			correct++
		}
	}

	m.Accuracy = float64(correct) / float64(len(yTrue))
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}
