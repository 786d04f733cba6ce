// Package learn implements the two classifier families the prediction
// engine trains: a bagged decision-tree ensemble for need estimation and a
// logistic classifier for forget risk, plus in-sample evaluation metrics.
// Both models serialize to JSON for the artifact store and expose calibrated
// class probabilities rather than hard labels.
package learn

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"
)

const (
	forestSeed   = 42
	maxTreeDepth = 10
)

// Forest is a bagged ensemble of binary decision trees. Each tree is grown
// on a bootstrap sample with sqrt-feature subsampling at every split.
type Forest struct {
	Trees       []*treeNode `json:"trees"`
	NumFeatures int         `json:"num_features"`
}

// treeNode is either an internal split (`feature <= threshold` goes left)
// or a leaf holding the positive-class fraction of its training samples.
type treeNode struct {
	Leaf      bool      `json:"leaf,omitempty"`
	Positive  float64   `json:"positive,omitempty"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

// FitForest grows an ensemble of the given size. The random source is
// fixed-seeded so identical training data yields an identical model.
func FitForest(x [][]float64, y []bool, trees int) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, eris.Errorf("learn: invalid training shape %dx%d", len(x), len(y))
	}
	if trees <= 0 {
		return nil, eris.Errorf("learn: ensemble size must be positive, got %d", trees)
	}

	rng := rand.New(rand.NewSource(forestSeed))
	f := &Forest{
		Trees:       make([]*treeNode, trees),
		NumFeatures: len(x[0]),
	}
	mtry := int(math.Ceil(math.Sqrt(float64(f.NumFeatures))))

	for t := 0; t < trees; t++ {
		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = rng.Intn(len(x))
		}
		f.Trees[t] = growTree(x, y, sample, mtry, 0, rng)
	}
	return f, nil
}

// PredictProba returns the positive-class probability for one feature row,
// averaged over all trees' leaf fractions.
func (f *Forest) PredictProba(row []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.proba(row)
	}
	return sum / float64(len(f.Trees))
}

// Predict returns the hard label at the 0.5 boundary.
func (f *Forest) Predict(row []float64) bool {
	return f.PredictProba(row) >= 0.5
}

func (n *treeNode) proba(row []float64) float64 {
	for !n.Leaf {
		if row[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Positive
}

func growTree(x [][]float64, y []bool, sample []int, mtry, depth int, rng *rand.Rand) *treeNode {
	pos := 0
	for _, i := range sample {
		if y[i] {
			pos++
		}
	}

	if pos == 0 || pos == len(sample) || depth >= maxTreeDepth || len(sample) < 2 {
		return &treeNode{Leaf: true, Positive: float64(pos) / float64(len(sample))}
	}

	feature, threshold, ok := bestSplit(x, y, sample, mtry, rng)
	if !ok {
		return &treeNode{Leaf: true, Positive: float64(pos) / float64(len(sample))}
	}

	var left, right []int
	for _, i := range sample {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      growTree(x, y, left, mtry, depth+1, rng),
		Right:     growTree(x, y, right, mtry, depth+1, rng),
	}
}

// bestSplit scans a random feature subset for the threshold minimizing the
// weighted Gini impurity of the two children.
func bestSplit(x [][]float64, y []bool, sample []int, mtry int, rng *rand.Rand) (int, float64, bool) {
	numFeatures := len(x[sample[0]])
	perm := rng.Perm(numFeatures)
	if mtry > numFeatures {
		mtry = numFeatures
	}

	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := math.Inf(1)

	for _, feature := range perm[:mtry] {
		values := make([]float64, 0, len(sample))
		for _, i := range sample {
			values = append(values, x[i][feature])
		}
		sort.Float64s(values)

		for v := 1; v < len(values); v++ {
			if values[v] == values[v-1] {
				continue
			}
			threshold := (values[v] + values[v-1]) / 2

			var leftN, leftPos, rightN, rightPos int
			for _, i := range sample {
				if x[i][feature] <= threshold {
					leftN++
					if y[i] {
						leftPos++
					}
				} else {
					rightN++
					if y[i] {
						rightPos++
					}
				}
			}

			impurity := weightedGini(leftN, leftPos, rightN, rightPos)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature, bestThreshold = feature, threshold
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func weightedGini(leftN, leftPos, rightN, rightPos int) float64 {
	total := float64(leftN + rightN)
	return float64(leftN)/total*gini(leftN, leftPos) + float64(rightN)/total*gini(rightN, rightPos)
}

func gini(n, pos int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}
