// Package cluster groups distinct day-context tuples into a small number of
// day-type clusters via k-means, producing the lookup table persisted with
// each trained artifact.
package cluster

import (
	"math"
	"math/rand"

	"github.com/sells-group/packmind/internal/model"
)

const (
	// maxClusters caps k; with so few distinct context tuples more than
	// three day types adds nothing.
	maxClusters = 3

	// seed fixes the k-means initialization for reproducible tables.
	seed = 42

	maxIterations = 100
)

// Entry assigns one distinct context tuple to a cluster.
type Entry struct {
	Context model.ContextFeatures `json:"context"`
	Cluster int                   `json:"cluster"`
}

// Table maps distinct day-context tuples to dense cluster ids [0, k).
type Table struct {
	Entries []Entry `json:"entries"`
}

// Fit builds a cluster table from the context tuples of a training set.
// Duplicates are collapsed first. With fewer than 2 distinct tuples every
// tuple gets cluster 0; otherwise k-means runs with k = min(3, distinct).
func Fit(tuples []model.ContextFeatures) *Table {
	distinct := dedupe(tuples)

	table := &Table{Entries: make([]Entry, len(distinct))}
	for i, f := range distinct {
		table.Entries[i] = Entry{Context: f}
	}

	if len(distinct) < 2 {
		return table
	}

	k := maxClusters
	if len(distinct) < k {
		k = len(distinct)
	}

	points := make([][]float64, len(distinct))
	for i, f := range distinct {
		points[i] = f.Vector()
	}

	labels := kmeans(points, k)
	for i, label := range labels {
		table.Entries[i].Cluster = label
	}
	return table
}

// Lookup returns the cluster id for a context tuple by exact match.
// Unseen tuples default to cluster 0; they are common at prediction time
// and must never block scoring.
func (t *Table) Lookup(f model.ContextFeatures) int {
	key := f.Key()
	for _, e := range t.Entries {
		if e.Context.Key() == key {
			return e.Cluster
		}
	}
	return 0
}

// NumClusters returns the number of distinct cluster ids in the table.
func (t *Table) NumClusters() int {
	n := 0
	for _, e := range t.Entries {
		if e.Cluster+1 > n {
			n = e.Cluster + 1
		}
	}
	return n
}

func dedupe(tuples []model.ContextFeatures) []model.ContextFeatures {
	seen := make(map[string]bool, len(tuples))
	var out []model.ContextFeatures
	for _, f := range tuples {
		if seen[f.Key()] {
			continue
		}
		seen[f.Key()] = true
		out = append(out, f)
	}
	return out
}

// kmeans runs Lloyd's algorithm over the raw 4-field vectors. The fields are
// already small integers, so no normalization is applied.
func kmeans(points [][]float64, k int) []int {
	rng := rand.New(rand.NewSource(seed))

	// Initialize centroids at k distinct points.
	perm := rng.Perm(len(points))
	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float64(nil), points[perm[i]]...)
	}

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < maxIterations; iter++ {
		next := make([]int, len(points))
		for i, p := range points {
			next[i] = nearest(p, centroids)
		}
		reseedEmpty(points, centroids, next)

		if equalLabels(next, labels) {
			break
		}
		labels = next
		recompute(points, centroids, labels)
	}
	return labels
}

func equalLabels(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// reseedEmpty moves the point farthest from its centroid into any cluster
// that lost all members, keeping the id range dense.
func reseedEmpty(points [][]float64, centroids [][]float64, labels []int) {
	counts := make([]int, len(centroids))
	for _, l := range labels {
		counts[l]++
	}
	for c := range centroids {
		if counts[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range points {
			if counts[labels[i]] <= 1 {
				continue
			}
			if d := sqDist(p, centroids[labels[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		if far >= 0 {
			counts[labels[far]]--
			labels[far] = c
			counts[c]++
		}
	}
}

func recompute(points [][]float64, centroids [][]float64, labels []int) {
	dims := len(centroids[0])
	for c := range centroids {
		sum := make([]float64, dims)
		n := 0
		for i, p := range points {
			if labels[i] != c {
				continue
			}
			for d, v := range p {
				sum[d] += v
			}
			n++
		}
		if n == 0 {
			continue
		}
		for d := range sum {
			sum[d] /= float64(n)
		}
		centroids[c] = sum
	}
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
