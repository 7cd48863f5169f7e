package anomaly

import (
	"errors"
	"math"
	"math/rand"
)

// ErrEmptyMatrix is returned when there are no vectors to score.
var ErrEmptyMatrix = errors.New("anomaly: empty feature matrix")

// Forest is an isolation-forest detector. It is fit per batch and seeded, so
// identical batches produce identical scores. A Forest must not be shared
// across unrelated batches; construct one per run.
type Forest struct {
	Trees      int
	SampleSize int
	Seed       int64
}

// NewForest returns a detector with conventional defaults.
func NewForest(seed int64) *Forest {
	return &Forest{Trees: 100, SampleSize: 256, Seed: seed}
}

type node struct {
	feature int
	split   float64
	left    *node
	right   *node
	size    int
}

// Score fits the forest on the batch matrix and returns one score in [0,1]
// per vector. Higher means more isolated (more anomalous).
func (f *Forest) Score(matrix [][]float64) ([]float64, error) {
	n := len(matrix)
	if n == 0 {
		return nil, ErrEmptyMatrix
	}

	// With a single vector there is nothing to isolate against; score it
	// neutral and let the rule and confidence signals carry the decision.
	if n == 1 {
		return []float64{0}, nil
	}

	rng := rand.New(rand.NewSource(f.Seed))
	sample := f.SampleSize
	if sample > n {
		sample = n
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sample))))

	trees := make([]*node, f.Trees)
	for t := range trees {
		idx := rng.Perm(n)[:sample]
		sub := make([][]float64, sample)
		for i, j := range idx {
			sub[i] = matrix[j]
		}
		trees[t] = buildTree(sub, 0, maxDepth, rng)
	}

	cn := avgPathLength(sample)
	scores := make([]float64, n)
	for i, vec := range matrix {
		var sum float64
		for _, tree := range trees {
			sum += pathLength(tree, vec, 0)
		}
		mean := sum / float64(len(trees))
		score := math.Pow(2, -mean/cn)
		scores[i] = clamp01(score)
	}
	return scores, nil
}

func buildTree(matrix [][]float64, depth, maxDepth int, rng *rand.Rand) *node {
	n := len(matrix)
	if n <= 1 || depth >= maxDepth {
		return &node{size: n}
	}

	dims := len(matrix[0])
	// Pick a feature with spread; give up after a bounded number of draws so
	// constant batches terminate.
	for attempt := 0; attempt < dims; attempt++ {
		feature := rng.Intn(dims)
		lo, hi := matrix[0][feature], matrix[0][feature]
		for _, vec := range matrix[1:] {
			lo = math.Min(lo, vec[feature])
			hi = math.Max(hi, vec[feature])
		}
		if hi <= lo {
			continue
		}

		split := lo + rng.Float64()*(hi-lo)
		var left, right [][]float64
		for _, vec := range matrix {
			if vec[feature] < split {
				left = append(left, vec)
			} else {
				right = append(right, vec)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			continue
		}
		return &node{
			feature: feature,
			split:   split,
			left:    buildTree(left, depth+1, maxDepth, rng),
			right:   buildTree(right, depth+1, maxDepth, rng),
			size:    n,
		}
	}
	return &node{size: n}
}

func pathLength(nd *node, vec []float64, depth int) float64 {
	if nd.left == nil && nd.right == nil {
		return float64(depth) + avgPathLength(nd.size)
	}
	if vec[nd.feature] < nd.split {
		return pathLength(nd.left, vec, depth+1)
	}
	return pathLength(nd.right, vec, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649) - 2*(fn-1)/fn
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
