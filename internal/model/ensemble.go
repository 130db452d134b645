package model

import (
	"math"
	"math/rand/v2"
	"sort"

	"irricast/internal/types"
)

// treeNode is one node of a regression tree. Leaves carry the mean target
// value of their partition; internal nodes split on feature <= threshold.
type treeNode struct {
	feature   int
	threshold float64
	value     float64
	left      *treeNode
	right     *treeNode
}

func (n *treeNode) isLeaf() bool { return n.left == nil }

func (n *treeNode) predict(row []float64) float64 {
	for !n.isLeaf() {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// regressionTree greedily splits on the feature/threshold pair minimizing
// within-partition squared error. Split gains are accumulated per feature
// into importance, which the ensembles aggregate.
type regressionTree struct {
	maxDepth       int
	minSamplesLeaf int
	root           *treeNode
	importance     []float64
}

func newRegressionTree(maxDepth int) *regressionTree {
	return &regressionTree{maxDepth: maxDepth, minSamplesLeaf: 1}
}

func (t *regressionTree) fit(x [][]float64, y []float64) {
	t.importance = make([]float64, len(x[0]))
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	t.root = t.build(x, y, idx, 0)
}

func (t *regressionTree) predict(row []float64) float64 {
	return t.root.predict(row)
}

func (t *regressionTree) build(x [][]float64, y []float64, idx []int, depth int) *treeNode {
	node := &treeNode{value: meanAt(y, idx)}
	if depth >= t.maxDepth || len(idx) < 2*t.minSamplesLeaf || len(idx) < 2 {
		return node
	}

	feature, threshold, gain, ok := t.bestSplit(x, y, idx)
	if !ok {
		return node
	}
	t.importance[feature] += gain

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	node.feature = feature
	node.threshold = threshold
	node.left = t.build(x, y, left, depth+1)
	node.right = t.build(x, y, right, depth+1)
	return node
}

// bestSplit scans candidate thresholds (midpoints between consecutive sorted
// feature values) and returns the split with the largest SSE reduction.
func (t *regressionTree) bestSplit(x [][]float64, y []float64, idx []int) (feature int, threshold, gain float64, ok bool) {
	parentSSE := sseAt(y, idx)
	if parentSSE == 0 {
		return 0, 0, 0, false
	}

	order := make([]int, len(idx))
	bestGain := 0.0

	for f := 0; f < len(x[0]); f++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return x[order[a]][f] < x[order[b]][f] })

		// Running sums let each candidate split evaluate in O(1).
		var leftSum, leftSq float64
		var totalSum, totalSq float64
		for _, i := range order {
			totalSum += y[i]
			totalSq += y[i] * y[i]
		}

		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftSum += y[i]
			leftSq += y[i] * y[i]

			// No split between identical feature values.
			if x[order[pos]][f] == x[order[pos+1]][f] {
				continue
			}
			nl := float64(pos + 1)
			nr := float64(len(order) - pos - 1)
			if int(nl) < t.minSamplesLeaf || int(nr) < t.minSamplesLeaf {
				continue
			}

			leftSSE := leftSq - leftSum*leftSum/nl
			rightSum := totalSum - leftSum
			rightSSE := (totalSq - leftSq) - rightSum*rightSum/nr

			if g := parentSSE - leftSSE - rightSSE; g > bestGain {
				bestGain = g
				feature = f
				threshold = (x[order[pos]][f] + x[order[pos+1]][f]) / 2
			}
		}
	}

	if bestGain <= 1e-12 {
		return 0, 0, 0, false
	}
	return feature, threshold, bestGain, true
}

func meanAt(y []float64, idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

func sseAt(y []float64, idx []int) float64 {
	m := meanAt(y, idx)
	var sse float64
	for _, i := range idx {
		d := y[i] - m
		sse += d * d
	}
	return sse
}

// BaggingRegressor averages regression trees fitted on bootstrap resamples
// of the training set. Resampling is driven by a seeded PCG source so fits
// are reproducible.
type BaggingRegressor struct {
	Trees    int
	MaxDepth int
	Seed     uint64
	trees    []*regressionTree
	dims     int
}

func (m *BaggingRegressor) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return types.NewAppError(types.ErrCodeModelFitFailed, "bagging: empty training set", nil)
	}
	m.dims = len(x[0])
	rng := rand.New(rand.NewPCG(m.Seed, m.Seed))

	m.trees = make([]*regressionTree, m.Trees)
	n := len(x)
	for t := 0; t < m.Trees; t++ {
		bx := make([][]float64, n)
		by := make([]float64, n)
		for i := 0; i < n; i++ {
			j := rng.IntN(n)
			bx[i] = x[j]
			by[i] = y[j]
		}
		tree := newRegressionTree(m.MaxDepth)
		tree.fit(bx, by)
		m.trees[t] = tree
	}
	return nil
}

func (m *BaggingRegressor) Predict(row []float64) float64 {
	var sum float64
	for _, t := range m.trees {
		sum += t.predict(row)
	}
	return sum / float64(len(m.trees))
}

// FeatureImportance returns normalized SSE-reduction importances summed over
// all trees. The result sums to 1 unless no split was ever made.
func (m *BaggingRegressor) FeatureImportance() []float64 {
	return normalizeImportance(m.trees, m.dims)
}

// GradientBoostingRegressor fits shallow trees to the residuals of the
// running prediction, shrunk by the learning rate.
type GradientBoostingRegressor struct {
	Trees        int
	MaxDepth     int
	LearningRate float64
	base         float64
	trees        []*regressionTree
	dims         int
}

func (m *GradientBoostingRegressor) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return types.NewAppError(types.ErrCodeModelFitFailed, "boosting: empty training set", nil)
	}
	m.dims = len(x[0])

	var sum float64
	for _, v := range y {
		sum += v
	}
	m.base = sum / float64(len(y))

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = m.base
	}
	resid := make([]float64, len(y))

	m.trees = make([]*regressionTree, 0, m.Trees)
	for t := 0; t < m.Trees; t++ {
		var maxResid float64
		for i := range y {
			resid[i] = y[i] - pred[i]
			if r := math.Abs(resid[i]); r > maxResid {
				maxResid = r
			}
		}
		if maxResid < 1e-10 {
			break
		}

		tree := newRegressionTree(m.MaxDepth)
		tree.fit(x, resid)
		m.trees = append(m.trees, tree)

		for i := range pred {
			pred[i] += m.LearningRate * tree.predict(x[i])
		}
	}
	return nil
}

func (m *GradientBoostingRegressor) Predict(row []float64) float64 {
	out := m.base
	for _, t := range m.trees {
		out += m.LearningRate * t.predict(row)
	}
	return out
}

// FeatureImportance returns normalized per-feature split gains summed over
// all boosting rounds.
func (m *GradientBoostingRegressor) FeatureImportance() []float64 {
	return normalizeImportance(m.trees, m.dims)
}

func normalizeImportance(trees []*regressionTree, dims int) []float64 {
	total := make([]float64, dims)
	var sum float64
	for _, t := range trees {
		for f, v := range t.importance {
			total[f] += v
			sum += v
		}
	}
	if sum > 0 {
		for f := range total {
			total[f] /= sum
		}
	}
	return total
}
