package ml

import (
	"sort"
)

// Node is a binary decision tree node.
// Rows with x[Feature] <= Threshold go left.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      *Node     `json:"l,omitempty"`
	Right     *Node     `json:"r,omitempty"`
	Cover     float64   `json:"c"`
	Value     []float64 `json:"v,omitempty"`
}

// IsLeaf reports if the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Left == nil || n.Right == nil
}

// Next returns the child the row is routed to.
func (n *Node) Next(x []float64) *Node {
	if x[n.Feature] <= n.Threshold {
		return n.Left
	}
	return n.Right
}

// Leaf returns the leaf the row ends up in.
func (n *Node) Leaf(x []float64) *Node {
	node := n
	for !node.IsLeaf() {
		node = node.Next(x)
	}
	return node
}

// Depth returns the depth of the deepest leaf.
func (n *Node) Depth() int {
	if n.IsLeaf() {
		return 0
	}
	l := n.Left.Depth()
	r := n.Right.Depth()
	if l > r {
		return l + 1
	}
	return r + 1
}

// Tree is a member of an ensemble.
// Output is the ensemble output the tree contributes to, or -1 when the leaves
// carry one value per output.
type Tree struct {
	Root   *Node `json:"root"`
	Output int   `json:"output"`
}

// value is the contribution of the leaf to the given output.
func (t Tree) value(leaf *Node, output int) float64 {
	if t.Output < 0 {
		return leaf.Value[output]
	}
	if t.Output == output {
		return leaf.Value[0]
	}
	return 0
}

// Contributes reports if the tree has any effect on the output.
func (t Tree) Contributes(output int) bool {
	return t.Output < 0 || t.Output == output
}

// Ensemble is an additive tree model
// output_k(x) = Base[k] + Scale * Σ trees value_k(x).
type Ensemble struct {
	Outputs int       `json:"outputs"`
	Base    []float64 `json:"base"`
	Scale   float64   `json:"scale"`
	Trees   []Tree    `json:"trees"`
}

// Raw evaluates all outputs of the ensemble.
func (e *Ensemble) Raw(x []float64) []float64 {
	out := make([]float64, e.Outputs)
	copy(out, e.Base)
	for _, t := range e.Trees {
		leaf := t.Root.Leaf(x)
		for k := 0; k < e.Outputs; k++ {
			if t.Contributes(k) {
				out[k] += e.Scale * t.value(leaf, k)
			}
		}
	}
	return out
}

// Expected is the cover-weighted mean output, the baseline of additive attributions.
func (e *Ensemble) Expected(output int) float64 {
	v := 0.0
	if output < len(e.Base) {
		v = e.Base[output]
	}
	for _, t := range e.Trees {
		if !t.Contributes(output) {
			continue
		}
		v += e.Scale * expected(t, t.Root, output)
	}
	return v
}

func expected(t Tree, n *Node, output int) float64 {
	if n.IsLeaf() {
		return t.value(n, output)
	}
	lc, rc := n.Left.Cover, n.Right.Cover
	if lc+rc == 0 {
		return 0.5*expected(t, n.Left, output) + 0.5*expected(t, n.Right, output)
	}
	return (lc*expected(t, n.Left, output) + rc*expected(t, n.Right, output)) / (lc + rc)
}

// regressionTree grows a least-squares regression tree.
type regressionTree struct {
	maxDepth int
	minLeaf  int
	// importance accumulates the squared error reduction per feature
	importance []float64
}

func newRegressionTree(maxDepth, minLeaf, features int) *regressionTree {
	if minLeaf < 1 {
		minLeaf = 1
	}
	return &regressionTree{
		maxDepth:   maxDepth,
		minLeaf:    minLeaf,
		importance: make([]float64, features),
	}
}

// grow builds the tree over the rows in idx.
// The split criterion is the squared error of target, the leaf value is computed by leaf.
func (rt *regressionTree) grow(x [][]float64, target []float64, idx []int, depth int, leaf func(idx []int) float64) *Node {
	node := &Node{Cover: float64(len(idx))}
	if depth >= rt.maxDepth || len(idx) < 2*rt.minLeaf {
		node.Value = []float64{leaf(idx)}
		return node
	}

	feature, threshold, gain, ok := rt.split(x, target, idx)
	if !ok {
		node.Value = []float64{leaf(idx)}
		return node
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	rt.importance[feature] += gain

	node.Feature = feature
	node.Threshold = threshold
	node.Left = rt.grow(x, target, left, depth+1, leaf)
	node.Right = rt.grow(x, target, right, depth+1, leaf)
	return node
}

func (rt *regressionTree) split(x [][]float64, target []float64, idx []int) (int, float64, float64, bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += target[i]
	}
	parent := total * total / float64(n)

	bestGain := 1e-12
	bestFeature := -1
	bestThreshold := 0.0

	sorted := make([]int, n)
	for j := 0; j < len(x[idx[0]]); j++ {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool {
			return x[sorted[a]][j] < x[sorted[b]][j]
		})
		var sumL float64
		for s := 1; s < n; s++ {
			sumL += target[sorted[s-1]]
			if s < rt.minLeaf || n-s < rt.minLeaf {
				continue
			}
			lo := x[sorted[s-1]][j]
			hi := x[sorted[s]][j]
			if lo == hi {
				continue
			}
			sumR := total - sumL
			gain := sumL*sumL/float64(s) + sumR*sumR/float64(n-s) - parent
			if gain > bestGain {
				bestGain = gain
				bestFeature = j
				bestThreshold = (lo + hi) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestGain, bestFeature >= 0
}
