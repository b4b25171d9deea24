package explain

import (
	"github.com/drakos74/asthma-risk/internal/math/ml"
)

// pathElement tracks a feature on the decision path.
// zero is the share of the training cover that follows the path when the feature is unknown,
// one whether the point itself follows it.
type pathElement struct {
	feature int
	zero    float64
	one     float64
	weight  float64
}

// treeSHAP computes exact path dependent shapley values of tree ensembles.
type treeSHAP struct {
	x      []float64
	phi    []float64
	output int
	scale  float64
}

// TreeSHAP returns the attributions of every feature for the given ensemble output.
// The values add up to the raw output minus the expected output of the ensemble.
func TreeSHAP(e *ml.Ensemble, x []float64, output int) []float64 {
	s := &treeSHAP{
		x:      x,
		phi:    make([]float64, len(x)),
		output: output,
		scale:  e.Scale,
	}
	for _, t := range e.Trees {
		if !t.Contributes(output) {
			continue
		}
		s.recurse(t, t.Root, nil, 1, 1, -1)
	}
	return s.phi
}

func (s *treeSHAP) recurse(t ml.Tree, n *ml.Node, parent []pathElement, pz, po float64, pi int) {
	path := make([]pathElement, len(parent), len(parent)+1)
	copy(path, parent)
	path = extend(path, pz, po, pi)

	if n.IsLeaf() {
		v := s.scale * leafValue(t, n, s.output)
		for i := 1; i < len(path); i++ {
			w := unwoundSum(path, i)
			el := path[i]
			s.phi[el.feature] += w * (el.one - el.zero) * v
		}
		return
	}

	hot, cold := n.Left, n.Right
	if n.Next(s.x) == n.Right {
		hot, cold = n.Right, n.Left
	}

	iz, io := 1.0, 1.0
	for k := 1; k < len(path); k++ {
		if path[k].feature == n.Feature {
			iz, io = path[k].zero, path[k].one
			path = unwind(path, k)
			break
		}
	}

	s.recurse(t, hot, path, iz*fraction(hot, n), io, n.Feature)
	s.recurse(t, cold, path, iz*fraction(cold, n), 0, n.Feature)
}

func leafValue(t ml.Tree, leaf *ml.Node, output int) float64 {
	if t.Output < 0 {
		return leaf.Value[output]
	}
	return leaf.Value[0]
}

// fraction is the share of the parent cover that goes to the child.
// Nodes without cover split evenly and empty children keep a tiny share.
func fraction(child, parent *ml.Node) float64 {
	if parent.Cover <= 0 {
		return 0.5
	}
	f := child.Cover / parent.Cover
	if f < 1e-9 {
		return 1e-9
	}
	return f
}

func extend(path []pathElement, pz, po float64, pi int) []pathElement {
	l := len(path)
	w := 0.0
	if l == 0 {
		w = 1
	}
	path = append(path, pathElement{
		feature: pi,
		zero:    pz,
		one:     po,
		weight:  w,
	})
	for i := l - 1; i >= 0; i-- {
		path[i+1].weight += po * path[i].weight * float64(i+1) / float64(l+1)
		path[i].weight = pz * path[i].weight * float64(l-i) / float64(l+1)
	}
	return path
}

func unwind(path []pathElement, i int) []pathElement {
	depth := len(path) - 1
	one := path[i].one
	zero := path[i].zero
	next := path[depth].weight
	for j := depth - 1; j >= 0; j-- {
		if one != 0 {
			tmp := path[j].weight
			path[j].weight = next * float64(depth+1) / (float64(j+1) * one)
			next = tmp - path[j].weight*zero*float64(depth-j)/float64(depth+1)
		} else {
			path[j].weight = path[j].weight * float64(depth+1) / (zero * float64(depth-j))
		}
	}
	for j := i; j < depth; j++ {
		path[j].feature = path[j+1].feature
		path[j].zero = path[j+1].zero
		path[j].one = path[j+1].one
	}
	return path[:depth]
}

func unwoundSum(path []pathElement, i int) float64 {
	depth := len(path) - 1
	one := path[i].one
	zero := path[i].zero
	next := path[depth].weight
	total := 0.0
	if one != 0 {
		for j := depth - 1; j >= 0; j-- {
			tmp := next * float64(depth+1) / (float64(j+1) * one)
			total += tmp
			next = path[j].weight - tmp*zero*float64(depth-j)/float64(depth+1)
		}
		return total
	}
	for j := depth - 1; j >= 0; j-- {
		total += path[j].weight / zero * float64(depth+1) / float64(depth-j)
	}
	return total
}
