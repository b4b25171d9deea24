package ml

import (
	"encoding/json"
	"fmt"
	"math"

	rmath "github.com/drakos74/asthma-risk/internal/math"
)

// Boost is a multi-class gradient boosting classifier with softmax loss.
// Every round grows one regression tree per class on the negative gradient.
type Boost struct {
	params     Params
	rounds     int
	rate       float64
	maxDepth   int
	minLeaf    int
	classes    int
	ensemble   *Ensemble
	importance []float64
}

// NewBoost creates a gradient boosting classifier.
// Recognised params are trees, learning_rate, max_depth and min_leaf.
func NewBoost(params Params) *Boost {
	return &Boost{
		params:   params,
		rounds:   params.Int("trees", 100),
		rate:     params.Get("learning_rate", 0.1),
		maxDepth: params.Int("max_depth", 3),
		minLeaf:  params.Int("min_leaf", 1),
	}
}

func (b *Boost) Fit(x [][]float64, y []int, classes int) error {
	n := len(x)
	if n == 0 || n != len(y) {
		return fmt.Errorf("invalid training data: x=%d y=%d", len(x), len(y))
	}
	if b.rounds <= 0 || b.rate <= 0 {
		return fmt.Errorf("invalid boosting params: trees=%d learning_rate=%v", b.rounds, b.rate)
	}
	features := len(x[0])

	// start from the log prior of every class
	prior := make([]float64, classes)
	for _, c := range y {
		prior[c]++
	}
	base := make([]float64, classes)
	for k := range prior {
		base[k] = math.Log(math.Max(prior[k]/float64(n), 1e-9))
	}

	f := make([][]float64, n)
	for i := range f {
		f[i] = make([]float64, classes)
		copy(f[i], base)
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	factor := float64(classes-1) / float64(classes)
	builder := newRegressionTree(b.maxDepth, b.minLeaf, features)
	trees := make([]Tree, 0, b.rounds*classes)
	residuals := make([][]float64, classes)
	for k := range residuals {
		residuals[k] = make([]float64, n)
	}

	for m := 0; m < b.rounds; m++ {
		for i := 0; i < n; i++ {
			p := rmath.Softmax(f[i])
			for k := 0; k < classes; k++ {
				target := 0.0
				if y[i] == k {
					target = 1
				}
				residuals[k][i] = target - p[k]
			}
		}
		for k := 0; k < classes; k++ {
			r := residuals[k]
			root := builder.grow(x, r, all, 0, func(idx []int) float64 {
				var num, den float64
				for _, i := range idx {
					num += r[i]
					den += math.Abs(r[i]) * (1 - math.Abs(r[i]))
				}
				if den < 1e-12 {
					return 0
				}
				return factor * num / den
			})
			trees = append(trees, Tree{Root: root, Output: k})
			for i := 0; i < n; i++ {
				f[i][k] += b.rate * root.Leaf(x[i]).Value[0]
			}
		}
		for i := 0; i < n; i++ {
			if !rmath.IsFinite(f[i]...) {
				return fmt.Errorf("numerical failure at round %d", m)
			}
		}
	}

	b.classes = classes
	b.ensemble = &Ensemble{
		Outputs: classes,
		Base:    base,
		Scale:   b.rate,
		Trees:   trees,
	}
	b.importance = rmath.Normalize(builder.importance)
	return nil
}

// Scores returns the class probabilities, the softmax of the raw margins.
func (b *Boost) Scores(x []float64) []float64 {
	return rmath.Softmax(b.ensemble.Raw(x))
}

func (b *Boost) Capabilities() Capabilities {
	return Capabilities{
		Probabilities:     true,
		NativeAttribution: true,
	}
}

func (b *Boost) Ensemble() *Ensemble {
	return b.ensemble
}

func (b *Boost) Importance() []float64 {
	return b.importance
}

type boostJSON struct {
	Params     Params    `json:"params"`
	Classes    int       `json:"classes"`
	Ensemble   *Ensemble `json:"ensemble"`
	Importance []float64 `json:"importance"`
}

func (b *Boost) MarshalJSON() ([]byte, error) {
	if b.ensemble == nil {
		return nil, fmt.Errorf("boosting model is not trained")
	}
	return json.Marshal(boostJSON{
		Params:     b.params,
		Classes:    b.classes,
		Ensemble:   b.ensemble,
		Importance: b.importance,
	})
}

func (b *Boost) UnmarshalJSON(data []byte) error {
	var bj boostJSON
	if err := json.Unmarshal(data, &bj); err != nil {
		return fmt.Errorf("could not decode boosting model: %w", err)
	}
	if bj.Ensemble == nil {
		return fmt.Errorf("missing ensemble")
	}
	*b = *NewBoost(bj.Params)
	b.classes = bj.Classes
	b.ensemble = bj.Ensemble
	b.importance = bj.Importance
	return nil
}
