package ml

import (
	"encoding/json"
	"fmt"
	"math"

	rmath "github.com/drakos74/asthma-risk/internal/math"
	"golang.org/x/exp/rand"
)

// LinearSVM is a one-vs-rest linear support vector machine
// trained with stochastic sub-gradient descent on the hinge loss.
// It only offers decision values, no probabilities.
type LinearSVM struct {
	params  Params
	seed    int64
	weights [][]float64
	bias    []float64
}

// NewLinearSVM creates a linear svm.
// Recognised params are c, the inverse regularization strength, and epochs.
func NewLinearSVM(params Params, seed int64) *LinearSVM {
	return &LinearSVM{
		params: params,
		seed:   seed,
	}
}

func (s *LinearSVM) Fit(x [][]float64, y []int, classes int) error {
	n := len(x)
	if n == 0 || n != len(y) {
		return fmt.Errorf("invalid training data: x=%d y=%d", len(x), len(y))
	}
	c := s.params.Get("c", 1)
	if c <= 0 {
		return fmt.Errorf("invalid regularization c=%v", c)
	}
	epochs := s.params.Int("epochs", 20)
	lambda := 1 / (c * float64(n))
	d := len(x[0])

	weights := make([][]float64, classes)
	bias := make([]float64, classes)
	for k := 0; k < classes; k++ {
		rng := rand.New(rand.NewSource(uint64(s.seed) + uint64(k)))
		w := make([]float64, d)
		var b float64
		t := 0
		for e := 0; e < epochs; e++ {
			for _, i := range rng.Perm(n) {
				t++
				eta := 1 / (1 + lambda*float64(t))
				target := -1.0
				if y[i] == k {
					target = 1
				}
				margin := b
				for j := 0; j < d; j++ {
					margin += w[j] * x[i][j]
				}
				decay := 1 - eta*lambda
				for j := 0; j < d; j++ {
					w[j] *= decay
				}
				if target*margin < 1 {
					for j := 0; j < d; j++ {
						w[j] += eta * target * x[i][j]
					}
					b += eta * target
				}
			}
		}
		if !rmath.IsFinite(w...) || !rmath.IsFinite(b) {
			return fmt.Errorf("numerical failure for class %d", k)
		}
		weights[k] = w
		bias[k] = b
	}
	s.weights = weights
	s.bias = bias
	return nil
}

// Scores returns the signed distance to every one-vs-rest hyperplane.
func (s *LinearSVM) Scores(x []float64) []float64 {
	scores := make([]float64, len(s.weights))
	for k, w := range s.weights {
		v := s.bias[k]
		for j := range x {
			v += w[j] * x[j]
		}
		scores[k] = v
	}
	return scores
}

func (s *LinearSVM) Capabilities() Capabilities {
	return Capabilities{}
}

func (s *LinearSVM) Ensemble() *Ensemble {
	return nil
}

func (s *LinearSVM) Importance() []float64 {
	if len(s.weights) == 0 {
		return nil
	}
	imp := make([]float64, len(s.weights[0]))
	for _, w := range s.weights {
		for j, v := range w {
			imp[j] += math.Abs(v)
		}
	}
	return rmath.Normalize(imp)
}

type svmJSON struct {
	Params  Params      `json:"params"`
	Seed    int64       `json:"seed"`
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

func (s *LinearSVM) MarshalJSON() ([]byte, error) {
	if len(s.weights) == 0 {
		return nil, fmt.Errorf("svm is not trained")
	}
	return json.Marshal(svmJSON{
		Params:  s.params,
		Seed:    s.seed,
		Weights: s.weights,
		Bias:    s.bias,
	})
}

func (s *LinearSVM) UnmarshalJSON(data []byte) error {
	var sj svmJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return fmt.Errorf("could not decode svm: %w", err)
	}
	if len(sj.Weights) == 0 || len(sj.Weights) != len(sj.Bias) {
		return fmt.Errorf("inconsistent svm coefficients: weights=%d bias=%d", len(sj.Weights), len(sj.Bias))
	}
	s.params = sj.Params
	s.seed = sj.Seed
	s.weights = sj.Weights
	s.bias = sj.Bias
	return nil
}
