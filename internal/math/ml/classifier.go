package ml

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	rmath "github.com/drakos74/asthma-risk/internal/math"
)

// Family names a classifier family.
type Family string

const (
	RandomForest       Family = "random_forest"
	LogisticRegression Family = "logistic_regression"
	GradientBoosting   Family = "gradient_boosting"
	SVM                Family = "svm"
)

// Families lists all the supported families in training order.
var Families = []Family{RandomForest, LogisticRegression, GradientBoosting, SVM}

// ParseFamily validates a family name.
func ParseFamily(s string) (Family, error) {
	for _, f := range Families {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown model family '%s'", s)
}

// Capabilities is what a trained classifier can offer beyond a class decision.
type Capabilities struct {
	Probabilities     bool `json:"supports_probabilities"`
	NativeAttribution bool `json:"supports_native_attribution"`
}

// Descriptor tags a trained classifier with its family, capabilities and the
// hyper-parameters it was fitted with.
type Descriptor struct {
	Family       Family       `json:"family"`
	Capabilities Capabilities `json:"capabilities"`
	Params       Params       `json:"params"`
}

// Classifier is a multi-class classifier operating on standardised inputs.
type Classifier interface {
	// Fit trains the classifier on x with class indices y in [0,classes).
	Fit(x [][]float64, y []int, classes int) error
	// Scores returns one value per class, probabilities when Capabilities().Probabilities is set
	// and raw decision values otherwise. The decision is always the argmax.
	Scores(x []float64) []float64
	// Capabilities describes the optional outputs of the classifier.
	Capabilities() Capabilities
	// Ensemble returns the tree structure, nil unless Capabilities().NativeAttribution is set.
	Ensemble() *Ensemble
	// Importance returns a per-feature importance, nil when the family has none.
	Importance() []float64
	json.Marshaler
	json.Unmarshaler
}

// Predict returns the class decision of the classifier.
func Predict(c Classifier, x []float64) int {
	return rmath.Argmax(c.Scores(x))
}

// Params is a set of named numeric hyper-parameters.
type Params map[string]float64

// Get returns the parameter or the default value.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Int returns the parameter as an int.
func (p Params) Int(key string, def int) int {
	return int(p.Get(key, float64(def)))
}

func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ss := make([]string, len(keys))
	for i, k := range keys {
		ss[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return "{" + strings.Join(ss, " ") + "}"
}

// Grid is the hyper-parameter search space of a family.
type Grid map[string][]float64

// Expand returns the cartesian product of the grid in a stable order.
func (g Grid) Expand() []Params {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []Params{{}}
	for _, k := range keys {
		values := g[k]
		if len(values) == 0 {
			continue
		}
		next := make([]Params, 0, len(combos)*len(values))
		for _, c := range combos {
			for _, v := range values {
				p := make(Params, len(c)+1)
				for ck, cv := range c {
					p[ck] = cv
				}
				p[k] = v
				next = append(next, p)
			}
		}
		combos = next
	}
	return combos
}

// New creates an untrained classifier of the given family.
func New(family Family, params Params, seed int64) (Classifier, error) {
	switch family {
	case RandomForest:
		return NewForest(params), nil
	case LogisticRegression:
		return NewLogistic(params), nil
	case GradientBoosting:
		return NewBoost(params), nil
	case SVM:
		return NewLinearSVM(params, seed), nil
	}
	return nil, fmt.Errorf("unknown model family '%s'", family)
}

// DefaultGrids is the search space used when no grid is configured.
func DefaultGrids() map[Family]Grid {
	return map[Family]Grid{
		RandomForest: {
			"trees":     {50, 100},
			"max_depth": {0, 10},
			"leaf_size": {1, 5},
		},
		LogisticRegression: {
			"regularization": {0, 0.01, 0.1},
			"iterations":     {300},
		},
		GradientBoosting: {
			"trees":         {50, 100},
			"learning_rate": {0.1, 0.2},
			"max_depth":     {3},
		},
		SVM: {
			"c":      {0.1, 1, 10},
			"epochs": {20},
		},
	}
}
