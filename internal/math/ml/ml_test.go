package ml

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs generates well separated clusters, one per class.
func blobs(n int, seed int64) ([][]float64, []int) {
	centers := [][]float64{
		{0, 0, 1},
		{6, 6, 1},
		{12, 0, 1},
	}
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, 0, n)
	y := make([]int, 0, n)
	for i := 0; i < n; i++ {
		k := i % len(centers)
		row := make([]float64, len(centers[k]))
		for j, c := range centers[k] {
			row[j] = c + rng.NormFloat64()*0.5
		}
		x = append(x, row)
		y = append(y, k)
	}
	return x, y
}

func TestGrid_Expand(t *testing.T) {

	type test struct {
		grid Grid
		size int
	}

	tests := map[string]test{
		"empty": {
			grid: Grid{},
			size: 1,
		},
		"single": {
			grid: Grid{"a": {1}},
			size: 1,
		},
		"product": {
			grid: Grid{"a": {1, 2}, "b": {3, 4, 5}},
			size: 6,
		},
		"skip-empty": {
			grid: Grid{"a": {1, 2}, "b": {}},
			size: 2,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			params := tt.grid.Expand()
			assert.Equal(t, tt.size, len(params))
			seen := make(map[string]bool)
			for _, p := range params {
				seen[p.String()] = true
			}
			assert.Equal(t, tt.size, len(seen))
		})
	}

	// stable order
	g := Grid{"b": {1, 2}, "a": {3, 4}}
	assert.Equal(t, g.Expand(), g.Expand())
	assert.Equal(t, Params{"a": 3, "b": 1}, g.Expand()[0])
}

func TestScaler(t *testing.T) {
	x := [][]float64{
		{1, 10, 5},
		{2, 20, 5},
		{3, 30, 5},
	}
	s, err := FitScaler(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 20, 5}, s.Mean)
	// constant columns are not scaled
	assert.Equal(t, 1.0, s.Std[2])

	z := s.Transform(x[2])
	assert.InDelta(t, 1.2247, z[0], 1e-4)
	assert.InDelta(t, 1.2247, z[1], 1e-4)
	assert.Equal(t, 0.0, z[2])

	back := s.Inverse(z)
	for j := range back {
		assert.InDelta(t, x[2][j], back[j], 1e-9)
	}

	_, err = FitScaler(nil)
	assert.Error(t, err)
}

func TestPipeline_Families(t *testing.T) {
	x, y := blobs(150, 1)
	xt, yt := blobs(60, 2)

	type test struct {
		params Params
		caps   Capabilities
	}

	tests := map[Family]test{
		RandomForest: {
			params: Params{"trees": 20},
			caps:   Capabilities{Probabilities: true},
		},
		LogisticRegression: {
			params: Params{"regularization": 0.01, "iterations": 300},
			caps:   Capabilities{Probabilities: true},
		},
		GradientBoosting: {
			params: Params{"trees": 20, "learning_rate": 0.2, "max_depth": 2},
			caps:   Capabilities{Probabilities: true, NativeAttribution: true},
		},
		SVM: {
			params: Params{"c": 1, "epochs": 10},
			caps:   Capabilities{},
		},
	}

	for family, tt := range tests {
		t.Run(string(family), func(t *testing.T) {
			p, err := Fit(family, tt.params, 42, x, y, 3)
			require.NoError(t, err)
			assert.Equal(t, family, p.Descriptor.Family)
			assert.Equal(t, tt.params, p.Descriptor.Params)
			assert.Equal(t, tt.caps.Probabilities, p.Capabilities().Probabilities)
			if tt.caps.NativeAttribution {
				assert.True(t, p.Capabilities().NativeAttribution)
				assert.NotNil(t, p.Classifier.Ensemble())
			}

			assert.GreaterOrEqual(t, Accuracy(p, xt, yt), 0.9)

			for _, row := range xt[:10] {
				scores := p.Scores(row)
				assert.Equal(t, 3, len(scores))
				if p.Capabilities().Probabilities {
					var sum float64
					for _, s := range scores {
						assert.GreaterOrEqual(t, s, 0.0)
						sum += s
					}
					assert.InDelta(t, 1.0, sum, 1e-9)
				}
			}

			importance := p.Classifier.Importance()
			assert.Equal(t, 3, len(importance))

			b, err := json.Marshal(p)
			require.NoError(t, err)
			restored := new(Pipeline)
			require.NoError(t, json.Unmarshal(b, restored))
			assert.Equal(t, p.Descriptor, restored.Descriptor)
			for _, row := range xt {
				assert.Equal(t, p.Predict(row), restored.Predict(row))
				expected := p.Scores(row)
				actual := restored.Scores(row)
				for k := range expected {
					assert.InDelta(t, expected[k], actual[k], 1e-12)
				}
			}
		})
	}
}

func TestPipeline_Errors(t *testing.T) {
	_, err := Fit(Family("unknown"), Params{}, 0, [][]float64{{1}}, []int{0}, 1)
	assert.Error(t, err)

	_, err = Fit(GradientBoosting, Params{"learning_rate": -1}, 0, [][]float64{{1}, {2}}, []int{0, 1}, 2)
	assert.Error(t, err)

	_, err = Fit(SVM, Params{"c": 0}, 0, [][]float64{{1}, {2}}, []int{0, 1}, 2)
	assert.Error(t, err)

	err = new(Pipeline).UnmarshalJSON([]byte(`{"descriptor":{"family":"svm"}}`))
	assert.Error(t, err)

	_, err = json.Marshal(&Pipeline{Classifier: NewBoost(Params{})})
	assert.Error(t, err)
}

func TestBoost_Margins(t *testing.T) {
	x, y := blobs(90, 3)
	b := NewBoost(Params{"trees": 10, "learning_rate": 0.1, "max_depth": 2})
	require.NoError(t, b.Fit(x, y, 3))

	e := b.Ensemble()
	assert.Equal(t, 3, e.Outputs)
	assert.Equal(t, 30, len(e.Trees))
	// balanced classes start from the same prior
	assert.InDelta(t, e.Base[0], e.Base[1], 1e-12)
	assert.InDelta(t, e.Base[1], e.Base[2], 1e-12)

	for _, row := range x[:5] {
		raw := e.Raw(row)
		scores := b.Scores(row)
		assert.Equal(t, argmax(raw), argmax(scores))
	}
}

func argmax(ff []float64) int {
	idx := 0
	for i, f := range ff {
		if f > ff[idx] {
			idx = i
		}
	}
	return idx
}

func TestEnsemble_Expected(t *testing.T) {
	// x0 <= 0.5 ? (x1 <= 0.5 ? 1 : 2) : 4
	root := &Node{
		Feature:   0,
		Threshold: 0.5,
		Cover:     10,
		Left: &Node{
			Feature:   1,
			Threshold: 0.5,
			Cover:     6,
			Left:      &Node{Cover: 3, Value: []float64{1}},
			Right:     &Node{Cover: 3, Value: []float64{2}},
		},
		Right: &Node{Cover: 4, Value: []float64{4}},
	}
	e := &Ensemble{
		Outputs: 2,
		Base:    []float64{0.5, 0},
		Scale:   1,
		Trees:   []Tree{{Root: root, Output: 0}},
	}

	assert.Equal(t, 2, root.Depth())
	assert.InDelta(t, 0.5+(3*1+3*2+4*4)/10.0, e.Expected(0), 1e-12)
	assert.Equal(t, 0.0, e.Expected(1))
	assert.Equal(t, []float64{1.5, 0}, e.Raw([]float64{0, 0}))
	assert.Equal(t, []float64{2.5, 0}, e.Raw([]float64{0, 1}))
	assert.Equal(t, []float64{4.5, 0}, e.Raw([]float64{1, 0}))
}

func TestEvaluate(t *testing.T) {
	x, y := blobs(60, 4)
	p, err := Fit(LogisticRegression, Params{"regularization": 0.01}, 0, x, y, 3)
	require.NoError(t, err)

	ev := Evaluate(p, x, y, []string{"High", "Low", "Moderate"})
	assert.Equal(t, 60, ev.Samples)
	assert.InDelta(t, Accuracy(p, x, y), ev.Accuracy, 1e-12)
	assert.Equal(t, 3, len(ev.Classes))
	var total int
	for _, row := range ev.Matrix {
		for _, c := range row {
			total += c
		}
	}
	assert.Equal(t, 60, total)
	assert.NotEmpty(t, ev.Summary())

	_, err = json.Marshal(ev)
	assert.NoError(t, err)
}
