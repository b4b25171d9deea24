package registry

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/drakos74/asthma-risk/internal/math/ml"
	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArtifact(t *testing.T, family ml.Family) *Artifact {
	x := make([][]float64, 0)
	labels := make([]string, 0)
	for i := 0; i < 30; i++ {
		v := float64(i)
		x = append(x, []float64{v, 30 - v, float64(i % 3)})
		switch {
		case i < 10:
			labels = append(labels, "Low")
		case i < 20:
			labels = append(labels, "Moderate")
		default:
			labels = append(labels, "High")
		}
	}
	encoder := model.NewLabelEncoder(labels...)
	y, err := encoder.EncodeAll(labels)
	require.NoError(t, err)
	params := ml.Params{"trees": 5}
	p, err := ml.Fit(family, params, 42, x, y, encoder.Len())
	require.NoError(t, err)
	return &Artifact{
		Pipeline: p,
		Encoder:  encoder,
		Columns:  []string{"a", "b", "c"},
		Manifest: Manifest{
			Metrics: map[string]float64{"test_accuracy": 1},
		},
	}
}

func TestRegistry_SaveLoad(t *testing.T) {
	families := map[string]ml.Family{
		"forest":   ml.RandomForest,
		"logistic": ml.LogisticRegression,
		"boosting": ml.GradientBoosting,
		"svm":      ml.SVM,
	}

	for name, family := range families {
		t.Run(name, func(t *testing.T) {
			r := New(t.TempDir())
			a := newArtifact(t, family)

			manifest, err := r.Save(a, string(family))
			require.NoError(t, err)
			assert.Equal(t, family, manifest.Family)
			assert.NotEmpty(t, manifest.Version)
			assert.Equal(t, 1.0, manifest.Metrics["test_accuracy"])

			loaded, err := r.Load(string(family))
			require.NoError(t, err)
			assert.Equal(t, manifest.Version, loaded.Manifest.Version)
			assert.Equal(t, a.Columns, loaded.Columns)
			assert.Equal(t, a.Encoder.Classes(), loaded.Encoder.Classes())
			assert.Equal(t, a.Pipeline.Descriptor, loaded.Pipeline.Descriptor)

			// the model file carries the family name
			_, err = ioutil.ReadFile(filepath.Join(r.Root(), string(family), manifest.Version, string(family)+"_model.json"))
			assert.NoError(t, err)

			for _, row := range [][]float64{{0, 30, 0}, {15, 15, 1}, {29, 1, 2}, {7.5, 3.2, 1}} {
				assert.Equal(t, a.Pipeline.Predict(row), loaded.Pipeline.Predict(row))
				assert.Equal(t, a.Pipeline.Scores(row), loaded.Pipeline.Scores(row))
			}
		})
	}
}

func TestRegistry_Versions(t *testing.T) {
	r := New(t.TempDir())

	m1, err := r.Save(newArtifact(t, ml.LogisticRegression), "model")
	require.NoError(t, err)
	m2, err := r.Save(newArtifact(t, ml.LogisticRegression), "model")
	require.NoError(t, err)
	assert.NotEqual(t, m1.Version, m2.Version)

	loaded, err := r.Load("model")
	require.NoError(t, err)
	assert.Equal(t, m2.Version, loaded.Manifest.Version)

	// nothing is left in the staging area
	staged, err := ioutil.ReadDir(filepath.Join(r.Root(), stagingDir))
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestRegistry_Fallback(t *testing.T) {
	r := New(t.TempDir())

	_, err := r.Load("svm")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
	_, err = r.Load(string(DefaultFamily))
	assert.True(t, errors.Is(err, ErrArtifactNotFound))

	m, err := r.Save(newArtifact(t, ml.RandomForest), string(DefaultFamily))
	require.NoError(t, err)

	loaded, err := r.Load("svm")
	require.NoError(t, err)
	assert.Equal(t, m.Version, loaded.Manifest.Version)
	assert.Equal(t, ml.RandomForest, loaded.Pipeline.Descriptor.Family)
}

func TestRegistry_Link(t *testing.T) {
	r := New(t.TempDir())

	err := r.Link(Best, "svm")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))

	m, err := r.Save(newArtifact(t, ml.SVM), string(ml.SVM))
	require.NoError(t, err)
	require.NoError(t, r.Link(Best, string(ml.SVM)))

	best, err := r.Load(Best)
	require.NoError(t, err)
	assert.Equal(t, m.Version, best.Manifest.Version)
	assert.Equal(t, ml.SVM, best.Pipeline.Descriptor.Family)
	assert.False(t, best.Pipeline.Capabilities().Probabilities)

	names, err := r.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{Best, string(ml.SVM)}, names)
}

func TestRegistry_Invalid(t *testing.T) {
	r := New(t.TempDir())

	_, err := r.Save(&Artifact{}, "model")
	assert.Error(t, err)

	a := newArtifact(t, ml.LogisticRegression)
	for _, name := range []string{"", ".staging", "a/b", ".hidden"} {
		_, err := r.Save(a, name)
		assert.Error(t, err, name)
	}

	a.Columns = nil
	_, err = r.Save(a, "model")
	assert.Error(t, err)

	names, err := New(filepath.Join(t.TempDir(), "missing")).Names()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRegistry_Traversal(t *testing.T) {
	root := t.TempDir()
	r := New(filepath.Join(root, "registry"))

	// a model outside of the registry root
	outside := New(root)
	_, err := outside.Save(newArtifact(t, ml.SVM), "outside")
	require.NoError(t, err)

	type test struct {
		name    string
		pointer string
	}

	tests := map[string]test{
		"parent":        {name: ".."},
		"grand-parent":  {name: "../.."},
		"sibling":       {name: "../outside"},
		"nested":        {name: "a/../../outside"},
		"staging":       {name: stagingDir},
		"backslash":     {name: `..\outside`},
		"pointer-out":   {name: "tampered", pointer: "../outside"},
		"pointer-abs":   {name: "absolute", pointer: filepath.Join(root, "outside")},
		"pointer-empty": {name: "empty", pointer: " "},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if tt.pointer != "" {
				dir := filepath.Join(r.Root(), tt.name)
				require.NoError(t, os.MkdirAll(dir, 0755))
				require.NoError(t, ioutil.WriteFile(filepath.Join(dir, pointerFile), []byte(tt.pointer), 0644))
			}
			a, err := r.Load(tt.name)
			assert.Nil(t, a)
			assert.True(t, errors.Is(err, ErrArtifactNotFound), err)
		})
	}

	// invalid names never fall back to the default model
	_, err = r.Save(newArtifact(t, ml.RandomForest), string(DefaultFamily))
	require.NoError(t, err)
	_, err = r.Load("../..")
	assert.True(t, errors.Is(err, ErrArtifactNotFound), err)
}

func TestRegistry_ConcurrentReaders(t *testing.T) {
	r := New(t.TempDir())
	a := newArtifact(t, ml.GradientBoosting)
	_, err := r.Save(a, "model")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			if _, err := r.Save(a, "model"); err != nil {
				errs <- err
			}
		}
	}()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				loaded, err := r.Load("model")
				if err != nil {
					errs <- err
					continue
				}
				if len(loaded.Columns) != 3 || loaded.Encoder.Len() != 3 {
					errs <- errors.New("inconsistent artifact")
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
