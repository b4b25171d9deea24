// Package explain attributes a risk prediction to the input features with two
// independent methods, an additive shapley value attribution and a local linear surrogate.
// A failing method never affects the other one, its slot carries the error instead.
package explain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/drakos74/asthma-risk/internal/math/ml"
	"github.com/drakos74/asthma-risk/internal/metrics"
	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/drakos74/asthma-risk/internal/registry"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

const (
	TreeAlgorithm      = "tree"
	KernelAlgorithm    = "kernel"
	SurrogateAlgorithm = "local_linear"

	summaryIterations = 100
)

// Explainer explains the predictions of a loaded artifact.
// It holds no mutable state and can be shared between goroutines.
type Explainer struct {
	artifact   *registry.Artifact
	cfg        Config
	background [][]float64
	weights    []float64
	metrics    *metrics.Metrics
}

// New creates an explainer for the artifact.
func New(artifact *registry.Artifact, cfg Config) *Explainer {
	return &Explainer{
		artifact: artifact,
		cfg:      cfg.normalise(),
	}
}

// WithBackground sets representative raw feature rows as the reference of the kernel approximation.
// More rows than the configured background size are summarised into weighted k-means centroids.
// Without them uniform noise in the model input space is used.
func (e *Explainer) WithBackground(rows [][]float64) *Explainer {
	bg := make([][]float64, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(e.artifact.Columns) {
			log.Warn().Int("expected", len(e.artifact.Columns)).Int("got", len(row)).Msg("ignoring background row")
			continue
		}
		bg = append(bg, e.artifact.Pipeline.Input(row))
	}
	e.background = bg
	e.weights = nil
	if len(bg) > e.cfg.Background {
		centroids, weights, err := ml.Summarize(bg, e.cfg.Background, summaryIterations)
		if err != nil {
			log.Warn().Err(err).Int("rows", len(bg)).Msg("could not summarize background, sampling rows instead")
			return e
		}
		e.background = centroids
		e.weights = weights
	}
	return e
}

// WithMetrics counts the failed explanations.
func (e *Explainer) WithMetrics(m *metrics.Metrics) *Explainer {
	e.metrics = m
	return e
}

// Explain explains the class the model predicts for the features.
func (e *Explainer) Explain(ctx context.Context, features model.FeatureVector, method model.Method) model.Explanations {
	x, err := features.Align(e.artifact.Columns)
	if err != nil {
		return e.fail(method, -1, err)
	}
	return e.ExplainClass(ctx, features, e.artifact.Pipeline.Predict(x), method)
}

// ExplainClass explains the given class index, the one the predictor returned.
func (e *Explainer) ExplainClass(ctx context.Context, features model.FeatureVector, class int, method model.Method) model.Explanations {
	if !known(method) {
		return e.fail(method, class, fmt.Errorf("unknown explanation method '%s'", method))
	}
	x, err := features.Align(e.artifact.Columns)
	if err != nil {
		return e.fail(method, class, err)
	}
	if class < 0 || class >= e.artifact.Encoder.Len() {
		return e.fail(method, class, fmt.Errorf("invalid class index %d", class))
	}
	z := e.artifact.Pipeline.Input(x)

	var explanations model.Explanations
	wg := new(sync.WaitGroup)
	if method == model.Additive || method == model.Both {
		wg.Add(1)
		go func() {
			defer wg.Done()
			explanations.Additive = e.run(ctx, model.Additive, class, func(ctx context.Context) (*model.Explanation, error) {
				return e.additive(ctx, z, class)
			})
		}()
	}
	if method == model.Surrogate || method == model.Both {
		wg.Add(1)
		go func() {
			defer wg.Done()
			explanations.Surrogate = e.run(ctx, model.Surrogate, class, func(ctx context.Context) (*model.Explanation, error) {
				return e.surrogate(ctx, z, class)
			})
		}()
	}
	wg.Wait()
	return explanations
}

// run executes the method within its own time budget and turns any failure into an error payload.
func (e *Explainer) run(ctx context.Context, method model.Method, class int, exec func(ctx context.Context) (*model.Explanation, error)) *model.Explanation {
	if timeout := e.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		exp *model.Explanation
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		exp, err := exec(ctx)
		done <- result{exp: exp, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return e.failed(method, class, r.err)
		}
		return r.exp
	case <-ctx.Done():
		return e.failed(method, class, fmt.Errorf("explanation interrupted: %w", ctx.Err()))
	}
}

func (e *Explainer) fail(method model.Method, class int, err error) model.Explanations {
	var explanations model.Explanations
	if method == model.Additive || method == model.Both || !known(method) {
		explanations.Additive = e.failed(model.Additive, class, err)
	}
	if method == model.Surrogate || method == model.Both || !known(method) {
		explanations.Surrogate = e.failed(model.Surrogate, class, err)
	}
	return explanations
}

func known(method model.Method) bool {
	switch method {
	case model.Additive, model.Surrogate, model.Both:
		return true
	}
	return false
}

func (e *Explainer) failed(method model.Method, class int, err error) *model.Explanation {
	log.Warn().Err(err).Str("method", string(method)).Int("class", class).Msg("explanation failed")
	e.metrics.ExplanationFailure(string(method))
	return &model.Explanation{
		Method:     method,
		ClassIndex: class,
		Error:      fmt.Sprintf("%s explanation failed: %s", method, err.Error()),
	}
}

// output is the explained value of the model, the class probability when the
// model has one and the decision score otherwise.
func (e *Explainer) output(class int) valueFunc {
	c := e.artifact.Pipeline.Classifier
	return func(z []float64) float64 {
		return c.Scores(z)[class]
	}
}

func (e *Explainer) additive(ctx context.Context, z []float64, class int) (*model.Explanation, error) {
	var phi []float64
	var base, out float64
	var algorithm string
	if ensemble := e.artifact.Pipeline.Classifier.Ensemble(); e.artifact.Pipeline.Capabilities().NativeAttribution && ensemble != nil {
		algorithm = TreeAlgorithm
		phi = TreeSHAP(ensemble, z, class)
		base = ensemble.Expected(class)
		out = ensemble.Raw(z)[class]
	} else {
		algorithm = KernelAlgorithm
		rng := rand.New(rand.NewSource(e.cfg.Seed))
		background, weights := e.backgroundRows(rng, len(z))
		k := &kernelSHAP{
			f:          e.output(class),
			background: background,
			weights:    weights,
			samples:    e.cfg.Samples,
			rng:        rng,
		}
		var err error
		phi, base, out, err = k.explain(ctx, z)
		if err != nil {
			return nil, err
		}
	}
	exp := e.explanation(model.Additive, algorithm, class, phi, len(phi))
	exp.BaseValue = base
	exp.Output = out
	return exp, nil
}

func (e *Explainer) surrogate(ctx context.Context, z []float64, class int) (*model.Explanation, error) {
	s := &surrogate{
		f:          e.output(class),
		neighbours: e.cfg.Neighbours,
		width:      e.cfg.KernelWidth,
		ridge:      e.cfg.Ridge,
		src:        rand.NewSource(e.cfg.Seed),
	}
	coef, intercept, out, score, err := s.explain(ctx, z)
	if err != nil {
		return nil, err
	}
	exp := e.explanation(model.Surrogate, SurrogateAlgorithm, class, coef, e.cfg.TopK)
	exp.BaseValue = intercept
	exp.Output = out
	exp.Score = score
	return exp, nil
}

// explanation ranks the attributions by magnitude and keeps the top k.
func (e *Explainer) explanation(method model.Method, algorithm string, class int, weights []float64, k int) *model.Explanation {
	ranked := make([]model.Attribution, len(weights))
	for j, w := range weights {
		ranked[j] = model.Attribution{
			Feature: e.artifact.Columns[j],
			Weight:  w,
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Weight) > math.Abs(ranked[j].Weight)
	})
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	attributions := make(map[string]float64, len(ranked))
	for _, a := range ranked {
		attributions[a.Feature] = a.Weight
	}
	label, _ := e.artifact.Encoder.Decode(class)
	return &model.Explanation{
		Method:         method,
		Algorithm:      algorithm,
		ClassIndex:     class,
		PredictedClass: label,
		Attributions:   attributions,
		Ranked:         ranked,
	}
}

// backgroundRows returns the reference rows in the model input space and their weights.
// Summarised rows are used as they are, other provided rows are sampled down or resampled
// up to the configured size, otherwise the rows are uniform noise in [0,1).
func (e *Explainer) backgroundRows(rng *rand.Rand, m int) ([][]float64, []float64) {
	if len(e.weights) > 0 {
		return e.background, e.weights
	}
	size := e.cfg.Background
	rows := make([][]float64, size)
	if len(e.background) > 0 {
		perm := rng.Perm(len(e.background))
		for i := range rows {
			if i < len(perm) {
				rows[i] = e.background[perm[i]]
			} else {
				rows[i] = e.background[rng.Intn(len(e.background))]
			}
		}
		return rows, nil
	}
	for i := range rows {
		row := make([]float64, m)
		for j := range row {
			row[j] = rng.Float64()
		}
		rows[i] = row
	}
	return rows, nil
}
