// Package trainer searches the classifier families for the best risk model.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/drakos74/asthma-risk/internal/dataset"
	rmath "github.com/drakos74/asthma-risk/internal/math"
	"github.com/drakos74/asthma-risk/internal/math/ml"
	"github.com/drakos74/asthma-risk/internal/metrics"
	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/drakos74/asthma-risk/internal/registry"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrTrainingFailure is returned when no model could be trained from the data.
var ErrTrainingFailure = errors.New("training failure")

// trainingError is a training failure caused by invalid input.
// It matches ErrTrainingFailure and unwraps to the cause.
type trainingError struct {
	cause error
}

func (e *trainingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrTrainingFailure.Error(), e.cause.Error())
}

func (e *trainingError) Is(target error) bool {
	return target == ErrTrainingFailure
}

func (e *trainingError) Unwrap() error {
	return e.cause
}

// Trainer fits and compares the classifier families.
type Trainer struct {
	cfg     Config
	metrics *metrics.Metrics
}

// New creates a trainer with the given settings.
func New(cfg Config) *Trainer {
	return &Trainer{cfg: cfg.normalise()}
}

// WithMetrics records accuracy and duration per family.
func (t *Trainer) WithMetrics(m *metrics.Metrics) *Trainer {
	t.metrics = m
	return t
}

// Config returns the effective settings.
func (t *Trainer) Config() Config {
	return t.cfg
}

// Result is the outcome of a training run.
type Result struct {
	Best   *registry.Artifact
	Report Report
}

// split is the encoded data set with its train and test rows.
type split struct {
	classes []string
	xTrain  [][]float64
	yTrain  []int
	xTest   [][]float64
	yTest   []int
}

// Train fits every family on the samples and returns the one with the best held out accuracy.
// Families that fail are excluded, the run fails only when none is left.
func (t *Trainer) Train(ctx context.Context, samples []model.LabeledSample, families []ml.Family, augment bool) (*Result, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrTrainingFailure)
	}
	if len(families) == 0 {
		families = ml.Families
	}

	x, labels, err := matrix(samples)
	if err != nil {
		return nil, err
	}
	encoder := model.NewLabelEncoder(labels...)
	if err := sufficient(labels); err != nil {
		return nil, err
	}

	report := Report{
		Samples:  len(samples),
		Excluded: make(map[ml.Family]string),
	}
	if augment && t.cfg.Augment > 0 {
		augmented, err := dataset.NewAugmenter(t.cfg.Seed).Augment(samples, t.cfg.Augment)
		if err != nil {
			return nil, fmt.Errorf("%w: could not augment data: %v", ErrTrainingFailure, err)
		}
		report.Augmented = len(augmented) - len(samples)
		log.Info().Int("from", report.Samples).Int("to", len(augmented)).Msg("augmented data")
		if x, labels, err = matrix(augmented); err != nil {
			return nil, err
		}
	}

	y, err := encoder.EncodeAll(labels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrainingFailure, err)
	}
	train, test, err := dataset.Split(y, t.cfg.TestSize, t.cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrainingFailure, err)
	}
	data := split{
		classes: encoder.Classes(),
		xTrain:  rows(x, train),
		yTrain:  values(y, train),
		xTest:   rows(x, test),
		yTest:   values(y, test),
	}
	report.Train = len(train)
	report.Test = len(test)
	report.Insights = insights(x, y, encoder.Classes())
	log.Info().Int("train", report.Train).Int("test", report.Test).Msg("split data")

	candidates := make([]*Candidate, len(families))
	failures := make([]error, len(families))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Parallelism)
	for i, family := range families {
		i, family := i, family
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			c, err := t.family(gctx, family, data)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				failures[i] = err
				log.Error().Err(err).Str("family", string(family)).Msg("excluded model family")
				return nil
			}
			candidates[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, family := range families {
		if failures[i] != nil {
			report.Excluded[family] = failures[i].Error()
			continue
		}
		report.Candidates = append(report.Candidates, *candidates[i])
	}
	if len(report.Candidates) == 0 {
		reasons := make([]string, 0, len(report.Excluded))
		for _, family := range families {
			reasons = append(reasons, fmt.Sprintf("%s: %s", family, report.Excluded[family]))
		}
		return nil, fmt.Errorf("%w: no model family could be trained [%s]", ErrTrainingFailure, strings.Join(reasons, "; "))
	}

	sort.SliceStable(report.Candidates, func(i, j int) bool {
		a, b := report.Candidates[i], report.Candidates[j]
		if a.Accuracy != b.Accuracy {
			return a.Accuracy > b.Accuracy
		}
		return a.CVMean > b.CVMean
	})
	best := report.Candidates[0]
	report.Best = best.Family
	log.Info().
		Str("family", string(best.Family)).
		Str("accuracy", rmath.Format(best.Accuracy)).
		Str("params", best.Params.String()).
		Msg("selected model")

	return &Result{
		Best: &registry.Artifact{
			Pipeline: best.Pipeline,
			Encoder:  encoder,
			Columns:  model.Schema(),
			Manifest: registry.Manifest{
				Metrics: map[string]float64{
					"accuracy": best.Accuracy,
					"cv_mean":  best.CVMean,
					"cv_std":   best.CVStd,
				},
			},
		},
		Report: report,
	}, nil
}

// family runs the grid search of the family and evaluates the best configuration on the test rows.
func (t *Trainer) family(ctx context.Context, family ml.Family, data split) (c *Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = fmt.Errorf("panic during training of '%s': %v", family, r)
		}
	}()

	start := time.Now()
	grid := t.cfg.grid(family).Expand()
	log.Info().Str("family", string(family)).Int("grid", len(grid)).Msg("training")

	k := t.cfg.Folds
	if k > len(data.yTrain) {
		k = len(data.yTrain)
	}
	folds, err := dataset.Folds(data.yTrain, k, t.cfg.Seed)
	if err != nil {
		return nil, err
	}

	var bestParams ml.Params
	var bestScores []float64
	bestMean := -1.0
	var lastErr error
	for _, params := range grid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores, err := t.crossValidate(family, params, folds, data)
		if err != nil {
			lastErr = err
			log.Debug().Err(err).Str("family", string(family)).Str("params", params.String()).Msg("skipped parameters")
			continue
		}
		mean, _ := rmath.MeanStd(scores)
		if mean > bestMean {
			bestMean = mean
			bestParams = params
			bestScores = scores
		}
	}
	if bestParams == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("empty search space")
		}
		return nil, fmt.Errorf("grid search of '%s' failed: %w", family, lastErr)
	}

	pipeline, err := ml.Fit(family, bestParams, int64(t.cfg.Seed), data.xTrain, data.yTrain, len(data.classes))
	if err != nil {
		return nil, fmt.Errorf("could not refit '%s': %w", family, err)
	}
	evaluation := ml.Evaluate(pipeline, data.xTest, data.yTest, data.classes)
	if math.IsNaN(evaluation.Accuracy) {
		return nil, fmt.Errorf("invalid accuracy for '%s'", family)
	}
	mean, std := rmath.MeanStd(bestScores)
	c = &Candidate{
		Family:     family,
		Params:     bestParams,
		Accuracy:   evaluation.Accuracy,
		CVMean:     mean,
		CVStd:      std,
		CVScores:   bestScores,
		Evaluation: evaluation,
		Duration:   time.Since(start),
		Pipeline:   pipeline,
	}

	t.metrics.Accuracy(string(family), "test", c.Accuracy)
	t.metrics.Accuracy(string(family), "cv", c.CVMean)
	t.metrics.Duration(string(family), c.Duration)
	log.Info().
		Str("family", string(family)).
		Str("accuracy", rmath.Format(c.Accuracy)).
		Str("cv", fmt.Sprintf("%s (+/- %s)", rmath.Format(c.CVMean), rmath.Format(2*c.CVStd))).
		Str("params", bestParams.String()).
		Dur("duration", c.Duration).
		Msg("trained")
	return c, nil
}

// crossValidate returns the validation accuracy of every fold.
func (t *Trainer) crossValidate(family ml.Family, params ml.Params, folds [][]int, data split) ([]float64, error) {
	scores := make([]float64, 0, len(folds))
	for _, fold := range folds {
		train := dataset.Complement(len(data.yTrain), fold)
		p, err := ml.Fit(family, params, int64(t.cfg.Seed), rows(data.xTrain, train), values(data.yTrain, train), len(data.classes))
		if err != nil {
			return nil, err
		}
		acc := ml.Accuracy(p, rows(data.xTrain, fold), values(data.yTrain, fold))
		if !rmath.IsFinite(acc) {
			return nil, fmt.Errorf("invalid fold accuracy")
		}
		scores = append(scores, acc)
	}
	return scores, nil
}

// sufficient checks that every class can be stratified.
func sufficient(labels []string) error {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}
	for l, n := range counts {
		if n < 2 {
			return &trainingError{cause: fmt.Errorf("class '%s' has %d samples: %w", l, n, dataset.ErrInsufficientSamples)}
		}
	}
	return nil
}

// matrix aligns every sample to the feature schema and splits off the labels.
func matrix(samples []model.LabeledSample) ([][]float64, []string, error) {
	columns := model.Schema()
	x := make([][]float64, len(samples))
	y := make([]string, len(samples))
	for i, s := range samples {
		row, err := s.Features.Align(columns)
		if err != nil {
			return nil, nil, &trainingError{cause: fmt.Errorf("sample %d: %w", i, err)}
		}
		x[i] = row
		y[i] = string(s.Risk)
	}
	return x, y, nil
}

func rows(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

func values(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
