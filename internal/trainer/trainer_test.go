package trainer

import (
	"context"
	"errors"
	"testing"

	"github.com/drakos74/asthma-risk/internal/dataset"
	"github.com/drakos74/asthma-risk/internal/math/ml"
	"github.com/drakos74/asthma-risk/internal/metrics"
	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/drakos74/asthma-risk/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const data = "../dataset/testdata/sample.csv"

func testConfig() Config {
	return Config{
		TestSize:    0.2,
		Folds:       3,
		Seed:        42,
		Augment:     60,
		Parallelism: 2,
		Grids: map[ml.Family]ml.Grid{
			ml.RandomForest:       {"trees": {20}, "max_depth": {0, 5}},
			ml.LogisticRegression: {"iterations": {300}},
			ml.GradientBoosting:   {"trees": {20}, "learning_rate": {0.2}},
			ml.SVM:                {"c": {1}, "epochs": {10}},
		},
	}
}

func load(t *testing.T) []model.LabeledSample {
	samples, err := dataset.LoadCSV(data)
	require.NoError(t, err)
	return samples
}

func TestTrainer_Train(t *testing.T) {
	samples := load(t)
	reg := prometheus.NewRegistry()
	trainer := New(testConfig()).WithMetrics(metrics.New(reg))

	result, err := trainer.Train(context.Background(), samples, nil, false)
	require.NoError(t, err)

	report := result.Report
	assert.Equal(t, 120, report.Samples)
	assert.Equal(t, 0, report.Augmented)
	assert.Equal(t, 96, report.Train)
	assert.Equal(t, 24, report.Test)
	assert.Empty(t, report.Excluded)
	require.Equal(t, len(ml.Families), len(report.Candidates))

	for i := 1; i < len(report.Candidates); i++ {
		prev, next := report.Candidates[i-1], report.Candidates[i]
		assert.True(t, prev.Accuracy > next.Accuracy || (prev.Accuracy == next.Accuracy && prev.CVMean >= next.CVMean))
	}
	best := report.Candidates[0]
	assert.Equal(t, report.Best, best.Family)
	assert.GreaterOrEqual(t, best.Accuracy, 0.9)
	assert.Equal(t, 3, len(best.CVScores))
	assert.Equal(t, 24, best.Evaluation.Samples)

	require.NotNil(t, result.Best)
	assert.Equal(t, report.Best, result.Best.Pipeline.Descriptor.Family)
	assert.Equal(t, model.Fields, result.Best.Columns)
	assert.Equal(t, []string{"High", "Low", "Moderate"}, result.Best.Encoder.Classes())
	assert.Equal(t, best.Accuracy, result.Best.Manifest.Metrics["accuracy"])

	require.Equal(t, 3, len(report.Insights))
	for _, in := range report.Insights {
		assert.Equal(t, 40, in.Samples)
		assert.Equal(t, len(model.Fields), len(in.Features))
	}
	high := report.Insights[0]
	low := report.Insights[1]
	assert.Equal(t, "High", high.Risk)
	assert.Greater(t, high.Features[model.PM25].Mean, low.Features[model.PM25].Mean)

	s := report.String()
	assert.Contains(t, s, "MODEL COMPARISON")
	assert.Contains(t, s, "Best Model: "+string(report.Best))
	assert.Contains(t, s, "RISK FACTOR INSIGHTS")

	families, err := reg.Gather()
	require.NoError(t, err)
	series := make(map[string]int)
	for _, f := range families {
		series[f.GetName()] = len(f.GetMetric())
	}
	assert.Equal(t, 2*len(ml.Families), series["risk_training_accuracy"])
	assert.Equal(t, len(ml.Families), series["risk_training_duration_seconds"])

	// same seed, same outcome for the families that own their randomness
	again, err := New(testConfig()).Train(context.Background(), samples, nil, false)
	require.NoError(t, err)
	for _, c := range report.Candidates {
		if c.Family == ml.RandomForest {
			continue
		}
		other, ok := again.Report.Candidate(c.Family)
		require.True(t, ok)
		assert.Equal(t, c.Accuracy, other.Accuracy, c.Family)
		assert.Equal(t, c.CVScores, other.CVScores, c.Family)
	}
}

func TestTrainer_Augment(t *testing.T) {
	samples := load(t)
	result, err := New(testConfig()).Train(context.Background(), samples, []ml.Family{ml.LogisticRegression}, true)
	require.NoError(t, err)
	assert.Equal(t, 120, result.Report.Samples)
	assert.Equal(t, 60, result.Report.Augmented)
	assert.Equal(t, 180, result.Report.Train+result.Report.Test)
	assert.Equal(t, 120, len(samples))
	assert.Equal(t, ml.LogisticRegression, result.Report.Best)
}

func TestTrainer_Failures(t *testing.T) {
	samples := load(t)
	low := make([]model.LabeledSample, 0)
	for _, s := range samples {
		if s.Risk == model.LowRisk {
			low = append(low, s)
		}
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	type test struct {
		ctx      context.Context
		samples  []model.LabeledSample
		families []ml.Family
		err      error
	}

	tests := map[string]test{
		"empty": {
			ctx: context.Background(),
			err: ErrTrainingFailure,
		},
		"single-sample-class": {
			ctx: context.Background(),
			samples: append(low, model.LabeledSample{
				Features: samples[0].Features,
				Risk:     model.HighRisk,
			}),
			err: ErrTrainingFailure,
		},
		"no-family": {
			ctx:      context.Background(),
			samples:  samples,
			families: []ml.Family{"perceptron"},
			err:      ErrTrainingFailure,
		},
		"cancelled": {
			ctx:      cancelled,
			samples:  samples,
			families: []ml.Family{ml.RandomForest},
			err:      context.Canceled,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			result, err := New(testConfig()).Train(tt.ctx, tt.samples, tt.families, false)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, tt.err), err)
		})
	}
}

func TestTrainer_Alignment(t *testing.T) {
	samples := load(t)

	reorder := func(mutate func(fv model.FeatureVector) model.FeatureVector) []model.LabeledSample {
		out := make([]model.LabeledSample, len(samples))
		for i, s := range samples {
			out[i] = model.LabeledSample{
				Features: mutate(s.Features.Clone()),
				Risk:     s.Risk,
			}
		}
		return out
	}

	type test struct {
		samples []model.LabeledSample
		augment bool
	}

	tests := map[string]test{
		"reversed": {
			samples: reorder(func(fv model.FeatureVector) model.FeatureVector {
				for i, j := 0, len(fv)-1; i < j; i, j = i+1, j-1 {
					fv[i], fv[j] = fv[j], fv[i]
				}
				return fv
			}),
		},
		"short": {
			samples: reorder(func(fv model.FeatureVector) model.FeatureVector {
				return fv[:len(fv)-1]
			}),
		},
		"single-short": {
			samples: append(append([]model.LabeledSample{}, samples[1:]...), model.LabeledSample{
				Features: samples[0].Features[:3],
				Risk:     samples[0].Risk,
			}),
		},
		"short-augmented": {
			samples: reorder(func(fv model.FeatureVector) model.FeatureVector {
				return fv[:len(fv)-1]
			}),
			augment: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			result, err := New(testConfig()).Train(context.Background(), tt.samples, []ml.Family{ml.LogisticRegression}, tt.augment)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, ErrTrainingFailure), err)
			assert.True(t, errors.Is(err, model.ErrFeatureMismatch), err)
		})
	}

	_, err := New(testConfig()).Train(context.Background(), samples[:1], nil, false)
	assert.True(t, errors.Is(err, ErrTrainingFailure), err)
	assert.True(t, errors.Is(err, dataset.ErrInsufficientSamples), err)
}

func TestTrainer_Exclude(t *testing.T) {
	samples := load(t)
	result, err := New(testConfig()).Train(context.Background(), samples, []ml.Family{"perceptron", ml.LogisticRegression}, false)
	require.NoError(t, err)
	assert.Equal(t, ml.LogisticRegression, result.Report.Best)
	assert.Equal(t, 1, len(result.Report.Candidates))
	assert.Contains(t, result.Report.Excluded, ml.Family("perceptron"))
	assert.Contains(t, result.Report.String(), "Excluded:")
}

func TestTrainer_Run(t *testing.T) {
	r := registry.New(t.TempDir())
	trainer := New(testConfig())

	// a single family never moves the best alias
	result, err := trainer.Run(context.Background(), Job{
		Data:     data,
		Model:    string(ml.GradientBoosting),
		Augment:  true,
		Registry: r,
	})
	require.NoError(t, err)
	assert.Equal(t, ml.GradientBoosting, result.Report.Best)
	assert.NotEmpty(t, result.Best.Manifest.Version)

	names, err := r.Names()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{string(ml.GradientBoosting)}, names)
	_, err = r.Load(registry.Best)
	assert.True(t, errors.Is(err, registry.ErrArtifactNotFound), err)

	// selecting over all the families links the winner
	best, err := trainer.Run(context.Background(), Job{
		Data:     data,
		Model:    Best,
		Registry: r,
	})
	require.NoError(t, err)
	names, err = r.Names()
	require.NoError(t, err)
	assert.Contains(t, names, registry.Best)
	assert.Contains(t, names, string(best.Report.Best))

	artifact, err := r.Load(registry.Best)
	require.NoError(t, err)
	assert.Equal(t, best.Report.Best, artifact.Manifest.Family)
	assert.Equal(t, best.Best.Manifest.Version, artifact.Manifest.Version)

	// retraining a single family keeps the selected model
	svm, err := trainer.Run(context.Background(), Job{
		Data:     data,
		Model:    string(ml.SVM),
		Registry: r,
	})
	require.NoError(t, err)
	assert.Equal(t, ml.SVM, svm.Report.Best)
	names, err = r.Names()
	require.NoError(t, err)
	assert.Contains(t, names, string(ml.SVM))

	artifact, err = r.Load(registry.Best)
	require.NoError(t, err)
	assert.Equal(t, best.Best.Manifest.Version, artifact.Manifest.Version)
	artifact, err = r.Load(string(ml.SVM))
	require.NoError(t, err)
	assert.Equal(t, svm.Best.Manifest.Version, artifact.Manifest.Version)

	type test struct {
		job Job
	}

	tests := map[string]test{
		"unknown-model": {job: Job{Data: data, Model: "perceptron", Registry: r}},
		"missing-data":  {job: Job{Data: "testdata/missing.csv", Model: Best, Registry: r}},
		"no-registry":   {job: Job{Data: data, Model: Best}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := trainer.Run(context.Background(), tt.job)
			assert.Error(t, err)
		})
	}
}

func TestJob_Families(t *testing.T) {
	families, err := Job{}.Families()
	require.NoError(t, err)
	assert.Equal(t, ml.Families, families)

	families, err = Job{Model: Best}.Families()
	require.NoError(t, err)
	assert.Equal(t, ml.Families, families)

	families, err = Job{Model: "svm"}.Families()
	require.NoError(t, err)
	assert.Equal(t, []ml.Family{ml.SVM}, families)
}
