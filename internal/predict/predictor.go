// Package predict serves risk predictions from the artifacts of the model registry.
package predict

import (
	"context"
	"fmt"

	"github.com/drakos74/asthma-risk/internal/explain"
	"github.com/drakos74/asthma-risk/internal/metrics"
	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/drakos74/asthma-risk/internal/registry"
	"github.com/rs/zerolog/log"
)

// Predictor predicts the risk level of feature vectors.
// Artifacts are loaded on every call so that a newly saved model is picked up right away.
type Predictor struct {
	registry   *registry.Registry
	explain    explain.Config
	background [][]float64
	metrics    *metrics.Metrics
}

// New creates a predictor on top of the registry.
func New(r *registry.Registry) *Predictor {
	return &Predictor{
		registry: r,
		explain:  explain.DefaultConfig(),
	}
}

// WithExplainConfig sets the explanation settings.
func (p *Predictor) WithExplainConfig(cfg explain.Config) *Predictor {
	p.explain = cfg
	return p
}

// WithBackground sets raw feature rows used as the reference of the kernel attribution.
func (p *Predictor) WithBackground(rows [][]float64) *Predictor {
	p.background = rows
	return p
}

// WithMetrics counts predictions and explanation failures.
func (p *Predictor) WithMetrics(m *metrics.Metrics) *Predictor {
	p.metrics = m
	return p
}

// Predict returns the risk level for the features using the named model.
func (p *Predictor) Predict(ctx context.Context, features model.FeatureVector, name string) (*model.PredictionResult, error) {
	result, _, err := p.predict(ctx, features, name)
	return result, err
}

// Explain predicts the risk level and attaches the explanations of the predicted class.
// Explanation failures are part of the result, only prediction failures are returned.
func (p *Predictor) Explain(ctx context.Context, features model.FeatureVector, name string, method model.Method) (*model.PredictionResult, error) {
	result, artifact, err := p.predict(ctx, features, name)
	if err != nil {
		return nil, err
	}
	explainer := explain.New(artifact, p.explain).WithMetrics(p.metrics)
	if len(p.background) > 0 {
		explainer = explainer.WithBackground(p.background)
	}
	explanations := explainer.ExplainClass(ctx, features, result.ClassIndex, method)
	result.Explanations = &explanations
	return result, nil
}

func (p *Predictor) predict(ctx context.Context, features model.FeatureVector, name string) (*model.PredictionResult, *registry.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	artifact, err := p.registry.Load(name)
	if err != nil {
		return nil, nil, err
	}
	x, err := features.Align(artifact.Columns)
	if err != nil {
		return nil, nil, err
	}

	pipeline := artifact.Pipeline
	scores := pipeline.Scores(x)
	class := pipeline.Predict(x)
	label, err := artifact.Encoder.Decode(class)
	if err != nil {
		return nil, nil, fmt.Errorf("could not decode prediction of '%s': %w", name, err)
	}
	risk, err := model.ParseRisk(label)
	if err != nil {
		return nil, nil, fmt.Errorf("model '%s' predicted an unknown label: %w", name, err)
	}

	result := &model.PredictionResult{
		Model:      name,
		RiskLevel:  risk,
		ClassIndex: class,
	}
	if pipeline.Capabilities().Probabilities {
		probabilities := make(map[string]float64, len(scores))
		for k, s := range scores {
			l, err := artifact.Encoder.Decode(k)
			if err != nil {
				return nil, nil, fmt.Errorf("could not decode class %d of '%s': %w", k, name, err)
			}
			probabilities[l] = s
		}
		confidence := scores[class]
		result.Confidence = &confidence
		result.Probabilities = probabilities
	}
	result.Advice = Advice(result, features)

	p.metrics.Prediction(name, string(risk))
	log.Debug().
		Str("model", name).
		Str("family", string(artifact.Manifest.Family)).
		Str("risk", string(risk)).
		Msg("prediction")
	return result, artifact, nil
}

// FeatureImportance returns the global feature importance of the named model,
// nil when the model family has none.
func (p *Predictor) FeatureImportance(name string) (map[string]float64, error) {
	artifact, err := p.registry.Load(name)
	if err != nil {
		return nil, err
	}
	importance := artifact.Pipeline.Classifier.Importance()
	if len(importance) == 0 {
		return nil, nil
	}
	if len(importance) != len(artifact.Columns) {
		return nil, fmt.Errorf("importance of '%s' has %d values for %d columns", name, len(importance), len(artifact.Columns))
	}
	out := make(map[string]float64, len(importance))
	for j, c := range artifact.Columns {
		out[c] = importance[j]
	}
	return out, nil
}
