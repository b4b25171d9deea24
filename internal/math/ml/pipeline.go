package ml

import (
	"encoding/json"
	"fmt"
)

// Pipeline standardises the raw features and feeds them to the classifier.
type Pipeline struct {
	Descriptor Descriptor
	Scaler     *Scaler
	Classifier Classifier
}

// Fit creates and trains a pipeline of the given family.
func Fit(family Family, params Params, seed int64, x [][]float64, y []int, classes int) (*Pipeline, error) {
	scaler, err := FitScaler(x)
	if err != nil {
		return nil, err
	}
	c, err := New(family, params, seed)
	if err != nil {
		return nil, err
	}
	if err := c.Fit(scaler.TransformAll(x), y, classes); err != nil {
		return nil, fmt.Errorf("could not fit %s: %w", family, err)
	}
	return &Pipeline{
		Descriptor: Descriptor{
			Family:       family,
			Capabilities: c.Capabilities(),
			Params:       params,
		},
		Scaler:     scaler,
		Classifier: c,
	}, nil
}

// Input maps raw features to the space the classifier operates on.
func (p *Pipeline) Input(x []float64) []float64 {
	return p.Scaler.Transform(x)
}

// Scores returns the classifier scores for the raw features.
func (p *Pipeline) Scores(x []float64) []float64 {
	return p.Classifier.Scores(p.Input(x))
}

// Predict returns the class index for the raw features.
func (p *Pipeline) Predict(x []float64) int {
	return Predict(p.Classifier, p.Input(x))
}

// Capabilities of the trained classifier.
func (p *Pipeline) Capabilities() Capabilities {
	return p.Descriptor.Capabilities
}

type pipelineJSON struct {
	Descriptor Descriptor      `json:"descriptor"`
	Scaler     *Scaler         `json:"scaler"`
	Model      json.RawMessage `json:"model"`
}

func (p *Pipeline) MarshalJSON() ([]byte, error) {
	model, err := json.Marshal(p.Classifier)
	if err != nil {
		return nil, fmt.Errorf("could not encode %s: %w", p.Descriptor.Family, err)
	}
	return json.Marshal(pipelineJSON{
		Descriptor: p.Descriptor,
		Scaler:     p.Scaler,
		Model:      model,
	})
}

func (p *Pipeline) UnmarshalJSON(data []byte) error {
	var pj pipelineJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return fmt.Errorf("could not decode pipeline: %w", err)
	}
	if pj.Scaler == nil {
		return fmt.Errorf("missing scaler")
	}
	c, err := New(pj.Descriptor.Family, pj.Descriptor.Params, 0)
	if err != nil {
		return err
	}
	if err := c.UnmarshalJSON(pj.Model); err != nil {
		return err
	}
	p.Descriptor = pj.Descriptor
	// the restored classifier knows what it can do
	p.Descriptor.Capabilities = c.Capabilities()
	p.Scaler = pj.Scaler
	p.Classifier = c
	return nil
}
