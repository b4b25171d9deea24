package trainer

import (
	"context"
	"fmt"

	"github.com/drakos74/asthma-risk/internal/dataset"
	"github.com/drakos74/asthma-risk/internal/math/ml"
	"github.com/drakos74/asthma-risk/internal/registry"
	"github.com/rs/zerolog/log"
)

// Best requests all the families and keeps the most accurate.
const Best = registry.Best

// Job is a training run from a labeled table into the registry.
type Job struct {
	Data     string
	Model    string
	Augment  bool
	Registry *registry.Registry
}

// Selects is true when the job compares all the families and owns the best alias.
func (j Job) Selects() bool {
	return j.Model == "" || j.Model == Best
}

// Families resolves the requested model to the families to train.
func (j Job) Families() ([]ml.Family, error) {
	if j.Selects() {
		return ml.Families, nil
	}
	family, err := ml.ParseFamily(j.Model)
	if err != nil {
		return nil, err
	}
	return []ml.Family{family}, nil
}

// Run loads the table, trains the requested families and saves the selected model
// under its family name. The best alias is only moved when all the families were compared.
func (t *Trainer) Run(ctx context.Context, job Job) (*Result, error) {
	families, err := job.Families()
	if err != nil {
		return nil, err
	}
	if job.Registry == nil {
		return nil, fmt.Errorf("no registry to save the model")
	}
	samples, err := dataset.LoadCSV(job.Data)
	if err != nil {
		return nil, fmt.Errorf("could not load data: %w", err)
	}
	validation := dataset.Validate(samples)
	for _, issue := range validation.Issues() {
		log.Warn().Str("data", job.Data).Str("issue", issue).Msg("data validation")
	}

	result, err := t.Train(ctx, samples, families, job.Augment)
	if err != nil {
		return nil, err
	}

	name := string(result.Report.Best)
	manifest, err := job.Registry.Save(result.Best, name)
	if err != nil {
		return nil, fmt.Errorf("could not save model '%s': %w", name, err)
	}
	result.Best.Manifest = manifest
	if job.Selects() {
		if err := job.Registry.Link(Best, name); err != nil {
			return nil, fmt.Errorf("could not link '%s' to '%s': %w", Best, name, err)
		}
	}
	log.Info().
		Str("model", name).
		Str("version", manifest.Version).
		Str("registry", job.Registry.Root()).
		Msg("saved model")
	return result, nil
}
