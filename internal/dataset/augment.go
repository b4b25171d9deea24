package dataset

import (
	"fmt"
	"math"

	"github.com/drakos74/asthma-risk/internal/model"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// NoiseScale is the standard deviation of the perturbation relative to the value magnitude.
const NoiseScale = 0.1

// Bounds are the physical limits enforced on perturbed values.
var Bounds = map[string]Range{
	model.PM25:                {0, math.Inf(1)},
	model.PM10:                {0, math.Inf(1)},
	model.Humidity:            {0, 100},
	model.MedicationAdherence: {0, 1},
}

// Augmenter creates synthetic samples by perturbing existing ones.
// The label of the source sample is kept, assuming small perturbations do not change the risk.
type Augmenter struct {
	rng    *rand.Rand
	normal distuv.Normal
}

// NewAugmenter creates a new augmenter with a reproducible random source.
func NewAugmenter(seed uint64) *Augmenter {
	src := rand.NewSource(seed)
	return &Augmenter{
		rng: rand.New(src),
		normal: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   src,
		},
	}
}

// Augment returns the given samples followed by n synthetic ones.
func (a *Augmenter) Augment(samples []model.LabeledSample, n int) ([]model.LabeledSample, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid number of synthetic samples: %d", n)
	}
	if n > 0 && len(samples) == 0 {
		return nil, fmt.Errorf("cannot augment an empty data set")
	}
	out := make([]model.LabeledSample, 0, len(samples)+n)
	out = append(out, samples...)
	for i := 0; i < n; i++ {
		source := samples[a.rng.Intn(len(samples))]
		out = append(out, a.perturb(source))
	}
	return out, nil
}

func (a *Augmenter) perturb(s model.LabeledSample) model.LabeledSample {
	features := s.Features.Clone()
	for i, f := range features {
		v := f.Value + NoiseScale*math.Abs(f.Value)*a.normal.Rand()
		if b, ok := Bounds[f.Name]; ok {
			v = math.Max(b.Min, math.Min(b.Max, v))
		}
		features[i].Value = v
	}
	var indicators map[string]bool
	if s.Indicators != nil {
		indicators = make(map[string]bool, len(s.Indicators))
		for k, v := range s.Indicators {
			indicators[k] = v
		}
	}
	return model.LabeledSample{
		Features:   features,
		Risk:       s.Risk,
		Indicators: indicators,
	}
}
