package trainer

import (
	"runtime"

	"github.com/drakos74/asthma-risk/internal/math/ml"
)

// Config are the training settings.
type Config struct {
	// TestSize is the share of the rows held out for the final evaluation.
	TestSize float64 `json:"test_size"`

	// Folds is the number of cross validation folds of the grid search.
	Folds int `json:"folds"`

	Seed uint64 `json:"seed"`

	// Augment is the number of synthetic rows appended when augmentation is requested.
	Augment int `json:"augment"`

	// Parallelism bounds the number of families trained at the same time.
	Parallelism int `json:"parallelism"`

	// Grids overrides the search space per family.
	Grids map[ml.Family]ml.Grid `json:"grids,omitempty"`
}

// DefaultConfig returns the default training settings.
func DefaultConfig() Config {
	return Config{
		TestSize:    0.2,
		Folds:       5,
		Seed:        42,
		Augment:     1000,
		Parallelism: runtime.NumCPU(),
		Grids:       ml.DefaultGrids(),
	}
}

func (c Config) grid(family ml.Family) ml.Grid {
	if g, ok := c.Grids[family]; ok && len(g) > 0 {
		return g
	}
	return ml.DefaultGrids()[family]
}

func (c Config) normalise() Config {
	d := DefaultConfig()
	if c.TestSize <= 0 || c.TestSize >= 1 {
		c.TestSize = d.TestSize
	}
	if c.Folds < 2 {
		c.Folds = d.Folds
	}
	if c.Augment < 0 {
		c.Augment = 0
	}
	if c.Parallelism <= 0 {
		c.Parallelism = d.Parallelism
	}
	return c
}
