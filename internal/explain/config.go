package explain

import (
	"time"
)

// Config tunes the attribution methods.
type Config struct {
	// TimeoutMs bounds every method independently, 0 disables the bound.
	TimeoutMs int `json:"timeout_ms"`

	// Samples is the coalition budget of the kernel approximation.
	Samples int `json:"samples"`

	// Background is the number of reference rows of the kernel approximation, at least MinBackground.
	Background int `json:"background"`

	// Neighbours is the number of perturbed points of the local surrogate.
	Neighbours int `json:"neighbours"`

	// TopK is the number of features the surrogate reports.
	TopK int `json:"top_k"`

	// KernelWidth of the proximity kernel, 0 means 0.75*sqrt(features).
	KernelWidth float64 `json:"kernel_width"`

	// Ridge is the regularization of the surrogate fit.
	Ridge float64 `json:"ridge"`

	Seed uint64 `json:"seed"`
}

// MinBackground is the smallest background sample of the kernel approximation.
const MinBackground = 10

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		TimeoutMs:  10000,
		Samples:    2048,
		Background: 20,
		Neighbours: 500,
		TopK:       10,
		Ridge:      1,
		Seed:       42,
	}
}

// Timeout is the time budget of a single method.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c Config) normalise() Config {
	def := DefaultConfig()
	if c.Samples <= 0 {
		c.Samples = def.Samples
	}
	if c.Background < MinBackground {
		c.Background = MinBackground
	}
	if c.Neighbours <= 0 {
		c.Neighbours = def.Neighbours
	}
	if c.TopK <= 0 {
		c.TopK = def.TopK
	}
	if c.Ridge < 0 {
		c.Ridge = 0
	}
	return c
}
