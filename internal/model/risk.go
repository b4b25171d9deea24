package model

import (
	"fmt"
	"strings"
)

// Risk is the categorical risk label.
type Risk string

const (
	NoRisk       Risk = ""
	LowRisk      Risk = "Low"
	ModerateRisk Risk = "Moderate"
	HighRisk     Risk = "High"
)

// Risks lists the valid labels from lowest to highest tier.
var Risks = []Risk{LowRisk, ModerateRisk, HighRisk}

// ParseRisk parses a label in a case-insensitive way.
func ParseRisk(s string) (Risk, error) {
	for _, r := range Risks {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return r, nil
		}
	}
	return NoRisk, fmt.Errorf("'%s': %w", s, ErrUnknownLabel)
}

// Tier returns the ordinal position of the risk, -1 for an invalid one.
func (r Risk) Tier() int {
	for i, rr := range Risks {
		if r == rr {
			return i
		}
	}
	return -1
}

// LabeledSample is a training row.
// Indicators is optional and only set when the source table carries symptom columns.
type LabeledSample struct {
	Features   FeatureVector   `json:"features"`
	Risk       Risk            `json:"risk_label"`
	Indicators map[string]bool `json:"indicators,omitempty"`
}

// Matrix splits the samples into the raw value matrix and the label column.
func Matrix(samples []LabeledSample) ([][]float64, []string) {
	x := make([][]float64, len(samples))
	y := make([]string, len(samples))
	for i, s := range samples {
		x[i] = s.Features.Values()
		y[i] = string(s.Risk)
	}
	return x, y
}
