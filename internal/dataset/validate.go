package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/drakos74/asthma-risk/internal/math"
	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/drakos74/asthma-risk/internal/severity"
)

// Range is the physically plausible interval of a field.
type Range struct {
	Min float64
	Max float64
}

// Contains checks if the value is within the inclusive range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Ranges are the expected value ranges of the schema fields.
var Ranges = map[string]Range{
	model.PM25:                 {0, 1000},
	model.PM10:                 {0, 1000},
	model.Temperature:          {-50, 60},
	model.Humidity:             {0, 100},
	model.PollenLevel:          {0, 100},
	model.WindSpeed:            {0, 50},
	model.Pressure:             {900, 1100},
	model.PatientAge:           {0, 120},
	model.PatientSevereAttacks: {0, 50},
	model.MedicationAdherence:  {0, 1},
}

// Validation is the quality report of a data set.
// SeverityMismatch counts rows whose symptom indicator tier disagrees with the label.
type Validation struct {
	Samples          int                `json:"samples"`
	Distribution     map[model.Risk]int `json:"distribution"`
	OutOfRange       map[string]int     `json:"out_of_range"`
	NonFinite        int                `json:"non_finite"`
	Duplicates       int                `json:"duplicates"`
	SeverityMismatch int                `json:"severity_mismatch"`
}

// Issues lists the problems found, empty for a clean data set.
func (v Validation) Issues() []string {
	issues := make([]string, 0)
	if v.Samples == 0 {
		issues = append(issues, "no samples")
	}
	fields := make([]string, 0, len(v.OutOfRange))
	for f := range v.OutOfRange {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		r := Ranges[f]
		issues = append(issues, fmt.Sprintf("%s: %d values out of range [%v,%v]", f, v.OutOfRange[f], r.Min, r.Max))
	}
	if v.NonFinite > 0 {
		issues = append(issues, fmt.Sprintf("%d rows with non finite values", v.NonFinite))
	}
	if v.Duplicates > 0 {
		issues = append(issues, fmt.Sprintf("%d duplicate rows", v.Duplicates))
	}
	if v.SeverityMismatch > 0 {
		issues = append(issues, fmt.Sprintf("%d rows with symptom severity disagreeing with the label", v.SeverityMismatch))
	}
	for _, r := range model.Risks {
		if v.Samples > 0 && v.Distribution[r] == 0 {
			issues = append(issues, fmt.Sprintf("no samples for '%s'", r))
		}
	}
	return issues
}

func (v Validation) String() string {
	issues := v.Issues()
	if len(issues) == 0 {
		return fmt.Sprintf("%d samples %v", v.Samples, v.Distribution)
	}
	return fmt.Sprintf("%d samples %v [%s]", v.Samples, v.Distribution, strings.Join(issues, "; "))
}

// Validate checks the value ranges, the class distribution and the consistency between
// symptom indicators and labels.
func Validate(samples []model.LabeledSample) Validation {
	v := Validation{
		Samples:      len(samples),
		Distribution: make(map[model.Risk]int),
		OutOfRange:   make(map[string]int),
	}
	seen := make(map[string]bool, len(samples))
	for _, s := range samples {
		v.Distribution[s.Risk]++
		if !math.IsFinite(s.Features.Values()...) {
			v.NonFinite++
		}
		for _, f := range s.Features {
			if r, ok := Ranges[f.Name]; ok && !r.Contains(f.Value) {
				v.OutOfRange[f.Name]++
			}
		}
		key := fmt.Sprintf("%v|%s", s.Features.Values(), s.Risk)
		if seen[key] {
			v.Duplicates++
		}
		seen[key] = true
		if len(s.Indicators) > 0 && severity.Score(s.Indicators) != s.Risk {
			v.SeverityMismatch++
		}
	}
	return v
}
