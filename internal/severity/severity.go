// Package severity scores symptom indicators into a risk tier.
// It is the only place the weights and thresholds live, training-time label checks
// and symptom report triage both go through it.
package severity

import (
	"math"
	"time"

	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/google/uuid"
)

const (
	Wheezing           = "wheezing"
	ShortnessOfBreath  = "shortness_of_breath"
	ChestTightness     = "chest_tightness"
	Coughing           = "coughing"
	DifficultySleeping = "difficulty_sleeping"
)

const (
	highThreshold     = 5
	moderateThreshold = 3
)

var weights = map[string]int{
	Wheezing:           3,
	ShortnessOfBreath:  3,
	ChestTightness:     2,
	Coughing:           2,
	DifficultySleeping: 1,
}

// Indicators returns the recognised indicator names.
func Indicators() []string {
	return []string{Wheezing, ShortnessOfBreath, ChestTightness, Coughing, DifficultySleeping}
}

// Weight returns the weight of the indicator, 0 for unknown names.
func Weight(indicator string) int {
	return weights[indicator]
}

// Points sums the weights of the present indicators.
// Unknown names are ignored.
func Points(indicators map[string]bool) int {
	points := 0
	for name, present := range indicators {
		if present {
			points += weights[name]
		}
	}
	return points
}

// Tier maps a points total to the risk tier.
func Tier(points int) model.Risk {
	switch {
	case points >= highThreshold:
		return model.HighRisk
	case points >= moderateThreshold:
		return model.ModerateRisk
	default:
		return model.LowRisk
	}
}

// Score returns the severity tier of the indicators.
func Score(indicators map[string]bool) model.Risk {
	return Tier(Points(indicators))
}

// Triage computes the severity of the report, assigning an id and timestamp if missing.
func Triage(report model.SymptomReport) model.SymptomReport {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now()
	}
	if report.UserID == "" {
		report.UserID = "anonymous"
	}
	report.Severity = Score(report.Symptoms)
	return report
}

// Nearby filters the reports within a rough radius of the location.
// Distance is taken in degrees and compared against radiusKm/100,
// good enough for a city-level view and nothing more.
func Nearby(reports []model.SymptomReport, loc model.Location, radiusKm float64) []model.SymptomReport {
	nearby := make([]model.SymptomReport, 0)
	limit := radiusKm / 100
	for _, r := range reports {
		if r.Location == nil {
			continue
		}
		d := math.Hypot(r.Location.Latitude-loc.Latitude, r.Location.Longitude-loc.Longitude)
		if d <= limit {
			nearby = append(nearby, r)
		}
	}
	return nearby
}

// Between filters the reports within the time window, both ends inclusive.
func Between(reports []model.SymptomReport, from, to time.Time) []model.SymptomReport {
	in := make([]model.SymptomReport, 0)
	for _, r := range reports {
		if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			in = append(in, r)
		}
	}
	return in
}
