package severity

import (
	"testing"
	"time"

	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {

	type test struct {
		indicators map[string]bool
		points     int
		risk       model.Risk
	}

	tests := map[string]test{
		"empty": {
			indicators: map[string]bool{},
			points:     0,
			risk:       model.LowRisk,
		},
		"coughing": {
			indicators: map[string]bool{Coughing: true},
			points:     2,
			risk:       model.LowRisk,
		},
		"wheezing-and-breath": {
			indicators: map[string]bool{Wheezing: true, ShortnessOfBreath: true},
			points:     6,
			risk:       model.HighRisk,
		},
		"moderate": {
			indicators: map[string]bool{Coughing: true, DifficultySleeping: true},
			points:     3,
			risk:       model.ModerateRisk,
		},
		"boundary-high": {
			indicators: map[string]bool{Wheezing: true, ChestTightness: true},
			points:     5,
			risk:       model.HighRisk,
		},
		"false-flags": {
			indicators: map[string]bool{Wheezing: false, ShortnessOfBreath: false, Coughing: true},
			points:     2,
			risk:       model.LowRisk,
		},
		"unknown-ignored": {
			indicators: map[string]bool{"sneezing": true, "headache": true, ChestTightness: true},
			points:     2,
			risk:       model.LowRisk,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.points, Points(tt.indicators))
			assert.Equal(t, tt.risk, Score(tt.indicators))
		})
	}
}

func TestScore_Monotonic(t *testing.T) {
	names := Indicators()
	// all subsets of the recognised indicators
	for mask := 0; mask < 1<<len(names); mask++ {
		base := make(map[string]bool)
		for i, n := range names {
			if mask&(1<<i) != 0 {
				base[n] = true
			}
		}
		tier := Score(base).Tier()
		for _, n := range names {
			if base[n] {
				continue
			}
			extended := make(map[string]bool, len(base)+1)
			for k, v := range base {
				extended[k] = v
			}
			extended[n] = true
			assert.GreaterOrEqual(t, Score(extended).Tier(), tier, "adding %s to %v", n, base)
		}
		// deterministic
		assert.Equal(t, Score(base), Score(base))
	}
}

func TestTriage(t *testing.T) {
	report := Triage(model.SymptomReport{
		Symptoms: map[string]bool{Wheezing: true, Coughing: true},
	})
	assert.NotEmpty(t, report.ID)
	assert.False(t, report.Timestamp.IsZero())
	assert.Equal(t, "anonymous", report.UserID)
	assert.Equal(t, model.HighRisk, report.Severity)
}

func TestNearby(t *testing.T) {
	now := time.Now()
	reports := []model.SymptomReport{
		{ID: "near", Timestamp: now, Location: &model.Location{Latitude: 18.52, Longitude: 73.85}},
		{ID: "far", Timestamp: now, Location: &model.Location{Latitude: 19.07, Longitude: 72.87}},
		{ID: "nowhere", Timestamp: now},
	}
	nearby := Nearby(reports, model.Location{Latitude: 18.53, Longitude: 73.86}, 5)
	assert.Len(t, nearby, 1)
	assert.Equal(t, "near", nearby[0].ID)

	in := Between(reports, now.Add(-time.Minute), now)
	assert.Len(t, in, 3)
	assert.Len(t, Between(reports, now.Add(time.Second), now.Add(time.Minute)), 0)
}
