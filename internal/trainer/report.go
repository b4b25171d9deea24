package trainer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	rmath "github.com/drakos74/asthma-risk/internal/math"
	"github.com/drakos74/asthma-risk/internal/math/ml"
	"github.com/drakos74/asthma-risk/internal/model"
)

// Candidate is the best configuration found for a family.
type Candidate struct {
	Family     ml.Family     `json:"family"`
	Params     ml.Params     `json:"best_params"`
	Accuracy   float64       `json:"accuracy"`
	CVMean     float64       `json:"cv_mean"`
	CVStd      float64       `json:"cv_std"`
	CVScores   []float64     `json:"cv_scores"`
	Evaluation ml.Evaluation `json:"evaluation"`
	Duration   time.Duration `json:"duration"`
	Pipeline   *ml.Pipeline  `json:"-"`
}

// Stat summarises the values of a feature.
type Stat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Insight describes the feature distribution of a risk level.
type Insight struct {
	Risk     string          `json:"risk"`
	Samples  int             `json:"samples"`
	Features map[string]Stat `json:"features"`
}

// Report is the comparison of the trained families.
// Candidates are ordered from best to worst.
type Report struct {
	Samples    int                  `json:"samples"`
	Augmented  int                  `json:"augmented"`
	Train      int                  `json:"train"`
	Test       int                  `json:"test"`
	Best       ml.Family            `json:"best"`
	Candidates []Candidate          `json:"candidates"`
	Excluded   map[ml.Family]string `json:"excluded,omitempty"`
	Insights   []Insight            `json:"insights"`
}

// Candidate returns the result of the given family.
func (r Report) Candidate(family ml.Family) (Candidate, bool) {
	for _, c := range r.Candidates {
		if c.Family == family {
			return c, true
		}
	}
	return Candidate{}, false
}

func (r Report) String() string {
	var sb strings.Builder
	line := strings.Repeat("=", 60)
	sb.WriteString(fmt.Sprintf("samples: %d (augmented: %d) train: %d test: %d\n", r.Samples, r.Augmented, r.Train, r.Test))
	sb.WriteString(fmt.Sprintf("%s\nMODEL COMPARISON\n%s\n", line, line))
	for _, c := range r.Candidates {
		sb.WriteString(fmt.Sprintf("\n%s:\n", c.Family))
		sb.WriteString(fmt.Sprintf("  Test Accuracy: %s\n", rmath.FormatN(c.Accuracy, 4)))
		sb.WriteString(fmt.Sprintf("  CV Score: %s (+/- %s)\n", rmath.FormatN(c.CVMean, 4), rmath.FormatN(2*c.CVStd, 4)))
		sb.WriteString(fmt.Sprintf("  Best Parameters: %s\n", c.Params.String()))
		sb.WriteString(fmt.Sprintf("  Duration: %v\n", c.Duration.Round(time.Millisecond)))
		sb.WriteString("  Classification Report:\n")
		sb.WriteString(c.Evaluation.Summary())
	}
	if len(r.Excluded) > 0 {
		families := make([]string, 0, len(r.Excluded))
		for f := range r.Excluded {
			families = append(families, string(f))
		}
		sort.Strings(families)
		sb.WriteString("\nExcluded:\n")
		for _, f := range families {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", f, r.Excluded[ml.Family(f)]))
		}
	}
	if best, ok := r.Candidate(r.Best); ok {
		sb.WriteString(fmt.Sprintf("\nBest Model: %s\nBest Accuracy: %s\n", best.Family, rmath.FormatN(best.Accuracy, 4)))
	}

	sb.WriteString(fmt.Sprintf("\n%s\nRISK FACTOR INSIGHTS\n%s\n", line, line))
	for _, in := range r.Insights {
		sb.WriteString(fmt.Sprintf("\n%s Risk Level Statistics (%d samples):\n", in.Risk, in.Samples))
		for _, f := range model.Fields {
			s, ok := in.Features[f]
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("  %-32s mean=%-10s std=%-10s min=%-10s max=%s\n", f,
				rmath.Format(s.Mean), rmath.Format(s.Std), rmath.Format(s.Min), rmath.Format(s.Max)))
		}
	}
	return sb.String()
}

// insights computes the feature statistics per class.
func insights(x [][]float64, y []int, classes []string) []Insight {
	out := make([]Insight, 0, len(classes))
	for k, class := range classes {
		group := make([][]float64, 0)
		for i, c := range y {
			if c == k {
				group = append(group, x[i])
			}
		}
		in := Insight{
			Risk:     class,
			Samples:  len(group),
			Features: make(map[string]Stat, len(model.Fields)),
		}
		if len(group) == 0 {
			out = append(out, in)
			continue
		}
		for j, f := range model.Fields {
			column := rmath.Column(group, j)
			mean, std := rmath.MeanStd(column)
			s := Stat{Mean: mean, Std: std, Min: column[0], Max: column[0]}
			for _, v := range column {
				if v < s.Min {
					s.Min = v
				}
				if v > s.Max {
					s.Max = v
				}
			}
			in.Features[f] = s
		}
		out = append(out, in)
	}
	return out
}
