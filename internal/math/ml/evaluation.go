package ml

import (
	rmath "github.com/drakos74/asthma-risk/internal/math"
	"github.com/sjwhitworth/golearn/evaluation"
)

// Evaluation holds the classification metrics of a pipeline on a data set.
type Evaluation struct {
	Samples  int                        `json:"samples"`
	Accuracy float64                    `json:"accuracy"`
	Classes  map[string]ClassMetrics    `json:"classes"`
	Matrix   evaluation.ConfusionMatrix `json:"confusion_matrix"`
}

// ClassMetrics are the per-class scores.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Summary is the textual report of the confusion matrix.
func (e Evaluation) Summary() string {
	return evaluation.GetSummary(e.Matrix)
}

// Evaluate scores the pipeline on the given rows, labels names the class indices.
func Evaluate(p *Pipeline, x [][]float64, y []int, labels []string) Evaluation {
	cm := make(evaluation.ConfusionMatrix)
	for _, l := range labels {
		cm[l] = make(map[string]int)
	}
	for i, row := range x {
		expected := labels[y[i]]
		actual := labels[p.Predict(row)]
		cm[expected][actual]++
	}
	ev := Evaluation{
		Samples: len(x),
		Classes: make(map[string]ClassMetrics, len(labels)),
		Matrix:  cm,
	}
	if len(x) == 0 {
		return ev
	}
	ev.Accuracy = evaluation.GetAccuracy(cm)
	for _, l := range labels {
		ev.Classes[l] = ClassMetrics{
			Precision: finite(evaluation.GetPrecision(l, cm)),
			Recall:    finite(evaluation.GetRecall(l, cm)),
			F1:        finite(evaluation.GetF1Score(l, cm)),
		}
	}
	return ev
}

// Accuracy is the share of rows the classifier decides correctly.
func Accuracy(p *Pipeline, x [][]float64, y []int) float64 {
	if len(x) == 0 {
		return 0
	}
	var correct int
	for i, row := range x {
		if p.Predict(row) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(x))
}

// finite maps the undefined ratios of empty classes to 0.
func finite(f float64) float64 {
	if !rmath.IsFinite(f) {
		return 0
	}
	return f
}
