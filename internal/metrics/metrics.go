package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "risk"

// Metrics holds the prometheus collectors of the training and serving paths.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	predictions         *prometheus.CounterVec
	explanationFailures *prometheus.CounterVec
	accuracy            *prometheus.GaugeVec
	duration            *prometheus.GaugeVec
}

// New creates the collectors and registers them with the given registerer, if any.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Number of predictions per model and predicted risk level.",
			}, []string{"model", "risk"}),
		explanationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "explanation_failures_total",
				Help:      "Number of failed explanations per method.",
			}, []string{"method"}),
		accuracy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "training_accuracy",
				Help:      "Accuracy of the last training run per family and split.",
			}, []string{"family", "split"}),
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "training_duration_seconds",
				Help:      "Duration of the last training run per family.",
			}, []string{"family"}),
	}
	if reg != nil {
		reg.MustRegister(m.predictions, m.explanationFailures, m.accuracy, m.duration)
	}
	return m
}

// Prediction counts a prediction of the model.
func (m *Metrics) Prediction(model, risk string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(model, risk).Inc()
}

// ExplanationFailure counts a failed explanation method.
func (m *Metrics) ExplanationFailure(method string) {
	if m == nil {
		return
	}
	m.explanationFailures.WithLabelValues(method).Inc()
}

// Accuracy records the accuracy of a family on a data split.
func (m *Metrics) Accuracy(family, split string, accuracy float64) {
	if m == nil {
		return
	}
	m.accuracy.WithLabelValues(family, split).Set(accuracy)
}

// Duration records the training duration of a family.
func (m *Metrics) Duration(family string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(family).Set(d.Seconds())
}

// Handler exposes the metrics of the gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
