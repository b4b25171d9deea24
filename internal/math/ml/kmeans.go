package ml

import (
	"fmt"
	"io"

	"github.com/cdipaolo/goml/cluster"
	rmath "github.com/drakos74/asthma-risk/internal/math"
)

// Summarize compresses the rows into at most k centroids with k-means.
// The weights are the share of the rows assigned to every centroid and sum up to 1.
func Summarize(rows [][]float64, k, iterations int) ([][]float64, []float64, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no rows to summarize")
	}
	if k <= 0 {
		return nil, nil, fmt.Errorf("invalid number of centroids %d", k)
	}
	if len(rows) <= k {
		centroids := make([][]float64, len(rows))
		weights := make([]float64, len(rows))
		for i, row := range rows {
			centroids[i] = append([]float64{}, row...)
			weights[i] = 1 / float64(len(rows))
		}
		return centroids, weights, nil
	}

	data := make([][]float64, len(rows))
	for i, row := range rows {
		data[i] = append([]float64{}, row...)
	}
	model := cluster.NewKMeans(k, iterations, data)
	model.Output = io.Discard
	if err := model.Learn(); err != nil {
		return nil, nil, fmt.Errorf("could not cluster rows: %w", err)
	}

	counts := make([]int, len(model.Centroids))
	for _, g := range model.Guesses() {
		if g >= 0 && g < len(counts) {
			counts[g]++
		}
	}
	centroids := make([][]float64, 0, k)
	weights := make([]float64, 0, k)
	total := 0
	for c, centroid := range model.Centroids {
		if counts[c] == 0 || !rmath.IsFinite(centroid...) {
			continue
		}
		centroids = append(centroids, append([]float64{}, centroid...))
		weights = append(weights, float64(counts[c]))
		total += counts[c]
	}
	if total == 0 {
		return nil, nil, fmt.Errorf("no valid centroid")
	}
	for i := range weights {
		weights[i] /= float64(total)
	}
	return centroids, weights, nil
}
