package explain

import (
	"context"
	"fmt"
	"math"

	rmath "github.com/drakos74/asthma-risk/internal/math"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// surrogate fits a proximity weighted linear model to the model output
// around the explained point.
type surrogate struct {
	f          valueFunc
	neighbours int
	width      float64
	ridge      float64
	src        rand.Source
}

// explain returns the local weights, the intercept, the output at x and the weighted fit score.
// x is expected in the standardised model input space, neighbours are drawn with unit variance.
func (s *surrogate) explain(ctx context.Context, x []float64) ([]float64, float64, float64, float64, error) {
	m := len(x)
	width := s.width
	if width <= 0 {
		width = 0.75 * math.Sqrt(float64(m))
	}
	normal := distuv.Normal{
		Mu:    0,
		Sigma: 1,
		Src:   s.src,
	}

	n := s.neighbours
	points := make([][]float64, n)
	values := make([]float64, n)
	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		if i%50 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, 0, 0, err
			}
		}
		p := make([]float64, m)
		var d2 float64
		for j := range p {
			// the first neighbour is the point itself
			if i > 0 {
				p[j] = x[j] + normal.Rand()
			} else {
				p[j] = x[j]
			}
			d2 += (p[j] - x[j]) * (p[j] - x[j])
		}
		points[i] = p
		values[i] = s.f(p)
		weights[i] = math.Exp(-d2 / (width * width))
	}

	coef, intercept, err := rmath.WeightedFit(points, values, weights, s.ridge, true)
	if err != nil {
		return nil, 0, 0, 0, fmt.Errorf("could not fit surrogate: %w", err)
	}
	fitted := make([]float64, n)
	for i, p := range points {
		v := intercept
		for j := range p {
			v += coef[j] * p[j]
		}
		fitted[i] = v
	}
	if !rmath.IsFinite(coef...) {
		return nil, 0, 0, 0, fmt.Errorf("numerical failure in surrogate fit")
	}
	return coef, intercept, values[0], rmath.WeightedR2(values, fitted, weights), nil
}
