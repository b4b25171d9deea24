package ml

import (
	"encoding/json"
	"fmt"
	"math"

	rmath "github.com/drakos74/asthma-risk/internal/math"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/optimize"
)

// Logistic is a multinomial logistic regression minimising the l2 regularised cross entropy with L-BFGS.
type Logistic struct {
	params Params
	// theta holds one row per class, the intercept first.
	theta [][]float64
}

// NewLogistic creates a logistic regression classifier.
// Recognised params are regularization and iterations.
func NewLogistic(params Params) *Logistic {
	return &Logistic{
		params: params,
	}
}

func (l *Logistic) Fit(x [][]float64, y []int, classes int) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("invalid training data: x=%d y=%d", len(x), len(y))
	}
	if classes < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", classes)
	}
	for i, c := range y {
		if c < 0 || c >= classes {
			return fmt.Errorf("invalid class %d at row %d", c, i)
		}
	}
	loss := &crossEntropy{
		x:       x,
		y:       y,
		classes: classes,
		dim:     len(x[0]) + 1,
		lambda:  l.params.Get("regularization", 0),
	}
	settings := &optimize.Settings{
		MajorIterations:   l.params.Int("iterations", 300),
		GradientThreshold: 1e-6,
	}
	result, err := optimize.Minimize(optimize.Problem{
		Func: loss.value,
		Grad: loss.gradient,
	}, make([]float64, classes*loss.dim), settings, &optimize.LBFGS{})
	if result == nil {
		return fmt.Errorf("could not train logistic regression: %w", err)
	}
	if err != nil {
		// an iteration limit or a stalled line search still leaves a usable minimiser
		log.Debug().Err(err).Str("status", result.Status.String()).Str("params", l.params.String()).Msg("logistic regression stopped early")
	}
	if !rmath.IsFinite(result.F) || !rmath.IsFinite(result.X...) {
		return fmt.Errorf("numerical failure in logistic regression: loss=%v", result.F)
	}
	theta := make([][]float64, classes)
	for k := range theta {
		theta[k] = append([]float64{}, result.X[k*loss.dim:(k+1)*loss.dim]...)
	}
	l.theta = theta
	return nil
}

// crossEntropy is the mean softmax cross entropy over the rows plus lambda/2*|w|^2 on the
// non intercept weights. The parameters are laid out class by class, the intercept first.
type crossEntropy struct {
	x       [][]float64
	y       []int
	classes int
	dim     int
	lambda  float64
}

// probabilities fills p with the class probabilities of the row and returns the log normaliser.
func (c *crossEntropy) probabilities(theta, row, p []float64) float64 {
	max := math.Inf(-1)
	for k := 0; k < c.classes; k++ {
		w := theta[k*c.dim : (k+1)*c.dim]
		m := w[0]
		for j, v := range row {
			m += w[j+1] * v
		}
		p[k] = m
		if m > max {
			max = m
		}
	}
	var sum float64
	for k := range p {
		p[k] = math.Exp(p[k] - max)
		sum += p[k]
	}
	for k := range p {
		p[k] /= sum
	}
	return max + math.Log(sum)
}

func (c *crossEntropy) value(theta []float64) float64 {
	p := make([]float64, c.classes)
	var loss float64
	for i, row := range c.x {
		lse := c.probabilities(theta, row, p)
		w := theta[c.y[i]*c.dim : (c.y[i]+1)*c.dim]
		m := w[0]
		for j, v := range row {
			m += w[j+1] * v
		}
		loss += lse - m
	}
	loss /= float64(len(c.x))
	return loss + c.penalty(theta)
}

func (c *crossEntropy) penalty(theta []float64) float64 {
	if c.lambda == 0 {
		return 0
	}
	var sum float64
	for k := 0; k < c.classes; k++ {
		for j := 1; j < c.dim; j++ {
			v := theta[k*c.dim+j]
			sum += v * v
		}
	}
	return c.lambda / 2 * sum
}

func (c *crossEntropy) gradient(grad, theta []float64) {
	for i := range grad {
		grad[i] = 0
	}
	p := make([]float64, c.classes)
	n := float64(len(c.x))
	for i, row := range c.x {
		c.probabilities(theta, row, p)
		for k := 0; k < c.classes; k++ {
			r := p[k]
			if k == c.y[i] {
				r--
			}
			r /= n
			g := grad[k*c.dim : (k+1)*c.dim]
			g[0] += r
			for j, v := range row {
				g[j+1] += r * v
			}
		}
	}
	if c.lambda == 0 {
		return
	}
	for k := 0; k < c.classes; k++ {
		for j := 1; j < c.dim; j++ {
			grad[k*c.dim+j] += c.lambda * theta[k*c.dim+j]
		}
	}
}

// Scores returns the class probabilities.
func (l *Logistic) Scores(x []float64) []float64 {
	return rmath.Softmax(l.margins(x))
}

func (l *Logistic) margins(x []float64) []float64 {
	m := make([]float64, len(l.theta))
	for k, p := range l.theta {
		sum := p[0]
		for j := range x {
			sum += x[j] * p[j+1]
		}
		m[k] = sum
	}
	return m
}

func (l *Logistic) Capabilities() Capabilities {
	return Capabilities{
		Probabilities: true,
	}
}

func (l *Logistic) Ensemble() *Ensemble {
	return nil
}

// Importance is the mean absolute coefficient of every feature across the classes.
func (l *Logistic) Importance() []float64 {
	if len(l.theta) == 0 {
		return nil
	}
	imp := make([]float64, len(l.theta[0])-1)
	for _, p := range l.theta {
		for j := range imp {
			v := p[j+1]
			if v < 0 {
				v = -v
			}
			imp[j] += v
		}
	}
	return rmath.Normalize(imp)
}

type logisticJSON struct {
	Params Params      `json:"params"`
	Theta  [][]float64 `json:"theta"`
}

func (l *Logistic) MarshalJSON() ([]byte, error) {
	if len(l.theta) == 0 {
		return nil, fmt.Errorf("logistic regression is not trained")
	}
	return json.Marshal(logisticJSON{
		Params: l.params,
		Theta:  l.theta,
	})
}

func (l *Logistic) UnmarshalJSON(data []byte) error {
	var lj logisticJSON
	if err := json.Unmarshal(data, &lj); err != nil {
		return fmt.Errorf("could not decode logistic regression: %w", err)
	}
	if len(lj.Theta) == 0 {
		return fmt.Errorf("missing coefficients")
	}
	l.params = lj.Params
	l.theta = lj.Theta
	return nil
}
