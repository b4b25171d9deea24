package math

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {

	type test struct {
		input  float64
		output string
	}

	tests := map[string]test{
		"0": {
			input:  0,
			output: "0.00",
		},
		"-1": {
			input:  -1,
			output: "-1.00",
		},
		"+1": {
			input:  1,
			output: "1.00",
		},
		"5": {
			input:  1.5555,
			output: "1.56",
		},
		"4": {
			input:  1.4444,
			output: "1.44",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := Format(tt.input)
			assert.Equal(t, tt.output, s)
		})
	}

}

func TestWeightedFit(t *testing.T) {
	// y = 2 + 3 x1 - x2
	x := make([][]float64, 0)
	y := make([]float64, 0)
	w := make([]float64, 0)
	for i := 0; i < 20; i++ {
		x1 := float64(i)
		x2 := float64(i*i%7) - 3
		x = append(x, []float64{x1, x2})
		y = append(y, 2+3*x1-x2)
		w = append(w, 1+float64(i%3))
	}

	coef, c0, err := WeightedFit(x, y, w, 0, true)
	require.NoError(t, err)
	assert.InDelta(t, 2, c0, 1e-9)
	assert.InDelta(t, 3, coef[0], 1e-9)
	assert.InDelta(t, -1, coef[1], 1e-9)

	fitted := make([]float64, len(y))
	for i := range x {
		fitted[i] = c0 + coef[0]*x[i][0] + coef[1]*x[i][1]
	}
	assert.InDelta(t, 1, WeightedR2(y, fitted, w), 1e-9)

	// ridge shrinks the coefficients
	shrunk, _, err := WeightedFit(x, y, w, 1000, true)
	require.NoError(t, err)
	assert.Less(t, math.Abs(shrunk[0]), 3.0)

	_, _, err = WeightedFit(x, y[:3], w, 0, true)
	assert.Error(t, err)
}

func TestSoftmax(t *testing.T) {
	p := Softmax([]float64{1, 2, 3})
	var sum float64
	for _, v := range p {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-12)
	assert.Equal(t, 2, Argmax(p))
	assert.Equal(t, 0, Argmax([]float64{1, 1}))
	assert.Equal(t, []float64{0.5, 0.5}, Normalize([]float64{0, 0}))
}

func TestMeanStd(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5, mean, 1e-12)
	assert.InDelta(t, 2, std, 1e-12)

	_, std = MeanStd([]float64{3})
	assert.Equal(t, 0.0, std)
}
