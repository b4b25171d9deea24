package math

import (
	"math"
	"strconv"
)

// Format formats a float based on the given precision
func Format(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// FormatN formats a float with n decimals.
func FormatN(f float64, n int) string {
	return strconv.FormatFloat(f, 'f', n, 64)
}

func ToInt(ff []float64) []int {
	ii := make([]int, len(ff))
	for i, f := range ff {
		ii[i] = int(f)
	}
	return ii
}

func ToFloat(ii []int) []float64 {
	ff := make([]float64, len(ii))
	for f, i := range ii {
		ff[f] = float64(i)
	}
	return ff
}

// Argmax returns the index of the largest value, the first one on ties.
func Argmax(ff []float64) int {
	idx := -1
	max := math.Inf(-1)
	for i, f := range ff {
		if f > max {
			max = f
			idx = i
		}
	}
	return idx
}

// Softmax turns raw scores into a probability distribution.
func Softmax(ff []float64) []float64 {
	out := make([]float64, len(ff))
	if len(ff) == 0 {
		return out
	}
	max := ff[Argmax(ff)]
	var sum float64
	for i, f := range ff {
		out[i] = math.Exp(f - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Normalize scales non-negative values so that they sum up to 1.
// A zero vector becomes the uniform distribution.
func Normalize(ff []float64) []float64 {
	out := make([]float64, len(ff))
	var sum float64
	for _, f := range ff {
		sum += f
	}
	for i, f := range ff {
		if sum == 0 {
			out[i] = 1 / float64(len(ff))
			continue
		}
		out[i] = f / sum
	}
	return out
}

// IsFinite checks all values are real numbers.
func IsFinite(ff ...float64) bool {
	for _, f := range ff {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Clip bounds the value to the [min,max] range.
func Clip(f, min, max float64) float64 {
	return math.Max(min, math.Min(max, f))
}
