package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
)

// ErrInsufficientSamples is returned when a class is too small to be stratified.
var ErrInsufficientSamples = errors.New("insufficient samples")

// strata groups the row indices by class in a stable order.
func strata(labels []int) ([]int, map[int][]int) {
	groups := make(map[int][]int)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}
	classes := make([]int, 0, len(groups))
	for c := range groups {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes, groups
}

// Split partitions the row indices into a train and a test set preserving the class ratios.
// Every class needs at least 2 rows so that it is present on both sides.
func Split(labels []int, testSize float64, seed uint64) ([]int, []int, error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("invalid test size %v", testSize)
	}
	rng := rand.New(rand.NewSource(seed))
	classes, groups := strata(labels)
	train := make([]int, 0, len(labels))
	test := make([]int, 0, len(labels))
	for _, c := range classes {
		idx := groups[c]
		if len(idx) < 2 {
			return nil, nil, fmt.Errorf("class %d has %d samples: %w", c, len(idx), ErrInsufficientSamples)
		}
		rng.Shuffle(len(idx), func(i, j int) {
			idx[i], idx[j] = idx[j], idx[i]
		})
		n := int(math.Round(float64(len(idx)) * testSize))
		if n < 1 {
			n = 1
		}
		if n > len(idx)-1 {
			n = len(idx) - 1
		}
		test = append(test, idx[:n]...)
		train = append(train, idx[n:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// Folds deals the row indices into k stratified folds.
// The returned slices hold the validation rows of every fold.
func Folds(labels []int, k int, seed uint64) ([][]int, error) {
	if k < 2 || k > len(labels) {
		return nil, fmt.Errorf("invalid number of folds %d for %d samples", k, len(labels))
	}
	rng := rand.New(rand.NewSource(seed))
	classes, groups := strata(labels)
	folds := make([][]int, k)
	next := 0
	for _, c := range classes {
		idx := groups[c]
		rng.Shuffle(len(idx), func(i, j int) {
			idx[i], idx[j] = idx[j], idx[i]
		})
		for _, i := range idx {
			folds[next] = append(folds[next], i)
			next = (next + 1) % k
		}
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds, nil
}

// Complement returns the indices in [0,n) that are not part of the given set.
func Complement(n int, set []int) []int {
	in := make(map[int]bool, len(set))
	for _, i := range set {
		in[i] = true
	}
	out := make([]int, 0, n-len(set))
	for i := 0; i < n; i++ {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}
