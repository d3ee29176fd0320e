// Package hpd estimates highest-posterior-density credible intervals from
// finite, unsorted samples.
//
// The estimator is the empirical one: sort the samples, take k = ceil(mass*n)
// consecutive order statistics and report the narrowest such window. For a
// multimodal sample it returns the narrowest contiguous window, which can hide
// a second mode.
package hpd

import (
	"errors"
	"math"
	"slices"
)

// Masses used for the two summary intervals.
const (
	Mass50 = 0.5
	Mass90 = 0.9
)

var (
	// ErrEmpty is returned when no finite sample is available.
	ErrEmpty = errors.New("hpd: empty sample set")
	// ErrMass is returned for a mass outside the open interval (0, 1).
	ErrMass = errors.New("hpd: mass must be in (0, 1)")
)

// Interval returns the shortest interval [lo, hi] holding at least
// ceil(mass*n) of the samples. NaN samples are ignored and samples is not
// modified. When several windows share the minimal width the lowest one wins.
func Interval(samples []float64, mass float64) (lo, hi float64, err error) {
	if !(mass > 0 && mass < 1) {
		return 0, 0, ErrMass
	}
	sorted := make([]float64, 0, len(samples))
	for _, v := range samples {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return 0, 0, ErrEmpty
	}
	slices.Sort(sorted)
	lo, hi = IntervalSorted(sorted, mass)
	return lo, hi, nil
}

// IntervalSorted is Interval for samples that are already sorted ascending
// and free of NaN. It panics on an empty slice.
func IntervalSorted(sorted []float64, mass float64) (lo, hi float64) {
	n := len(sorted)
	k := WindowSize(n, mass)

	best := 0
	bestWidth := sorted[k-1] - sorted[0]
	for i := 1; i+k-1 < n; i++ {
		// strict comparison keeps the first minimal window
		if w := sorted[i+k-1] - sorted[i]; w < bestWidth {
			best, bestWidth = i, w
		}
	}
	return sorted[best], sorted[best+k-1]
}

// WindowSize is the number of order statistics an interval of the given mass
// must span for n samples: ceil(mass*n), clamped to [1, n].
func WindowSize(n int, mass float64) int {
	// 1e-9 absorbs products like 0.6*5 landing a hair above an integer
	k := int(math.Ceil(mass*float64(n) - 1e-9))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}
