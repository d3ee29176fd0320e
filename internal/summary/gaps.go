package summary

import (
	"math"
	"slices"

	"github.com/montanaflynn/stats"
)

// MedianStep returns the median spacing of consecutive sorted times,
// truncated to whole seconds. It is 0 for fewer than two times.
func MedianStep(times []int64) int64 {
	if len(times) < 2 {
		return 0
	}
	sorted := slices.Clone(times)
	slices.Sort(sorted)
	diffs := make(stats.Float64Data, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		diffs[i-1] = float64(sorted[i] - sorted[i-1])
	}
	med, err := diffs.Median()
	if err != nil {
		return 0
	}
	return int64(med)
}

// MissingTimes returns the times expected at multiples of step inside every
// gap between consecutive observed times that is wider than step+tol.
func MissingTimes(times []int64, step, tol int64) []int64 {
	if step <= 0 || len(times) < 2 {
		return nil
	}
	sorted := slices.Clone(times)
	slices.Sort(sorted)
	var missing []int64
	for i := 0; i+1 < len(sorted); i++ {
		diff := sorted[i+1] - sorted[i]
		if diff <= step+tol {
			continue
		}
		n := int64(math.Ceil(float64(diff)/float64(step))) - 1
		for k := int64(1); k <= n; k++ {
			missing = append(missing, sorted[i]+k*step)
		}
	}
	return missing
}
