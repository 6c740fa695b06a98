package usecase

import "github.com/kirillkom/prototype-classifier/internal/core/domain"

const (
	DefaultRisingEdgeThreshold = 0.1
	DefaultCoveringThreshold   = 0.8
)

// CoherenceFlag walks the vector cyclically and returns the parity of the
// number of forward differences that are positive and exceed threshold.
// It is a reproducible heuristic, not a topological invariant.
func CoherenceFlag(v domain.ProbabilityVector, threshold float64) int {
	edges := 0
	for i := range domain.CategoryCount {
		d := v[(i+1)%domain.CategoryCount] - v[i]
		if d > 0 && d > threshold {
			edges++
		}
	}
	return edges % 2
}

// CoveringCount counts the non-empty index subsets (bitmasks 1..127) whose
// probability mass reaches threshold. The enumeration is exponential in the
// category count and relies on that count being fixed.
func CoveringCount(v domain.ProbabilityVector, threshold float64) int {
	const subsets = 1 << domain.CategoryCount
	count := 0
	for mask := 1; mask < subsets; mask++ {
		var mass float64
		for i := range domain.CategoryCount {
			if mask&(1<<i) != 0 {
				mass += v[i]
			}
		}
		if mass >= threshold {
			count++
		}
	}
	return count
}
