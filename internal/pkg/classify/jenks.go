// Package classify groups hex counts into natural-break classes for map styling.
package classify

import (
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultClasses is the class count used when none is requested.
	DefaultClasses = 5
	// MaxClasses is the largest class count with a distinct palette colour.
	MaxClasses = 5
)

// ValidateClasses checks a requested class count. Zero means unclassified.
func ValidateClasses(n int) error {
	if n < 0 || n > MaxClasses {
		return fmt.Errorf("classes must be between 0 and %d", MaxClasses)
	}
	return nil
}

// JenksBreaks returns the Jenks natural breaks of values as a sorted list of
// distinct break points, including the minimum and maximum. When there are no
// more values than classes, the distinct sorted values are returned.
// nClasses is clamped to MaxClasses.
func JenksBreaks(values []float64, nClasses int) []float64 {
	if nClasses < 1 {
		nClasses = DefaultClasses
	}
	nClasses = min(nClasses, MaxClasses)
	data := append([]float64(nil), values...)
	sort.Float64s(data)
	n := len(data)
	if n == 0 {
		return nil
	}
	if n <= nClasses {
		return distinct(data)
	}

	lower := make([][]int, n+1)
	variances := make([][]float64, n+1)
	for i := range lower {
		lower[i] = make([]int, nClasses+1)
		variances[i] = make([]float64, nClasses+1)
		for j := range variances[i] {
			variances[i][j] = math.Inf(1)
		}
	}
	variances[1][1] = 0

	for i := 2; i <= n; i++ {
		var s1, s2, w float64
		for m := 1; m <= i; m++ {
			i3 := i - m + 1
			val := data[i3-1]
			s1 += val
			s2 += val * val
			w++
			variance := s2 - (s1*s1)/w
			if i3 > 1 {
				for j := 2; j <= nClasses; j++ {
					if candidate := variance + variances[i3-1][j-1]; variances[i][j] >= candidate {
						lower[i][j] = i3
						variances[i][j] = candidate
					}
				}
			}
			lower[i][1] = 1
			variances[i][1] = variance
		}
	}

	breaks := []float64{data[n-1]}
	k := n
	for j := nClasses; j > 1; j-- {
		idx := lower[k][j] - 1
		if idx < 0 {
			idx = 0
		}
		breaks = append(breaks, data[idx])
		k = lower[k][j] - 1
		if k < 1 {
			k = 1
		}
	}
	breaks = append(breaks, data[0])

	sort.Float64s(breaks)
	return distinct(breaks)
}

// ClassIndex returns the class of v for breaks produced by JenksBreaks. Each
// break is the lower bound of its class; the top class includes the maximum.
func ClassIndex(breaks []float64, v float64) int {
	classes := len(breaks) - 1
	if classes < 1 {
		return 0
	}
	for i := classes - 1; i > 0; i-- {
		if v >= breaks[i] {
			return i
		}
	}
	return 0
}

func distinct(sorted []float64) []float64 {
	out := make([]float64, 0, len(sorted))
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}
