package stats

import (
	"fmt"
)

// MedianInPlace returns the median of data, reordering it. Even-length
// input averages the two middle values, matching numpy.median.
func MedianInPlace(data []float64) (float64, error) {
	n := len(data)
	if n == 0 {
		return 0, fmt.Errorf("empty data")
	}

	upper := SelectInPlace(data, n/2)
	if n%2 == 1 {
		return upper, nil
	}

	// After selection everything left of n/2 is <= upper.
	lower := data[0]
	for _, v := range data[1 : n/2] {
		if v > lower {
			lower = v
		}
	}
	return (lower + upper) / 2, nil
}

// SelectInPlace partially sorts data so data[k] holds the k-th smallest
// value, with smaller values before it and larger after. It returns data[k].
func SelectInPlace(data []float64, k int) float64 {
	lo, hi := 0, len(data)-1
	for lo < hi {
		// Median of three pivot.
		mid := lo + (hi-lo)/2
		if data[mid] < data[lo] {
			data[mid], data[lo] = data[lo], data[mid]
		}
		if data[hi] < data[lo] {
			data[hi], data[lo] = data[lo], data[hi]
		}
		if data[hi] < data[mid] {
			data[hi], data[mid] = data[mid], data[hi]
		}
		pivot := data[mid]

		i, j := lo, hi
		for i <= j {
			for data[i] < pivot {
				i++
			}
			for data[j] > pivot {
				j--
			}
			if i <= j {
				data[i], data[j] = data[j], data[i]
				i++
				j--
			}
		}

		switch {
		case k <= j:
			hi = j
		case k >= i:
			lo = i
		default:
			return data[k]
		}
	}
	return data[k]
}
