package stats

import (
	"fmt"
	"math"
	"slices"
)

// PercentileMethod represents different methods for calculating percentiles
type PercentileMethod int

const (
	// Linear interpolation between closest ranks (numpy default)
	Linear PercentileMethod = iota

	// Lower value of the two closest ranks
	Lower

	// Higher value of the two closest ranks
	Higher

	// Midpoint of the two closest ranks
	Midpoint

	// Nearest rank, ties to even like numpy
	Nearest
)

// Percentiles computes order statistics over float64 samples.
//
// Rank positions follow Hyndman & Fan (1996) definition 7, the one numpy
// uses by default: h = (n-1)*q over zero-based sorted data.
type Percentiles struct {
	method PercentileMethod
}

// NewPercentiles creates a new percentile analyzer with linear interpolation method
func NewPercentiles() *Percentiles {
	return &Percentiles{method: Linear}
}

// NewPercentilesWithMethod creates a percentile analyzer with specified method
func NewPercentilesWithMethod(method PercentileMethod) *Percentiles {
	return &Percentiles{method: method}
}

// CalculatePercentile computes a single percentile value (0-100).
// The input is not modified.
func (p *Percentiles) CalculatePercentile(data []float64, percentile float64) (float64, error) {
	values, err := p.CalculatePercentiles(data, percentile)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// CalculatePercentiles computes several percentiles with a single sort.
func (p *Percentiles) CalculatePercentiles(data []float64, percentiles ...float64) ([]float64, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	for _, pc := range percentiles {
		if pc < 0 || pc > 100 || math.IsNaN(pc) {
			return nil, fmt.Errorf("percentile must be between 0 and 100: %v", pc)
		}
	}

	sorted := slices.Clone(data)
	slices.Sort(sorted)

	out := make([]float64, len(percentiles))
	for i, pc := range percentiles {
		out[i] = p.fromSorted(sorted, pc/100.0)
	}
	return out, nil
}

// Median returns the 50th percentile using linear interpolation.
func (p *Percentiles) Median(data []float64) (float64, error) {
	return NewPercentiles().CalculatePercentile(data, 50)
}

func (p *Percentiles) fromSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	h := float64(n-1) * q
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	lo = min(max(lo, 0), n-1)
	hi = min(max(hi, 0), n-1)

	switch p.method {
	case Lower:
		return sorted[lo]
	case Higher:
		return sorted[hi]
	case Midpoint:
		return (sorted[lo] + sorted[hi]) / 2
	case Nearest:
		return sorted[min(int(math.RoundToEven(h)), n-1)]
	default:
		if lo == hi {
			return sorted[lo]
		}
		fraction := h - float64(lo)
		return sorted[lo] + fraction*(sorted[hi]-sorted[lo])
	}
}

// GetMethodName returns the name of the configured method
func (p *Percentiles) GetMethodName() string {
	switch p.method {
	case Linear:
		return "linear"
	case Lower:
		return "lower"
	case Higher:
		return "higher"
	case Midpoint:
		return "midpoint"
	case Nearest:
		return "nearest"
	default:
		return "unknown"
	}
}

// Median is a package-level shortcut for NewPercentiles().Median.
func Median(data []float64) (float64, error) {
	return NewPercentiles().Median(data)
}
