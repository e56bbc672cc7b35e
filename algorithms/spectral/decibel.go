package spectral

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-looper/algorithms/stats"
)

// DefaultAmin is the power floor used before taking logarithms
const DefaultAmin = 1e-10

// PowerToDBInPlace converts a power matrix to dB relative to ref:
//
//	10*log10(max(amin, S)) - 10*log10(max(amin, ref))
//
// When topDB > 0 the result is floored at (peak - topDB).
func PowerToDBInPlace(power [][]float64, ref, amin, topDB float64) error {
	if amin <= 0 {
		return fmt.Errorf("amin must be strictly positive")
	}
	if topDB < 0 {
		return fmt.Errorf("top_db must be non-negative")
	}

	refDB := 10 * math.Log10(math.Max(amin, math.Abs(ref)))
	peak := math.Inf(-1)

	for _, frame := range power {
		for k, v := range frame {
			db := 10*math.Log10(math.Max(amin, v)) - refDB
			frame[k] = db
			if db > peak {
				peak = db
			}
		}
	}

	if topDB > 0 {
		floor := peak - topDB
		for _, frame := range power {
			for k, v := range frame {
				if v < floor {
					frame[k] = floor
				}
			}
		}
	}
	return nil
}

// MedianPower returns the median over every cell of a power matrix
func MedianPower(power [][]float64) (float64, error) {
	total := 0
	for _, frame := range power {
		total += len(frame)
	}
	flat := make([]float64, 0, total)
	for _, frame := range power {
		flat = append(flat, frame...)
	}
	return stats.MedianInPlace(flat)
}
