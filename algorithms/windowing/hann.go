package windowing

import (
	"fmt"
	"math"
)

// Hann represents a Hann window function
type Hann struct {
	size         int
	symmetric    bool
	coefficients []float64
}

// NewHann creates a new Hann window. Spectral analysis wants the periodic
// form (symmetric=false); filtering wants the symmetric one.
func NewHann(size int, symmetric bool) *Hann {
	h := &Hann{
		size:      size,
		symmetric: symmetric,
	}
	h.generate()
	return h
}

func (h *Hann) generate() {
	h.coefficients = make([]float64, h.size)
	if h.size == 1 {
		h.coefficients[0] = 1
		return
	}

	denominator := float64(h.size)
	if h.symmetric {
		denominator = float64(h.size - 1)
	}

	for i := range h.size {
		h.coefficients[i] = 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/denominator))
	}
}

// ApplyInPlace applies the window to a signal in-place
func (h *Hann) ApplyInPlace(signal []float64) error {
	if len(signal) != h.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), h.size)
	}

	for i, c := range h.coefficients {
		signal[i] *= c
	}
	return nil
}

// Coefficients returns the window coefficients. Callers must not modify
// the returned slice.
func (h *Hann) Coefficients() []float64 {
	return h.coefficients
}

// Size returns the window size
func (h *Hann) Size() int {
	return h.size
}

// SumSquares returns the sum of squared coefficients, the overlap-add
// normalizer for a hop of one sample.
func (h *Hann) SumSquares() float64 {
	sum := 0.0
	for _, c := range h.coefficients {
		sum += c * c
	}
	return sum
}
