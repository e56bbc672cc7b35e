package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp for real-input transforms
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the full complex spectrum of a real frame.
// go-dsp handles non-power-of-two sizes with Bluestein's algorithm.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// PowerInto writes |X[k]|^2 for k in [0, len(x)/2] into dst and returns it.
// dst is reallocated only when it is too short.
func (f *FFT) PowerInto(dst []float64, x []float64) []float64 {
	bins := len(x)/2 + 1
	if cap(dst) < bins {
		dst = make([]float64, bins)
	}
	dst = dst[:bins]
	if len(x) == 0 {
		return dst[:0]
	}

	spectrum := fft.FFTReal(x)
	for k := range bins {
		re, im := real(spectrum[k]), imag(spectrum[k])
		dst[k] = re*re + im*im
	}
	return dst
}

// ComputeInverseReal computes the inverse FFT and returns the real part only
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))
	for i, val := range result {
		realResult[i] = real(val)
	}
	return realResult
}
