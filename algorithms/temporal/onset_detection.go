package temporal

import (
	"fmt"
)

// OnsetDetection computes spectral-flux onset strength envelopes
type OnsetDetection struct {
	lag        int // frames between compared spectra
	windowSize int // STFT size the spectrogram came from
	hopSize    int // STFT hop the spectrogram came from
	center     bool
}

// NewOnsetDetection creates an onset detector for spectrograms produced
// with the given STFT framing.
func NewOnsetDetection(windowSize, hopSize int) *OnsetDetection {
	return &OnsetDetection{
		lag:        1,
		windowSize: windowSize,
		hopSize:    hopSize,
		center:     true,
	}
}

// Strength returns the onset strength of a frame-major (log-)spectrogram:
// the half-wave rectified difference between frame t and t-lag, averaged
// over bands.
//
// The result has one value per input frame. It is delayed by
// lag + windowSize/(2*hopSize) frames so peaks line up with the centered
// STFT frames they came from; the leading frames are zero.
func (od *OnsetDetection) Strength(spectrogram [][]float64) ([]float64, error) {
	n := len(spectrogram)
	if n == 0 {
		return nil, fmt.Errorf("empty spectrogram")
	}
	bands := len(spectrogram[0])
	if bands == 0 {
		return nil, fmt.Errorf("spectrogram has no bands")
	}

	pad := od.lag
	if od.center && od.hopSize > 0 {
		pad += od.windowSize / (2 * od.hopSize)
	}

	envelope := make([]float64, n)
	for i := pad; i < n; i++ {
		cur := i - pad + od.lag
		prev := i - pad
		if cur >= n {
			break
		}

		sum := 0.0
		for b, v := range spectrogram[cur] {
			if d := v - spectrogram[prev][b]; d > 0 {
				sum += d
			}
		}
		envelope[i] = sum / float64(bands)
	}

	return envelope, nil
}
