package temporal

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-looper/algorithms/windowing"
)

// PLPConfig holds predominant local pulse parameters
type PLPConfig struct {
	WinLength int     `json:"win_length"` // Fourier tempogram window in frames
	TempoMin  float64 `json:"tempo_min"`  // Lowest tempo considered (BPM)
	TempoMax  float64 `json:"tempo_max"`  // Highest tempo considered (BPM)
}

// DefaultPLPConfig returns the standard configuration
func DefaultPLPConfig() PLPConfig {
	return PLPConfig{
		WinLength: 384,
		TempoMin:  30,
		TempoMax:  300,
	}
}

// PLP computes the predominant local pulse curve of an onset envelope.
//
// For every frame the strongest sinusoid of the Fourier tempogram (inside
// the tempo band) is kept with unit magnitude and its phase; overlap-adding
// those sinusoids back gives a pulse that stays periodic through passages
// where onsets are weak.
//
// References:
//   - Grosche, P., Müller, M. (2011). "Extracting Predominant Local Pulse
//     Information from Music Recordings". IEEE TASLP 19(6), 1688-1701
type PLP struct {
	config PLPConfig
}

// NewPLP creates a new pulse estimator
func NewPLP(config PLPConfig) *PLP {
	return &PLP{config: config}
}

// Pulse returns the non-negative pulse curve scaled so its peak is 1.
func (p *PLP) Pulse(onset []float64, sampleRate, hopSize int) ([]float64, error) {
	n := len(onset)
	win := p.config.WinLength
	if n == 0 {
		return nil, fmt.Errorf("empty onset envelope")
	}
	if win < 2 || win%2 != 0 {
		return nil, fmt.Errorf("window length must be even and at least 2: %d", win)
	}
	if sampleRate <= 0 || hopSize <= 0 {
		return nil, fmt.Errorf("invalid framing: sr=%d hop=%d", sampleRate, hopSize)
	}

	half := win / 2
	bins := win/2 + 1

	// BPM of each tempogram bin
	bpmPerBin := 60.0 * float64(sampleRate) / float64(hopSize) / float64(win)
	inBand := make([]bool, bins)
	for k := range bins {
		bpm := float64(k) * bpmPerBin
		inBand[k] = bpm >= p.config.TempoMin && bpm <= p.config.TempoMax
	}

	window := windowing.NewHann(win, false).Coefficients()
	fft := fourier.NewFFT(win)

	padded := make([]float64, n+win)
	copy(padded[half:], onset)

	// Centered frames at hop 1: one per padded start position
	numFrames := n + 1
	out := make([]float64, n+win)
	norm := make([]float64, n+win)

	frame := make([]float64, win)
	coeffs := make([]complex128, bins)
	seq := make([]float64, win)

	for t := range numFrames {
		for j := range win {
			frame[j] = padded[t+j] * window[j]
		}
		fft.Coefficients(coeffs, frame)

		peak := math.Inf(-1)
		for k, c := range coeffs {
			if !inBand[k] {
				coeffs[k] = 0
				continue
			}
			if mag := math.Log1p(1e6 * cmplx.Abs(c)); mag > peak {
				peak = mag
			}
		}

		for k, c := range coeffs {
			if c == 0 {
				continue
			}
			if math.Log1p(1e6*cmplx.Abs(c)) < peak {
				coeffs[k] = 0
				continue
			}
			coeffs[k] = c / complex(cmplx.Abs(c), 0)
		}

		fft.Sequence(seq, coeffs)
		for j := range win {
			out[t+j] += seq[j] / float64(win) * window[j]
			norm[t+j] += window[j] * window[j]
		}
	}

	pulse := make([]float64, n)
	for i := range n {
		v := out[half+i]
		if w := norm[half+i]; w > 1e-300 {
			v /= w
		}
		pulse[i] = math.Max(v, 0)
	}

	if peak := floats.Max(pulse); peak > 0 {
		floats.Scale(1/peak, pulse)
	}
	return pulse, nil
}

// Beats returns the local maxima of the pulse curve
func (p *PLP) Beats(onset []float64, sampleRate, hopSize int) ([]int, error) {
	pulse, err := p.Pulse(onset, sampleRate, hopSize)
	if err != nil {
		return nil, err
	}
	return LocalMaxima(pulse), nil
}
