package temporal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-looper/algorithms/windowing"
)

// TempoConfig holds tempo estimation parameters
type TempoConfig struct {
	StartBPM float64 `json:"start_bpm"` // Center of the log-normal tempo prior
	StdBPM   float64 `json:"std_bpm"`   // Prior width in octaves
	ACSize   float64 `json:"ac_size"`   // Autocorrelation window in seconds
	MaxTempo float64 `json:"max_tempo"` // Tempi at or above this are never chosen
}

// DefaultTempoConfig returns the standard configuration
func DefaultTempoConfig() TempoConfig {
	return TempoConfig{
		StartBPM: 120.0,
		StdBPM:   1.0,
		ACSize:   8.0,
		MaxTempo: 320.0,
	}
}

// TempoEstimation estimates a global tempo from an onset envelope using an
// autocorrelation tempogram weighted by a log-normal prior.
type TempoEstimation struct {
	config TempoConfig
}

// NewTempoEstimation creates a new tempo estimator
func NewTempoEstimation(config TempoConfig) *TempoEstimation {
	return &TempoEstimation{config: config}
}

// TempoFrequencies returns the tempo in BPM of each autocorrelation lag.
// Lag 0 maps to +Inf.
func TempoFrequencies(numLags, hopSize, sampleRate int) []float64 {
	bpms := make([]float64, numLags)
	bpms[0] = math.Inf(1)
	for lag := 1; lag < numLags; lag++ {
		bpms[lag] = 60.0 * float64(sampleRate) / (float64(hopSize) * float64(lag))
	}
	return bpms
}

// MeanTempogram computes the autocorrelation tempogram of onset with a
// winLength-frame Hann window (one frame per onset value, centered, with
// linear ramps to zero as padding), normalizes every frame by its peak and
// returns the average over frames.
func (te *TempoEstimation) MeanTempogram(onset []float64, winLength int) ([]float64, error) {
	n := len(onset)
	if n == 0 {
		return nil, fmt.Errorf("empty onset envelope")
	}
	if winLength <= 1 {
		return nil, fmt.Errorf("window length must exceed one frame: %d", winLength)
	}

	half := winLength / 2
	padded := make([]float64, n+2*half)
	copy(padded[half:], onset)
	for j := range half {
		padded[j] = onset[0] * float64(j) / float64(half)
		padded[half+n+j] = onset[n-1] * float64(half-1-j) / float64(half)
	}

	window := windowing.NewHann(winLength, false).Coefficients()

	// Zero-padding to 2*win makes circular autocorrelation linear.
	nPad := 2 * winLength
	fft := fourier.NewFFT(nPad)
	frame := make([]float64, nPad)
	coeffs := make([]complex128, nPad/2+1)
	seq := make([]float64, nPad)

	mean := make([]float64, winLength)
	for t := range n {
		for j := range winLength {
			frame[j] = padded[t+j] * window[j]
		}

		fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			coeffs[k] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
		}
		fft.Sequence(seq, coeffs)

		ac := seq[:winLength]
		if peak := floats.Norm(ac, math.Inf(1)); peak > 1e-300 {
			floats.AddScaled(mean, 1/peak, ac)
		} else {
			floats.AddScaled(mean, 1/float64(nPad), ac)
		}
	}

	floats.Scale(1/float64(n), mean)
	return mean, nil
}

// EstimateTempo returns the most likely tempo in BPM.
func (te *TempoEstimation) EstimateTempo(onset []float64, sampleRate, hopSize int) (float64, error) {
	if sampleRate <= 0 || hopSize <= 0 {
		return 0, fmt.Errorf("invalid framing: sr=%d hop=%d", sampleRate, hopSize)
	}

	winLength := int(math.Floor(te.config.ACSize * float64(sampleRate) / float64(hopSize)))
	tg, err := te.MeanTempogram(onset, winLength)
	if err != nil {
		return 0, err
	}

	bpms := TempoFrequencies(winLength, hopSize, sampleRate)
	logStart := math.Log2(te.config.StartBPM)

	best, bestScore := -1, math.Inf(-1)
	for lag, bpm := range bpms {
		if bpm >= te.config.MaxTempo {
			continue
		}
		z := (math.Log2(bpm) - logStart) / te.config.StdBPM
		score := math.Log1p(1e6*tg[lag]) - 0.5*z*z
		if score > bestScore {
			best, bestScore = lag, score
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("no tempo below %.0f BPM fits a %d-frame window", te.config.MaxTempo, winLength)
	}

	return bpms[best], nil
}
