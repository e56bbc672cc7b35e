package chroma

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// PitchClasses lists chroma bin names, bin 0 is C
var PitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// FilterBankConfig controls the Gaussian chroma filter bank
type FilterBankConfig struct {
	NumChroma int     `json:"num_chroma"` // Bins per octave
	Tuning    float64 `json:"tuning"`     // Deviation from A440 in fractions of a bin
	CenterOct float64 `json:"center_oct"` // Center of the octave weighting (octaves above A440/16)
	OctWidth  float64 `json:"oct_width"`  // Gaussian width in octaves, 0 disables octave weighting
	BaseC     bool    `json:"base_c"`     // Put C in bin 0 instead of A
	Threshold float64 `json:"threshold"`  // Frames whose peak is below this are left unscaled
}

// DefaultFilterBankConfig returns the standard 12-bin configuration
func DefaultFilterBankConfig() FilterBankConfig {
	return FilterBankConfig{
		NumChroma: 12,
		Tuning:    0,
		CenterOct: 5.0,
		OctWidth:  2.0,
		BaseC:     true,
		Threshold: 1e-10,
	}
}

// ChromaSTFT folds a power spectrogram onto pitch classes.
//
// Each FFT bin contributes to every chroma bin through a Gaussian bump
// centered on its fractional pitch class, so energy between semitones is
// shared instead of hard-assigned. Bins are additionally weighted by a
// Gaussian over octaves centered near C5.
type ChromaSTFT struct {
	config  FilterBankConfig
	filters [][]float64 // NumChroma x (nFFT/2+1)
}

// NewChromaSTFT builds the filter bank for an nFFT-point spectrum
func NewChromaSTFT(sampleRate, nFFT int, config FilterBankConfig) (*ChromaSTFT, error) {
	if sampleRate <= 0 || nFFT <= 1 {
		return nil, fmt.Errorf("invalid chroma parameters: sr=%d nfft=%d", sampleRate, nFFT)
	}
	if config.NumChroma <= 0 {
		return nil, fmt.Errorf("num_chroma must be positive: %d", config.NumChroma)
	}

	return &ChromaSTFT{
		config:  config,
		filters: filterBank(sampleRate, nFFT, config),
	}, nil
}

// NewChromaSTFTDefault creates a 12-bin chromagram calculator tuned to A440
func NewChromaSTFTDefault(sampleRate, nFFT int) (*ChromaSTFT, error) {
	return NewChromaSTFT(sampleRate, nFFT, DefaultFilterBankConfig())
}

// hzToOctaves maps frequency to octaves above A440/16 (A0 ~ 27.5 Hz)
func hzToOctaves(hz, tuning float64, binsPerOctave int) float64 {
	a440 := 440.0 * math.Pow(2, tuning/float64(binsPerOctave))
	return math.Log2(hz / (a440 / 16))
}

func filterBank(sampleRate, nFFT int, cfg FilterBankConfig) [][]float64 {
	nChroma := cfg.NumChroma
	nc := float64(nChroma)

	// Fractional chroma position of every FFT bin over the full circle
	frqbins := make([]float64, nFFT)
	for k := 1; k < nFFT; k++ {
		hz := float64(k) * float64(sampleRate) / float64(nFFT)
		frqbins[k] = nc * hzToOctaves(hz, cfg.Tuning, nChroma)
	}
	// DC sits 1.5 octaves below bin 1
	frqbins[0] = frqbins[1] - 1.5*nc

	binWidths := make([]float64, nFFT)
	for k := 0; k < nFFT-1; k++ {
		binWidths[k] = math.Max(frqbins[k+1]-frqbins[k], 1.0)
	}
	binWidths[nFFT-1] = 1

	half := math.Round(nc / 2)
	weights := make([][]float64, nChroma)
	for c := range weights {
		weights[c] = make([]float64, nFFT)
	}

	column := make([]float64, nChroma)
	for k := range nFFT {
		for c := range nChroma {
			d := frqbins[k] - float64(c)
			// Wrap into [-nChroma/2, nChroma/2)
			d = math.Mod(d+half+10*nc, nc)
			if d < 0 {
				d += nc
			}
			d -= half
			z := 2 * d / binWidths[k]
			column[c] = math.Exp(-0.5 * z * z)
		}

		if norm := floats.Norm(column, 2); norm > 0 {
			floats.Scale(1/norm, column)
		}

		octWeight := 1.0
		if cfg.OctWidth > 0 {
			z := (frqbins[k]/nc - cfg.CenterOct) / cfg.OctWidth
			octWeight = math.Exp(-0.5 * z * z)
		}

		for c := range nChroma {
			weights[c][k] = column[c] * octWeight
		}
	}

	if cfg.BaseC {
		shift := 3 * (nChroma / 12)
		rolled := make([][]float64, nChroma)
		for c := range nChroma {
			rolled[c] = weights[(c+shift)%nChroma]
		}
		weights = rolled
	}

	bins := nFFT/2 + 1
	for c := range weights {
		weights[c] = weights[c][:bins:bins]
	}
	return weights
}

// Filters returns the chroma filter bank (NumChroma x bins). Callers must
// not modify it.
func (cs *ChromaSTFT) Filters() [][]float64 {
	return cs.filters
}

// Compute projects frame-major power onto pitch classes and scales each
// frame so its strongest pitch class is 1.
func (cs *ChromaSTFT) Compute(power [][]float64) ([][]float64, error) {
	nChroma := cs.config.NumChroma
	bins := len(cs.filters[0])

	out := make([][]float64, len(power))
	backing := make([]float64, len(power)*nChroma)

	for t, frame := range power {
		if len(frame) != bins {
			return nil, fmt.Errorf("frame %d has %d bins, filter bank expects %d", t, len(frame), bins)
		}

		chroma := backing[t*nChroma : (t+1)*nChroma : (t+1)*nChroma]
		for c, filter := range cs.filters {
			chroma[c] = floats.Dot(filter, frame)
		}

		if peak := floats.Norm(chroma, math.Inf(1)); peak >= cs.config.Threshold && peak > 0 {
			floats.Scale(1/peak, chroma)
		}
		out[t] = chroma
	}
	return out, nil
}
