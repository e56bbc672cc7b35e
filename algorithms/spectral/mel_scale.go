package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above
const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27.0

// MelScale builds Slaney-style mel filter banks (Auditory Toolbox
// compatible, area normalized)
type MelScale struct {
	filters []melFilter
	nFFT    int
}

// melFilter stores one triangular filter as its non-zero span
type melFilter struct {
	start   int
	weights []float64
}

// HzToMel converts frequency in Hz to the Slaney mel scale
func HzToMel(hz float64) float64 {
	if hz >= melMinLogHz {
		return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
	}
	return hz / melFSp
}

// MelToHz converts Slaney mel to frequency in Hz
func MelToHz(mel float64) float64 {
	if mel >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
	}
	return melFSp * mel
}

// NewMelScale creates a filter bank of numFilters triangles spanning
// [lowFreq, highFreq] over an nFFT-point spectrum.
func NewMelScale(numFilters, nFFT, sampleRate int, lowFreq, highFreq float64) (*MelScale, error) {
	if numFilters <= 0 || nFFT <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid mel filter bank parameters: filters=%d nfft=%d sr=%d", numFilters, nFFT, sampleRate)
	}
	if highFreq <= lowFreq {
		return nil, fmt.Errorf("high frequency %.1f must exceed low frequency %.1f", highFreq, lowFreq)
	}

	fftFreqs := FFTFrequencies(sampleRate, nFFT)

	// numFilters+2 band edges equally spaced in mel
	lowMel, highMel := HzToMel(lowFreq), HzToMel(highFreq)
	edges := make([]float64, numFilters+2)
	for i := range edges {
		edges[i] = MelToHz(lowMel + float64(i)*(highMel-lowMel)/float64(numFilters+1))
	}

	filters := make([]melFilter, numFilters)
	row := make([]float64, len(fftFreqs))

	for m := range numFilters {
		lowerWidth := edges[m+1] - edges[m]
		upperWidth := edges[m+2] - edges[m+1]
		enorm := 2.0 / (edges[m+2] - edges[m])

		first, last := -1, -1
		for k, f := range fftFreqs {
			lower := (f - edges[m]) / lowerWidth
			upper := (edges[m+2] - f) / upperWidth
			w := math.Max(0, math.Min(lower, upper)) * enorm
			row[k] = w
			if w > 0 {
				if first < 0 {
					first = k
				}
				last = k
			}
		}

		if first < 0 {
			// Empty filter: too many bands for this resolution
			filters[m] = melFilter{}
			continue
		}
		weights := make([]float64, last-first+1)
		copy(weights, row[first:last+1])
		filters[m] = melFilter{start: first, weights: weights}
	}

	return &MelScale{filters: filters, nFFT: nFFT}, nil
}

// NumFilters returns the number of mel bands
func (ms *MelScale) NumFilters() int {
	return len(ms.filters)
}

// Weights returns the dense filter bank (filters x bins)
func (ms *MelScale) Weights() [][]float64 {
	bins := ms.nFFT/2 + 1
	out := make([][]float64, len(ms.filters))
	for m, f := range ms.filters {
		out[m] = make([]float64, bins)
		copy(out[m][f.start:], f.weights)
	}
	return out
}

// Apply projects each power frame onto the mel bands
func (ms *MelScale) Apply(power [][]float64) [][]float64 {
	out := make([][]float64, len(power))
	backing := make([]float64, len(power)*len(ms.filters))

	for t, frame := range power {
		mel := backing[t*len(ms.filters) : (t+1)*len(ms.filters)]
		for m, f := range ms.filters {
			end := f.start + len(f.weights)
			if len(f.weights) == 0 || end > len(frame) {
				continue
			}
			mel[m] = floats.Dot(f.weights, frame[f.start:end])
		}
		out[t] = mel
	}
	return out
}
