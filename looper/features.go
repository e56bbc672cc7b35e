package looper

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-looper/algorithms/chroma"
	"github.com/RyanBlaney/sonido-looper/algorithms/spectral"
	"github.com/RyanBlaney/sonido-looper/algorithms/temporal"
	"github.com/RyanBlaney/sonido-looper/algorithms/windowing"
)

const (
	numMelBands = 128
	melFMax     = 8000.0
	aWeightMin  = -80.0 // dB floor of the A-weighting curve
	topDB       = 80.0
)

// Features holds the frame-aligned representations of the analysis
// signal. Every matrix is frame-major and has NumFrames rows.
type Features struct {
	NumFrames int

	// Chroma is computed from unweighted power; each row peaks at 1
	Chroma [][]float64

	// PowerDB is the A-weighted power in dB relative to its median
	PowerDB [][]float64

	// FrameMaxDB[t] is the largest value of PowerDB[t]
	FrameMaxDB []float64

	// MelDB and Onset are nil when beat analysis is skipped
	MelDB [][]float64
	Onset []float64
}

// computeFeatures runs the spectral front-end over the mono signal. With
// withOnset false the mel spectrogram and onset envelope are skipped.
func computeFeatures(mono []float64, sampleRate int, withOnset bool) (*Features, error) {
	spec, err := spectral.NewSTFT().ComputePower(mono, FrameSize, HopSize, sampleRate, true,
		windowing.NewHann(FrameSize, false))
	if err != nil {
		return nil, fmt.Errorf("stft failed: %w", err)
	}

	chromaSTFT, err := chroma.NewChromaSTFTDefault(sampleRate, FrameSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build chroma filters: %w", err)
	}
	chromaFrames, err := chromaSTFT.Compute(spec.Power)
	if err != nil {
		return nil, fmt.Errorf("chroma failed: %w", err)
	}

	// From here on spec.Power holds weighted power, then weighted dB.
	spectral.ApplyWeightingInPlace(spec.Power, spectral.AWeighting(spec.Frequencies(), aWeightMin))

	features := &Features{
		NumFrames: spec.TimeFrames,
		Chroma:    chromaFrames,
	}

	if withOnset {
		high := math.Min(melFMax, float64(sampleRate)/2)
		mel, err := spectral.NewMelScale(numMelBands, FrameSize, sampleRate, 0, high)
		if err != nil {
			return nil, fmt.Errorf("failed to build mel filters: %w", err)
		}
		features.MelDB = mel.Apply(spec.Power)
		if err := spectral.PowerToDBInPlace(features.MelDB, 1.0, spectral.DefaultAmin, topDB); err != nil {
			return nil, err
		}

		features.Onset, err = temporal.NewOnsetDetection(FrameSize, HopSize).Strength(features.MelDB)
		if err != nil {
			return nil, fmt.Errorf("onset strength failed: %w", err)
		}
	}

	median, err := spectral.MedianPower(spec.Power)
	if err != nil {
		return nil, err
	}
	if err := spectral.PowerToDBInPlace(spec.Power, median, spectral.DefaultAmin, topDB); err != nil {
		return nil, err
	}
	features.PowerDB = spec.Power

	features.FrameMaxDB = make([]float64, spec.TimeFrames)
	for t, frame := range spec.Power {
		features.FrameMaxDB[t] = floats.Max(frame)
	}

	return features, nil
}
