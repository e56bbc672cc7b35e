package looper

import (
	"math"
	"math/rand/v2"
	"testing"
)

const testSampleRate = 44100

// patternFrames is the length of one repetition of the test pattern. It is
// a whole number of hops (just under two seconds) so repeated frames are
// bit-identical.
const patternFrames = 172

// pluckedPattern returns mono audio made of reps repetitions of four
// plucked notes (C4 E4 G4 A4), each lasting a quarter of the pattern.
func pluckedPattern(t *testing.T, reps int) []float64 {
	t.Helper()
	notes := []float64{261.63, 329.63, 392.00, 440.00}
	period := patternFrames * HopSize
	noteLen := period / len(notes)

	signal := make([]float64, reps*period)
	for i := range signal {
		local := i % period
		note := local / noteLen
		tn := float64(local-note*noteLen) / testSampleRate
		signal[i] = 0.8 * math.Exp(-3*tn) * math.Sin(2*math.Pi*notes[note]*tn)
	}
	return signal
}

// sine returns seconds of a sine tone
func sine(t *testing.T, freq, seconds float64) []float64 {
	t.Helper()
	n := int(seconds * testSampleRate)
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
	}
	return out
}

// mustAudio wraps NewAudio for mono test signals
func mustAudio(t *testing.T, signal []float64) *Audio {
	t.Helper()
	audio, err := NewAudio("test.wav", signal, 1, testSampleRate)
	if err != nil {
		t.Fatalf("NewAudio: %v", err)
	}
	return audio
}

// randomFeatures builds features with random non-negative chroma and a
// coarse loudness so that some pairs pass the generator thresholds.
func randomFeatures(t *testing.T, rng *rand.Rand, frames int) *Features {
	t.Helper()
	f := &Features{
		NumFrames:  frames,
		Chroma:     make([][]float64, frames),
		PowerDB:    make([][]float64, frames),
		FrameMaxDB: make([]float64, frames),
	}
	// A few chroma prototypes make near-identical frames common.
	protos := make([][]float64, 4)
	for i := range protos {
		protos[i] = make([]float64, 12)
		for k := range protos[i] {
			protos[i][k] = rng.Float64()
		}
	}
	for i := range frames {
		p := protos[rng.IntN(len(protos))]
		f.Chroma[i] = make([]float64, 12)
		for k := range 12 {
			f.Chroma[i][k] = p[k] + 0.02*rng.Float64()
		}
		level := float64(rng.IntN(4)) * 0.3
		f.PowerDB[i] = []float64{level, level - 1}
		f.FrameMaxDB[i] = level
	}
	return f
}

func ptr(v float64) *float64 { return &v }
