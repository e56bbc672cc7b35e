package chroma

import (
	"math"
	"testing"
)

// toneSpectrum returns a power frame with all energy in the bin nearest hz
func toneSpectrum(t *testing.T, hz float64, sampleRate, nFFT int) []float64 {
	t.Helper()
	frame := make([]float64, nFFT/2+1)
	frame[int(math.Round(hz*float64(nFFT)/float64(sampleRate)))] = 1
	return frame
}

func argmax(x []float64) int {
	best := 0
	for i := range x {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}

func TestChromaPicksPitchClass(t *testing.T) {
	const sr, nFFT = 44100, 8192
	cs, err := NewChromaSTFTDefault(sr, nFFT)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		hz   float64
		want string
	}{
		{440.0, "A"},
		{523.25, "C"},
		{659.26, "E"},
		{880.0, "A"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			chroma, err := cs.Compute([][]float64{toneSpectrum(t, tt.hz, sr, nFFT)})
			if err != nil {
				t.Fatal(err)
			}
			got := PitchClasses[argmax(chroma[0])]
			if got != tt.want {
				t.Errorf("%.2f Hz mapped to %s, want %s (chroma %v)", tt.hz, got, tt.want, chroma[0])
			}
			if peak := chroma[0][argmax(chroma[0])]; math.Abs(peak-1) > 1e-12 {
				t.Errorf("frame not max-normalized, peak = %v", peak)
			}
		})
	}
}

func TestChromaSilentFrameStaysZero(t *testing.T) {
	cs, err := NewChromaSTFTDefault(22050, 2048)
	if err != nil {
		t.Fatal(err)
	}
	chroma, err := cs.Compute([][]float64{make([]float64, 1025)})
	if err != nil {
		t.Fatal(err)
	}
	for c, v := range chroma[0] {
		if v != 0 || math.IsNaN(v) {
			t.Errorf("bin %d = %v, want 0", c, v)
		}
	}
}

func TestChromaRejectsWrongFrameSize(t *testing.T) {
	cs, err := NewChromaSTFTDefault(22050, 2048)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cs.Compute([][]float64{make([]float64, 10)}); err == nil {
		t.Error("expected frame size error")
	}
	if _, err := NewChromaSTFT(22050, 2048, FilterBankConfig{}); err == nil {
		t.Error("expected error for zero chroma bins")
	}
}

func TestFilterBankShape(t *testing.T) {
	cs, err := NewChromaSTFTDefault(44100, 2048)
	if err != nil {
		t.Fatal(err)
	}
	filters := cs.Filters()
	if len(filters) != 12 {
		t.Fatalf("rows = %d, want 12", len(filters))
	}
	for c, row := range filters {
		if len(row) != 1025 {
			t.Fatalf("row %d has %d bins, want 1025", c, len(row))
		}
	}
}
