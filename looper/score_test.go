package looper

import (
	"context"
	"math"
	"testing"
)

func TestGeomWeights(t *testing.T) {
	w := geomWeights(5, 16, 1)
	want := []float64{16, 8, 4, 2, 1}
	for i := range want {
		if math.Abs(w[i]-want[i]) > 1e-12 {
			t.Errorf("w[%d] = %v, want %v", i, w[i], want[i])
		}
	}
	if got := geomWeights(1, 3, 1); len(got) != 1 || got[0] != 3 {
		t.Errorf("single weight = %v", got)
	}
}

func TestTestWindowFrames(t *testing.T) {
	tests := []struct {
		name      string
		bpm       float64
		numFrames int
		want      int
	}{
		// 12 beats at 120 BPM = 6s = 264600 samples = 516 frames
		{"long track", 120, 5000, 516},
		{"short track uses a quarter", 120, 400, 100},
		{"tiny track still one frame", 120, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testWindowFrames(tt.bpm, testSampleRate, tt.numFrames); got != tt.want {
				t.Errorf("testWindowFrames = %d, want %d", got, tt.want)
			}
		})
	}
}

// periodicChroma repeats a sequence of distinct pitch classes with the
// given period.
func periodicChroma(t *testing.T, frames, period int) [][]float64 {
	t.Helper()
	out := make([][]float64, frames)
	for i := range out {
		out[i] = make([]float64, 12)
		out[i][i%period%12] = 1
		out[i][(i%period+5)%12] = 0.5
	}
	return out
}

func TestScoreIdenticalContext(t *testing.T) {
	chroma := periodicChroma(t, 400, 10)
	s := newSimilarityScorer(chroma, 40)

	// Both windows fully inside the track and in phase.
	if got := s.Score(50, 150); math.Abs(got-1) > 1e-12 {
		t.Errorf("in-phase score = %v, want 1", got)
	}
	// Out of phase every frame differs.
	if got := s.Score(50, 153); got > 0.5 {
		t.Errorf("out-of-phase score = %v, want low", got)
	}
}

func TestScorePadsMissingFramesWithZero(t *testing.T) {
	chroma := periodicChroma(t, 100, 10)
	s := newSimilarityScorer(chroma, 40)

	// Lookahead from 90 and lookbehind from 10 both have 10 frames.
	want := 0.0
	for d := range 10 {
		want += s.weights[d]
	}
	want /= s.weightSum

	if got := s.lookahead(10, 90); math.Abs(got-want) > 1e-12 {
		t.Errorf("lookahead = %v, want %v", got, want)
	}
	if got := s.Score(10, 90); got >= 1 {
		t.Errorf("edge score = %v, want below 1", got)
	}
}

func TestLookbehindWeightsNearestFrameMost(t *testing.T) {
	chroma := periodicChroma(t, 200, 10)
	s := newSimilarityScorer(chroma, 20)

	// Break only the frame just before end.
	broken := make([][]float64, len(chroma))
	copy(broken, chroma)
	broken[119] = make([]float64, 12)
	broken[119][11] = 1
	near := newSimilarityScorer(broken, 20).lookbehind(100, 120)

	broken = make([][]float64, len(chroma))
	copy(broken, chroma)
	broken[101] = make([]float64, 12)
	broken[101][11] = 1
	far := newSimilarityScorer(broken, 20).lookbehind(100, 120)

	if got := s.lookbehind(100, 120); math.Abs(got-1) > 1e-12 {
		t.Fatalf("unbroken lookbehind = %v", got)
	}
	if near >= far {
		t.Errorf("mismatch next to the boundary (%v) should cost more than one far away (%v)", near, far)
	}
}

func TestScoreZeroNormFrames(t *testing.T) {
	chroma := make([][]float64, 50)
	for i := range chroma {
		chroma[i] = make([]float64, 12)
	}
	s := newSimilarityScorer(chroma, 10)
	if got := s.Score(10, 30); got != 0 {
		t.Errorf("silent score = %v, want 0", got)
	}
}

func TestScorePairsParallel(t *testing.T) {
	chroma := periodicChroma(t, 300, 10)
	s := newSimilarityScorer(chroma, 30)

	var pairs []*LoopPair
	for start := 0; start < 100; start++ {
		pairs = append(pairs, &LoopPair{LoopStartFrame: start, LoopEndFrame: start + 100 + start%3})
	}
	if err := s.scorePairs(context.Background(), pairs, 4); err != nil {
		t.Fatal(err)
	}
	for _, p := range pairs {
		if want := s.Score(p.LoopStartFrame, p.LoopEndFrame); p.Score != want {
			t.Fatalf("pair %d score = %v, want %v", p.LoopStartFrame, p.Score, want)
		}
	}
}
