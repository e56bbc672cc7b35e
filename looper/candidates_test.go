package looper

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
)

// naiveCandidates is the unoptimized O(n^2) reference scan without the
// early exit, in the same emission order.
func naiveCandidates(f *Features, beats []int, minFrames, maxFrames int) []LoopPair {
	var out []LoopPair
	for _, end := range beats {
		var norm float64
		for _, v := range f.Chroma[end] {
			norm += v * v
		}
		limit := acceptableNoteDeviation * math.Sqrt(norm)

		for _, start := range beats {
			length := end - start
			if length < minFrames || length > maxFrames {
				continue
			}
			var dist float64
			for k := range f.Chroma[end] {
				d := f.Chroma[end][k] - f.Chroma[start][k]
				dist += d * d
			}
			dist = math.Sqrt(dist)
			if dist > limit {
				continue
			}
			loud := math.Abs(f.FrameMaxDB[end] - f.FrameMaxDB[start])
			if loud > acceptableLoudnessDifference {
				continue
			}
			out = append(out, LoopPair{LoopStartFrame: start, LoopEndFrame: end, NoteDistance: dist, LoudnessDifference: loud})
		}
	}
	return out
}

func randomBeats(rng *rand.Rand, frames int) []int {
	var beats []int
	for i := range frames {
		if rng.IntN(3) == 0 {
			beats = append(beats, i)
		}
	}
	return beats
}

func TestCandidateSearchMatchesNaiveScan(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	tests := []struct {
		name      string
		frames    int
		minFrames int
		maxFrames int
		workers   int
	}{
		{"sequential", 300, 20, 300, 1},
		{"parallel", 300, 20, 300, 4},
		{"tight max", 400, 50, 80, 3},
		{"min above everything", 100, 500, 1000, 2},
		{"min one", 150, 1, 150, 8},
		{"more workers than beats", 10, 1, 10, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := randomFeatures(t, rng, tt.frames)
			beats := randomBeats(rng, tt.frames)

			want := naiveCandidates(f, beats, tt.minFrames, tt.maxFrames)
			got, err := newCandidateSearch(f, beats, tt.minFrames, tt.maxFrames, LoudnessMaxDifference).
				run(context.Background(), tt.workers)
			if err != nil {
				t.Fatal(err)
			}

			if len(got) != len(want) {
				t.Fatalf("got %d candidates, naive scan found %d", len(got), len(want))
			}
			for i := range want {
				g := got[i]
				if g.LoopStartFrame != want[i].LoopStartFrame || g.LoopEndFrame != want[i].LoopEndFrame {
					t.Fatalf("candidate %d = (%d,%d), want (%d,%d)", i,
						g.LoopStartFrame, g.LoopEndFrame, want[i].LoopStartFrame, want[i].LoopEndFrame)
				}
				if math.Abs(g.NoteDistance-want[i].NoteDistance) > 1e-12 {
					t.Errorf("candidate %d note distance = %v, want %v", i, g.NoteDistance, want[i].NoteDistance)
				}
				if g.Score != 0 {
					t.Errorf("candidate %d has score %v before scoring", i, g.Score)
				}
			}
		})
	}
}

func TestCandidateDurationBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	f := randomFeatures(t, rng, 500)
	beats := randomBeats(rng, 500)

	const minFrames, maxFrames = 40, 120
	pairs, err := newCandidateSearch(f, beats, minFrames, maxFrames, LoudnessMaxDifference).run(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) == 0 {
		t.Fatal("expected some candidates")
	}
	for _, p := range pairs {
		if d := p.Frames(); d < minFrames || d > maxFrames {
			t.Errorf("pair (%d,%d) length %d outside [%d,%d]", p.LoopStartFrame, p.LoopEndFrame, d, minFrames, maxFrames)
		}
		if p.LoudnessDifference > acceptableLoudnessDifference {
			t.Errorf("pair loudness difference %v above limit", p.LoudnessDifference)
		}
	}
}

func TestCandidateSearchClampsMinimum(t *testing.T) {
	f := &Features{
		NumFrames:  3,
		Chroma:     [][]float64{{1, 0}, {1, 0}, {1, 0}},
		PowerDB:    [][]float64{{0}, {0}, {0}},
		FrameMaxDB: []float64{0, 0, 0},
	}
	pairs, err := newCandidateSearch(f, []int{0, 1, 2}, 0, 10, LoudnessMaxDifference).run(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range pairs {
		if p.LoopEndFrame <= p.LoopStartFrame {
			t.Errorf("pair (%d,%d) is not ordered", p.LoopStartFrame, p.LoopEndFrame)
		}
	}
	if len(pairs) != 3 {
		t.Errorf("got %d pairs, want 3", len(pairs))
	}
}

func TestLoudnessPolicies(t *testing.T) {
	f := &Features{
		NumFrames:  2,
		Chroma:     [][]float64{{1}, {1}},
		PowerDB:    [][]float64{{0, -10}, {0.4, -9.2}},
		FrameMaxDB: []float64{0, 0.4},
	}

	tests := []struct {
		policy LoudnessPolicy
		want   float64
	}{
		{LoudnessMaxDifference, 0.4},
		{LoudnessMeanDifference, 0.6},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			cs := newCandidateSearch(f, []int{0, 1}, 1, 1, tt.policy)
			if got := cs.loudnessDifference(1, 0); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("loudness difference = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCandidateSearchHonoursCancellation(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	f := randomFeatures(t, rng, 200)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newCandidateSearch(f, allFrames(200), 1, 200, LoudnessMaxDifference).run(ctx, 2); err == nil {
		t.Error("expected cancellation error")
	}
}
