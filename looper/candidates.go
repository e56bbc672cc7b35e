package looper

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// Allowed chroma distance as a fraction of the end frame's chroma norm
	acceptableNoteDeviation = 0.0875

	// Largest tolerated loudness jump in weighted dB
	acceptableLoudnessDifference = 0.5
)

// candidateSearch scans ordered beat pairs for loop points whose pitch
// content and loudness match.
type candidateSearch struct {
	chroma     [][]float64
	powerDB    [][]float64
	frameMaxDB []float64
	policy     LoudnessPolicy

	beats     []int
	deviation []float64 // allowed note distance per end beat
	minFrames int
	maxFrames int
}

func newCandidateSearch(f *Features, beats []int, minFrames, maxFrames int, policy LoudnessPolicy) *candidateSearch {
	deviation := make([]float64, len(beats))
	for i, b := range beats {
		deviation[i] = acceptableNoteDeviation * floats.Norm(f.Chroma[b], 2)
	}
	return &candidateSearch{
		chroma:     f.Chroma,
		powerDB:    f.PowerDB,
		frameMaxDB: f.FrameMaxDB,
		policy:     policy,
		beats:      beats,
		deviation:  deviation,
		minFrames:  max(minFrames, 1),
		maxFrames:  maxFrames,
	}
}

func (cs *candidateSearch) loudnessDifference(a, b int) float64 {
	if cs.policy == LoudnessMeanDifference {
		x, y := cs.powerDB[a], cs.powerDB[b]
		sum := 0.0
		for k := range x {
			sum += math.Abs(x[k] - y[k])
		}
		return sum / float64(len(x))
	}
	return math.Abs(cs.frameMaxDB[a] - cs.frameMaxDB[b])
}

// scan appends every acceptable pair whose end beat index lies in [lo, hi).
// Beats are ascending, so once a start is too close to the end every later
// start is too; the inner loop breaks there.
func (cs *candidateSearch) scan(out []LoopPair, lo, hi int) []LoopPair {
	for i := lo; i < hi; i++ {
		end := cs.beats[i]
		endChroma := cs.chroma[end]
		limit := cs.deviation[i]

		for _, start := range cs.beats {
			length := end - start
			if length < cs.minFrames {
				break
			}
			if length > cs.maxFrames {
				continue
			}

			note := floats.Distance(endChroma, cs.chroma[start], 2)
			if note > limit {
				continue
			}
			loudness := cs.loudnessDifference(end, start)
			if loudness > acceptableLoudnessDifference {
				continue
			}

			out = append(out, LoopPair{
				LoopStartFrame:     start,
				LoopEndFrame:       end,
				NoteDistance:       note,
				LoudnessDifference: loudness,
			})
		}
	}
	return out
}

// run splits the end-beat range across workers and concatenates the chunk
// results in index order, matching a sequential scan.
func (cs *candidateSearch) run(ctx context.Context, workers int) ([]*LoopPair, error) {
	numChunks := numChunksFor(len(cs.beats), workers)
	results := make([][]LoopPair, numChunks)

	err := forEachChunk(ctx, len(cs.beats), workers, numChunks, func(c, lo, hi int) {
		results[c] = cs.scan(nil, lo, hi)
	})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	backing := make([]LoopPair, 0, total)
	for _, r := range results {
		backing = append(backing, r...)
	}

	pairs := make([]*LoopPair, total)
	for i := range backing {
		pairs[i] = &backing[i]
	}
	return pairs, nil
}
