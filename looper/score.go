package looper

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// The test window spans this many beats at the estimated tempo
	numTestBeats = 12
)

// testWindowFrames returns the scoring window length in frames. Tracks
// shorter than the window are tested over a quarter of their length.
func testWindowFrames(bpm float64, sampleRate, numFrames int) int {
	seconds := numTestBeats / (bpm / 60)
	t := SamplesToFrames(int(seconds * float64(sampleRate)))
	if t > numFrames {
		t = numFrames / 4
	}
	return max(t, 1)
}

// geomWeights returns length values falling geometrically from start to stop
func geomWeights(length int, start, stop float64) []float64 {
	w := make([]float64, length)
	if length == 1 {
		w[0] = start
		return w
	}
	ratio := stop / start
	for k := range w {
		w[k] = start * math.Pow(ratio, float64(k)/float64(length-1))
	}
	return w
}

// similarityScorer rates how alike the chroma around two frames is
type similarityScorer struct {
	chroma    [][]float64
	norms     []float64
	window    int
	weights   []float64 // weights[d] applies d frames from the boundary
	weightSum float64
}

func newSimilarityScorer(chroma [][]float64, window int) *similarityScorer {
	norms := make([]float64, len(chroma))
	for t, c := range chroma {
		norms[t] = floats.Norm(c, 2)
	}
	weights := geomWeights(window, max(2, float64(window/numTestBeats)), 1)
	return &similarityScorer{
		chroma:    chroma,
		norms:     norms,
		window:    window,
		weights:   weights,
		weightSum: floats.Sum(weights),
	}
}

func (s *similarityScorer) cosine(a, b int) float64 {
	denom := s.norms[a] * s.norms[b]
	if denom == 0 {
		return 0
	}
	return floats.Dot(s.chroma[a], s.chroma[b]) / denom
}

// lookahead compares the window following start with the one following end
func (s *similarityScorer) lookahead(start, end int) float64 {
	n := min(s.window, len(s.chroma)-end, len(s.chroma)-start)
	sum := 0.0
	for d := range n {
		sum += s.weights[d] * s.cosine(start+d, end+d)
	}
	return sum / s.weightSum
}

// lookbehind compares the window preceding start with the one preceding end
func (s *similarityScorer) lookbehind(start, end int) float64 {
	n := min(s.window, start, end)
	sum := 0.0
	for d := 1; d <= n; d++ {
		sum += s.weights[d-1] * s.cosine(start-d, end-d)
	}
	return sum / s.weightSum
}

// Score is the better of the lookahead and lookbehind similarity. Frames
// past either end of the track count as dissimilar.
func (s *similarityScorer) Score(start, end int) float64 {
	return max(s.lookahead(start, end), s.lookbehind(start, end))
}

// scorePairs assigns Score to every pair, splitting the pairs across workers
func (s *similarityScorer) scorePairs(ctx context.Context, pairs []*LoopPair, workers int) error {
	return forEachChunk(ctx, len(pairs), workers, numChunksFor(len(pairs), workers), func(_, lo, hi int) {
		for _, p := range pairs[lo:hi] {
			p.Score = s.Score(p.LoopStartFrame, p.LoopEndFrame)
		}
	})
}
