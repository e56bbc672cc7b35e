package looper

import (
	"cmp"
	"slices"

	"github.com/RyanBlaney/sonido-looper/algorithms/stats"
)

const (
	// Scores within this of the best are treated as equal
	negligibleScoreLoss = 1e-4

	prioritizeScorePercentile = 90.0
)

// rankPairs sorts by score, best first, keeping the prior order of ties,
// then moves the longest near-best pair to the front.
func rankPairs(pairs []*LoopPair) {
	slices.SortStableFunc(pairs, func(a, b *LoopPair) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(pairs) > 1 {
		prioritizeDuration(pairs)
	}
}

// prioritizeDuration scans the pairs scoring at or above
// max(p90, best - negligibleScoreLoss) and promotes the longest one whose
// loudness difference is at or below the median. pairs must be sorted by
// score descending.
func prioritizeDuration(pairs []*LoopPair) {
	loudness := make([]float64, len(pairs))
	scores := make([]float64, len(pairs))
	for i, p := range pairs {
		loudness[i] = p.LoudnessDifference
		scores[i] = p.Score
	}

	medianLoudness, err := stats.Median(loudness)
	if err != nil {
		return
	}
	scoreBar, err := stats.NewPercentiles().CalculatePercentile(scores, prioritizeScorePercentile)
	if err != nil {
		return
	}
	scoreBar = max(scoreBar, pairs[0].Score-negligibleScoreLoss)

	best, bestLength := 0, 0
	for i, p := range pairs {
		if p.Score < scoreBar {
			break
		}
		if length := p.Frames(); length > bestLength && p.LoudnessDifference <= medianLoudness {
			best, bestLength = i, length
		}
	}

	if best > 0 {
		promoted := pairs[best]
		copy(pairs[1:best+1], pairs[:best])
		pairs[0] = promoted
	}
}
