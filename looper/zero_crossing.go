package looper

import (
	"math"
)

const (
	sameSignPenalty     = 0.4
	fallingCrossPenalty = 0.1
	distancePenalty     = 0.1 // at the window edge, per channel

	monoAcceptPenalty  = 0.2 // per channel
	multiAcceptPenalty = 0.6 // per channel
)

// nearestZeroCrossing moves a playback sample index to the best rising zero
// crossing within 10ms centred on it. Each position k is rated by the
// transition from k-1 to k on every channel plus its distance from index;
// if even the best position is too costly the index is returned unchanged.
func nearestZeroCrossing(playback []float64, channels, sampleRate, index int) int {
	length := len(playback) / channels
	window := sampleRate / 100
	half := window / 2
	if half < 1 {
		return index
	}

	lo := max(index-half, 1)
	hi := min(index-half+window, length)
	if hi <= lo {
		return index
	}

	best, bestPenalty := index, math.Inf(1)
	for k := lo; k < hi; k++ {
		distance := distancePenalty * math.Abs(float64(k-index)) / float64(half)
		penalty := distance * float64(channels)

		prev := playback[(k-1)*channels : k*channels]
		cur := playback[k*channels : (k+1)*channels]
		for ch := range channels {
			penalty += crossingPenalty(prev[ch], cur[ch])
		}

		if penalty < bestPenalty {
			best, bestPenalty = k, penalty
		}
	}

	limit := monoAcceptPenalty * float64(channels)
	if channels > 1 {
		limit = multiAcceptPenalty * float64(channels)
	}
	if bestPenalty > limit {
		return index
	}
	return best
}

// crossingPenalty rates the transition from a to b. Zero counts as
// non-negative.
func crossingPenalty(a, b float64) float64 {
	switch {
	case a < 0 && b >= 0:
		return 0
	case a >= 0 && b < 0:
		return fallingCrossPenalty
	default:
		return sameSignPenalty
	}
}
