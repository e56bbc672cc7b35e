package looper

import (
	"errors"
	"fmt"
	"slices"

	"github.com/RyanBlaney/sonido-looper/algorithms/temporal"
)

// approxBPM sizes the scoring window when beat analysis is skipped
const approxBPM = 120.0

// approxWindowSeconds is the search radius around approximate loop points
const approxWindowSeconds = 2.0

// locateBeats estimates the tempo and returns it with the union of the
// dynamic-programming beat grid and the predominant local pulse peaks.
func locateBeats(onset []float64, sampleRate int) (float64, []int, error) {
	bpm, tracked, err := temporal.NewBeatTracker(temporal.DefaultBeatTrackerConfig()).Track(onset, sampleRate, HopSize)
	if err != nil && !errors.Is(err, temporal.ErrNoBeats) {
		return 0, nil, fmt.Errorf("beat tracking failed: %w", err)
	}

	pulse, err := temporal.NewPLP(temporal.DefaultPLPConfig()).Beats(onset, sampleRate, HopSize)
	if err != nil {
		return 0, nil, fmt.Errorf("pulse tracking failed: %w", err)
	}

	return bpm, unionSorted(tracked, pulse), nil
}

// unionSorted returns the sorted, duplicate-free union of the index sets
func unionSorted(sets ...[]int) []int {
	var out []int
	for _, s := range sets {
		out = append(out, s...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// frameRange returns [lo, hi) clipped to [0, n)
func frameRange(lo, hi, n int) []int {
	lo = max(lo, 0)
	hi = min(hi, n)
	if hi <= lo {
		return nil
	}
	out := make([]int, hi-lo)
	for i := range out {
		out[i] = lo + i
	}
	return out
}

// searchWindow is a half-open frame interval
type searchWindow struct {
	lo, hi int
}

func (w searchWindow) contains(frame int) bool {
	return frame >= w.lo && frame < w.hi
}

// approxSearch describes the frames searched around approximate loop points
type approxSearch struct {
	beats      []int
	start, end searchWindow
	minFrames  int
	maxFrames  int
}

// newApproxSearch converts approximate loop points (seconds on the
// untrimmed track) into a synthetic beat set, a duration range and the
// windows each side of the loop must fall in.
func newApproxSearch(audio *Audio, startSec, endSec float64, numFrames int) *approxSearch {
	s := audio.TrimmedSecondsToFrames(startSec)
	e := audio.TrimmedSecondsToFrames(endSec)
	n := audio.SecondsToFrames(approxWindowSeconds)

	return &approxSearch{
		beats:     unionSorted(frameRange(s-n, s+n, numFrames), frameRange(e-n, e+n, numFrames)),
		start:     searchWindow{lo: s - n, hi: s + n},
		end:       searchWindow{lo: e - n, hi: e + n},
		minFrames: max((e-n)-(s+n)-1, 1),
		maxFrames: (e + n) - (s - n) + 1,
	}
}

// keep drops pairs whose start or end strays outside its own window
func (a *approxSearch) keep(pairs []*LoopPair) []*LoopPair {
	return slices.DeleteFunc(pairs, func(p *LoopPair) bool {
		return !a.start.contains(p.LoopStartFrame) || !a.end.contains(p.LoopEndFrame)
	})
}

// allFrames is the brute-force beat set
func allFrames(numFrames int) []int {
	return frameRange(0, numFrames, numFrames)
}
