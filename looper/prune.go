package looper

import (
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-looper/algorithms/stats"
)

const (
	pruneMinCandidates = 250

	pruneLoudnessPercentile = 75.0
	pruneNotePercentile     = 90.0

	// Values at or below this are ignored when choosing thresholds, so
	// silence-heavy tracks do not drag them to zero.
	pruneEpsilon = 1e-3

	// The loudness threshold is never stricter than this
	pruneLoudnessFloor = 0.25
)

// pruneCandidates keeps the pairs at or below both the loudness and the
// note-distance thresholds. Order is preserved. Input smaller than
// pruneMinCandidates is returned unchanged.
func pruneCandidates(pairs []*LoopPair) []*LoopPair {
	if len(pairs) < pruneMinCandidates {
		return pairs
	}

	loudness := make([]float64, len(pairs))
	notes := make([]float64, len(pairs))
	for i, p := range pairs {
		loudness[i] = p.LoudnessDifference
		notes[i] = p.NoteDistance
	}

	dbThreshold := max(pruneLoudnessFloor, pruneThreshold(loudness, pruneLoudnessPercentile))
	noteThreshold := pruneThreshold(notes, pruneNotePercentile)

	kept := make([]*LoopPair, 0, len(pairs))
	for _, p := range pairs {
		if p.LoudnessDifference <= dbThreshold && p.NoteDistance <= noteThreshold {
			kept = append(kept, p)
		}
	}
	return kept
}

// pruneThreshold returns the given percentile of the values above
// pruneEpsilon, or the overall maximum when fewer than three distinct such
// values exist.
func pruneThreshold(values []float64, percentile float64) float64 {
	above := make([]float64, 0, len(values))
	for _, v := range values {
		if v > pruneEpsilon {
			above = append(above, v)
		}
	}

	distinct := slices.Clone(above)
	slices.Sort(distinct)
	if len(slices.Compact(distinct)) < 3 {
		return floats.Max(values)
	}

	threshold, err := stats.NewPercentiles().CalculatePercentile(above, percentile)
	if err != nil {
		return floats.Max(values)
	}
	return threshold
}
