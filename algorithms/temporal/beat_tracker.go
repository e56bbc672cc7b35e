package temporal

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-looper/algorithms/stats"
	"github.com/RyanBlaney/sonido-looper/algorithms/windowing"
)

// ErrNoBeats is returned when the tracker cannot settle on any beat
var ErrNoBeats = errors.New("no beats detected")

// BeatTrackerConfig holds beat tracking parameters
type BeatTrackerConfig struct {
	Tightness float64     `json:"tightness"` // How strictly beats follow the tempo grid
	Trim      bool        `json:"trim"`      // Drop weak leading and trailing beats
	Tempo     TempoConfig `json:"tempo"`
}

// DefaultBeatTrackerConfig returns the standard configuration
func DefaultBeatTrackerConfig() BeatTrackerConfig {
	return BeatTrackerConfig{
		Tightness: 100,
		Trim:      true,
		Tempo:     DefaultTempoConfig(),
	}
}

// BeatTracker implements dynamic-programming beat tracking
//
// References:
//   - Ellis, D.P.W. (2007). "Beat Tracking by Dynamic Programming"
//     Journal of New Music Research, 36(1), 51-60
type BeatTracker struct {
	config BeatTrackerConfig
	tempo  *TempoEstimation
}

// NewBeatTracker creates a new beat tracker
func NewBeatTracker(config BeatTrackerConfig) *BeatTracker {
	return &BeatTracker{
		config: config,
		tempo:  NewTempoEstimation(config.Tempo),
	}
}

// Track estimates the tempo and returns it with the beat frame indices in
// ascending order. A silent envelope yields the tempo estimate and no beats.
func (bt *BeatTracker) Track(onset []float64, sampleRate, hopSize int) (float64, []int, error) {
	bpm, err := bt.tempo.EstimateTempo(onset, sampleRate, hopSize)
	if err != nil {
		return 0, nil, fmt.Errorf("tempo estimation failed: %w", err)
	}

	if !slices.ContainsFunc(onset, func(v float64) bool { return v != 0 }) {
		return bpm, nil, nil
	}

	beats, err := bt.TrackWithTempo(onset, bpm, sampleRate, hopSize)
	if err != nil {
		return bpm, nil, err
	}
	return bpm, beats, nil
}

// TrackWithTempo runs the dynamic program for a known tempo
func (bt *BeatTracker) TrackWithTempo(onset []float64, bpm float64, sampleRate, hopSize int) ([]int, error) {
	if bpm <= 0 {
		return nil, fmt.Errorf("tempo must be positive: %v", bpm)
	}
	if bt.config.Tightness <= 0 {
		return nil, fmt.Errorf("tightness must be positive: %v", bt.config.Tightness)
	}

	framesPerSecond := float64(sampleRate) / float64(hopSize)
	period := int(math.Round(60.0 * framesPerSecond / bpm))
	if period < 1 {
		return nil, fmt.Errorf("tempo %.1f BPM is too fast for %.1f frames per second", bpm, framesPerSecond)
	}

	localScore := beatLocalScore(onset, period)
	backlink, cumScore := bt.dynamicProgram(localScore, period)

	tail := lastBeat(cumScore)
	beats := []int{tail}
	for backlink[beats[len(beats)-1]] >= 0 {
		beats = append(beats, backlink[beats[len(beats)-1]])
	}
	slices.Reverse(beats)

	return trimBeats(localScore, beats, bt.config.Trim)
}

// beatLocalScore normalizes onset strength by its standard deviation and
// smooths it with a Gaussian whose width tracks the beat period.
func beatLocalScore(onset []float64, period int) []float64 {
	normalized := slices.Clone(onset)
	if len(normalized) > 1 {
		if sd := stat.StdDev(normalized, nil); sd > 0 {
			floats.Scale(1/sd, normalized)
		}
	}

	kernel := make([]float64, 2*period+1)
	for i := range kernel {
		x := float64(i-period) * 32.0 / float64(period)
		kernel[i] = math.Exp(-0.5 * x * x)
	}
	return convolveSame(normalized, kernel)
}

// dynamicProgram computes, for every frame, the best cumulative score of a
// beat sequence ending there and the previous beat of that sequence.
func (bt *BeatTracker) dynamicProgram(localScore []float64, period int) ([]int, []float64) {
	n := len(localScore)
	backlink := make([]int, n)
	cumScore := make([]float64, n)

	// Predecessors lie between two periods and half a period back.
	lo := -2 * period
	hi := -int(math.Round(float64(period) / 2))
	txwt := make([]float64, hi-lo+1)
	for j := range txwt {
		r := math.Log(-float64(lo+j) / float64(period))
		txwt[j] = -bt.config.Tightness * r * r
	}

	scoreThresh := 0.01 * floats.Max(localScore)
	firstBeat := true

	for i, score := range localScore {
		bestIdx, best := 0, math.Inf(-1)
		for j, w := range txwt {
			candidate := w
			if prev := i + lo + j; prev >= 0 {
				candidate += cumScore[prev]
			}
			if candidate > best {
				bestIdx, best = j, candidate
			}
		}

		cumScore[i] = score + best
		if firstBeat && score < scoreThresh {
			backlink[i] = -1
		} else {
			backlink[i] = i + lo + bestIdx
			firstBeat = false
		}
	}

	return backlink, cumScore
}

// lastBeat picks the final local maximum of the cumulative score that
// clears half the median peak score.
func lastBeat(cumScore []float64) int {
	mask := localMaxMask(cumScore)

	var peaks []float64
	for i, isMax := range mask {
		if isMax {
			peaks = append(peaks, cumScore[i])
		}
	}
	if len(peaks) == 0 {
		return len(cumScore) - 1
	}
	median, _ := stats.MedianInPlace(peaks)

	tail := 0
	for i, v := range cumScore {
		masked := 0.0
		if mask[i] {
			masked = v
		}
		if masked*2 > median {
			tail = i
		}
	}
	return tail
}

// trimBeats removes beats at the edges whose smoothed local score falls
// below half its RMS. The span end is exclusive, so the last qualifying
// beat is dropped as well.
func trimBeats(localScore []float64, beats []int, trim bool) ([]int, error) {
	values := make([]float64, len(beats))
	for i, b := range beats {
		values[i] = localScore[b]
	}
	smooth := convolveSame(values, windowing.NewHann(5, true).Coefficients())

	threshold := 0.0
	if trim {
		threshold = 0.5 * math.Sqrt(floats.Dot(smooth, smooth)/float64(len(smooth)))
	}

	first, last := -1, -1
	for i, v := range smooth {
		if v > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil, ErrNoBeats
	}
	return slices.Clone(beats[first:last]), nil
}

// convolveSame convolves x with an odd-length kernel, returning len(x)
// samples centered on the full convolution.
func convolveSame(x, kernel []float64) []float64 {
	out := make([]float64, len(x))
	m := len(kernel)
	half := (m - 1) / 2
	for i := range x {
		sum := 0.0
		for k := range m {
			j := i + half - k
			if j >= 0 && j < len(x) {
				sum += x[j] * kernel[k]
			}
		}
		out[i] = sum
	}
	return out
}
