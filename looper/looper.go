package looper

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-looper/logging"
)

// LoopFinder runs the loop point search for decoded tracks
type LoopFinder struct {
	config      *Config
	logger      logging.Logger
	locateBeats func(onset []float64, sampleRate int) (float64, []int, error)
}

// NewLoopFinder creates a finder; a nil config uses DefaultConfig
func NewLoopFinder(config *Config) *LoopFinder {
	if config == nil {
		config = DefaultConfig()
	}
	return &LoopFinder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "loop_finder",
		}),
		locateBeats: locateBeats,
	}
}

// FindBestLoopPoints searches audio for loop points with the given config
// (nil for defaults). See LoopFinder.Find.
func FindBestLoopPoints(ctx context.Context, audio *Audio, config *Config) ([]*LoopPair, error) {
	return NewLoopFinder(config).Find(ctx, audio)
}

// analysis is the per-track state shared by the search stages
type analysis struct {
	features  *Features
	bpm       float64
	beats     []int
	minFrames int
	maxFrames int
	approx    *approxSearch // nil unless approximate points were given
}

// Find returns the loop pairs of audio, best first. LoopStart and LoopEnd
// of every pair are samples of the untrimmed playback signal, snapped to
// nearby rising zero crossings. An empty result is reported as a
// *LoopNotFoundError.
func (lf *LoopFinder) Find(ctx context.Context, audio *Audio) ([]*LoopPair, error) {
	if audio == nil {
		return nil, fmt.Errorf("audio cannot be nil")
	}
	if err := lf.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid loop search config: %w", err)
	}

	logger := lf.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "Find",
		"file":     audio.Filename,
	})
	runtimeStart := time.Now()

	a, err := lf.analyze(ctx, audio, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Finished initial audio processing", logging.Fields{
		"elapsed": time.Since(runtimeStart).Round(time.Millisecond),
	})

	pairsStart := time.Now()
	pairs, err := lf.findCandidates(ctx, a)
	if err != nil {
		return nil, err
	}
	logger.Info("Found possible loop points", logging.Fields{
		"candidates": len(pairs),
		"elapsed":    time.Since(pairsStart).Round(time.Millisecond),
	})
	if len(pairs) == 0 {
		return nil, loopNotFound(audio.Filename, nil)
	}

	before := len(pairs)
	if pairs = lf.prune(pairs); len(pairs) != before {
		logger.Debug("Pruned candidates", logging.Fields{
			"before": before,
			"after":  len(pairs),
		})
	}
	if len(pairs) == 0 {
		return nil, loopNotFound(audio.Filename, nil)
	}

	window := testWindowFrames(a.bpm, audio.SampleRate, a.features.NumFrames)
	scorer := newSimilarityScorer(a.features.Chroma, window)
	if err := scorer.scorePairs(ctx, pairs, workerCount(lf.config.Workers)); err != nil {
		return nil, err
	}

	rankPairs(pairs)
	lf.finalize(audio, pairs)

	logger.Info("Filtered to best candidate loop points", logging.Fields{
		"pairs":   len(pairs),
		"elapsed": time.Since(runtimeStart).Round(time.Millisecond),
	})
	return pairs, nil
}

// analyze computes features, the beat set and the duration range
func (lf *LoopFinder) analyze(ctx context.Context, audio *Audio, logger logging.Logger) (*analysis, error) {
	approx := lf.config.approxMode()

	features, err := computeFeatures(audio.Mono, audio.SampleRate, !approx)
	if err != nil {
		return nil, loopNotFound(audio.Filename, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a := &analysis{features: features}
	numFrames := features.NumFrames

	switch {
	case approx:
		a.approx = newApproxSearch(audio, *lf.config.ApproxLoopStart, *lf.config.ApproxLoopEnd, numFrames)
		a.bpm = approxBPM
		a.beats = a.approx.beats
		a.minFrames = a.approx.minFrames
		a.maxFrames = a.approx.maxFrames

	default:
		a.minFrames, a.maxFrames = lf.durationRange(audio)

		a.bpm, a.beats, err = lf.locateBeats(features.Onset, audio.SampleRate)
		switch {
		case err != nil && lf.config.BruteForce:
			// every frame is searched anyway; only the scoring window needs a tempo
			logger.Warn("Beat analysis failed, scoring with a default tempo", logging.Fields{
				"error": err.Error(),
				"bpm":   approxBPM,
			})
			a.bpm = approxBPM
		case err != nil:
			return nil, loopNotFound(audio.Filename, err)
		default:
			logger.Info("Detected beats", logging.Fields{
				"beats": len(a.beats),
				"bpm":   fmt.Sprintf("%.0f", a.bpm),
			})
		}

		if lf.config.BruteForce {
			a.beats = allFrames(numFrames)
			span := max(numFrames-a.minFrames, 0)
			logger.Warn("Brute force mode checks every frame pair; this may take several minutes", logging.Fields{
				"frames":               numFrames,
				"estimated_iterations": span * span / 2,
			})
		}
	}

	a.minFrames = max(a.minFrames, 1)
	return a, ctx.Err()
}

// durationRange converts the configured loop lengths to frames. The
// multiplier applies to whole seconds of track duration.
func (lf *LoopFinder) durationRange(audio *Audio) (int, int) {
	minFrames := audio.SecondsToFrames(float64(int(lf.config.MinDurationMultiplier * audio.Duration)))
	if lf.config.MinLoopDuration != nil {
		minFrames = audio.SecondsToFrames(*lf.config.MinLoopDuration)
	}

	maxFrames := audio.SecondsToFrames(audio.Duration)
	if lf.config.MaxLoopDuration != nil {
		maxFrames = audio.SecondsToFrames(*lf.config.MaxLoopDuration)
	}
	return minFrames, maxFrames
}

func (lf *LoopFinder) findCandidates(ctx context.Context, a *analysis) ([]*LoopPair, error) {
	policy := lf.config.LoudnessPolicy
	if policy == "" {
		policy = LoudnessMaxDifference
	}

	search := newCandidateSearch(a.features, a.beats, a.minFrames, a.maxFrames, policy)
	pairs, err := search.run(ctx, workerCount(lf.config.Workers))
	if err != nil {
		return nil, err
	}
	if a.approx != nil {
		pairs = a.approx.keep(pairs)
	}
	return pairs, nil
}

// prune drops clearly inferior candidates before scoring unless pruning
// is disabled.
func (lf *LoopFinder) prune(pairs []*LoopPair) []*LoopPair {
	if lf.config.DisablePruning {
		return pairs
	}
	return pruneCandidates(pairs)
}

// finalize converts frame positions to untrimmed playback samples. This is
// the only place the trim offset is applied.
func (lf *LoopFinder) finalize(audio *Audio, pairs []*LoopPair) {
	for _, p := range pairs {
		p.LoopStart = nearestZeroCrossing(audio.Playback, audio.Channels, audio.SampleRate,
			audio.FrameToPlaybackSample(p.LoopStartFrame))
		p.LoopEnd = nearestZeroCrossing(audio.Playback, audio.Channels, audio.SampleRate,
			audio.FrameToPlaybackSample(p.LoopEndFrame))
	}
}
