package looper

import (
	"fmt"
	"math"
)

// LoudnessPolicy selects how the loudness difference of two frames is
// measured on their perceptually weighted dB spectra.
type LoudnessPolicy string

const (
	// LoudnessMaxDifference compares the loudest bin of each frame
	LoudnessMaxDifference LoudnessPolicy = "max"
	// LoudnessMeanDifference averages the absolute per-bin difference
	LoudnessMeanDifference LoudnessPolicy = "mean"
)

// Config holds the loop search parameters. Durations and positions are in
// seconds; nil means unset.
type Config struct {
	// Minimum loop length as a fraction of the track duration. Ignored when
	// MinLoopDuration is set.
	MinDurationMultiplier float64 `json:"min_duration_multiplier"`

	MinLoopDuration *float64 `json:"min_loop_duration,omitempty"`
	MaxLoopDuration *float64 `json:"max_loop_duration,omitempty"`

	// Approximate loop points; both or neither must be set. When set, beat
	// analysis is skipped and only frames within 2 seconds of each point
	// are searched.
	ApproxLoopStart *float64 `json:"approx_loop_start,omitempty"`
	ApproxLoopEnd   *float64 `json:"approx_loop_end,omitempty"`

	BruteForce     bool           `json:"brute_force"`     // search every frame instead of beats
	DisablePruning bool           `json:"disable_pruning"` // score every raw candidate
	LoudnessPolicy LoudnessPolicy `json:"loudness_policy"`
	Workers        int            `json:"workers"` // 0 uses runtime.NumCPU()
}

// DefaultConfig returns the standard search configuration
func DefaultConfig() *Config {
	return &Config{
		MinDurationMultiplier: 0.35,
		LoudnessPolicy:        LoudnessMaxDifference,
	}
}

// Validate checks the configuration for caller errors
func (c *Config) Validate() error {
	if c.MinLoopDuration == nil {
		m := c.MinDurationMultiplier
		if math.IsNaN(m) || m <= 0 || m >= 1 {
			return fmt.Errorf("min duration multiplier must be in (0, 1): %v", m)
		}
	}

	for name, v := range map[string]*float64{
		"min loop duration": c.MinLoopDuration,
		"max loop duration": c.MaxLoopDuration,
		"approx loop start": c.ApproxLoopStart,
		"approx loop end":   c.ApproxLoopEnd,
	} {
		if v != nil && (math.IsNaN(*v) || *v < 0) {
			return fmt.Errorf("%s must be a non-negative number of seconds: %v", name, *v)
		}
	}

	if c.MinLoopDuration != nil && c.MaxLoopDuration != nil && *c.MinLoopDuration > *c.MaxLoopDuration {
		return fmt.Errorf("min loop duration %.3fs exceeds max loop duration %.3fs",
			*c.MinLoopDuration, *c.MaxLoopDuration)
	}

	if (c.ApproxLoopStart == nil) != (c.ApproxLoopEnd == nil) {
		return fmt.Errorf("approximate loop start and end must be given together")
	}
	if c.ApproxLoopStart != nil && *c.ApproxLoopStart >= *c.ApproxLoopEnd {
		return fmt.Errorf("approximate loop start %.3fs must precede loop end %.3fs",
			*c.ApproxLoopStart, *c.ApproxLoopEnd)
	}

	switch c.LoudnessPolicy {
	case "", LoudnessMaxDifference, LoudnessMeanDifference:
	default:
		return fmt.Errorf("unknown loudness policy %q", c.LoudnessPolicy)
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative: %d", c.Workers)
	}
	return nil
}

func (c *Config) approxMode() bool {
	return c.ApproxLoopStart != nil && c.ApproxLoopEnd != nil
}
