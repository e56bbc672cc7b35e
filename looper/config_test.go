package looper

import (
	"math"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"multiplier zero", func(c *Config) { c.MinDurationMultiplier = 0 }, true},
		{"multiplier one", func(c *Config) { c.MinDurationMultiplier = 1 }, true},
		{"multiplier NaN", func(c *Config) { c.MinDurationMultiplier = math.NaN() }, true},
		{"multiplier ignored with absolute minimum", func(c *Config) {
			c.MinDurationMultiplier = 5
			c.MinLoopDuration = ptr(10)
		}, false},
		{"negative max", func(c *Config) { c.MaxLoopDuration = ptr(-1) }, true},
		{"min above max", func(c *Config) {
			c.MinLoopDuration = ptr(20)
			c.MaxLoopDuration = ptr(10)
		}, true},
		{"approx start alone", func(c *Config) { c.ApproxLoopStart = ptr(5) }, true},
		{"approx end alone", func(c *Config) { c.ApproxLoopEnd = ptr(5) }, true},
		{"approx pair", func(c *Config) {
			c.ApproxLoopStart = ptr(5)
			c.ApproxLoopEnd = ptr(7)
		}, false},
		{"approx inverted", func(c *Config) {
			c.ApproxLoopStart = ptr(7)
			c.ApproxLoopEnd = ptr(5)
		}, true},
		{"mean loudness", func(c *Config) { c.LoudnessPolicy = LoudnessMeanDifference }, false},
		{"unknown loudness", func(c *Config) { c.LoudnessPolicy = "rms" }, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
