package looper

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-looper/algorithms/temporal"
)

// Analysis framing shared by every frame-indexed feature
const (
	FrameSize = 2048
	HopSize   = 512

	// Leading and trailing audio quieter than this (dB below the loudest
	// frame) is excluded from analysis.
	TrimTopDB = 40.0
)

// Audio is a decoded track prepared for loop analysis
type Audio struct {
	Filename   string
	SampleRate int
	Channels   int
	Duration   float64 // seconds, untrimmed

	// Mono is the peak-normalized, silence-trimmed analysis signal
	Mono []float64

	// Playback is the untrimmed interleaved signal, len = samples*Channels
	Playback []float64

	// TrimOffset is the number of samples cut from the front of Mono
	TrimOffset int
}

// NewAudio builds the analysis buffer from interleaved PCM. The playback
// slice is retained, not copied.
func NewAudio(filename string, interleaved []float64, channels, sampleRate int) (*Audio, error) {
	if channels <= 0 || sampleRate <= 0 {
		return nil, &AudioLoadError{Filename: filename, Reason: "invalid channel count or sample rate"}
	}
	if len(interleaved) < channels {
		return nil, &AudioLoadError{Filename: filename, Reason: "no audio samples"}
	}

	length := len(interleaved) / channels
	interleaved = interleaved[:length*channels]

	mono := make([]float64, length)
	if channels == 1 {
		copy(mono, interleaved)
	} else {
		scale := 1 / float64(channels)
		for i := range mono {
			frame := interleaved[i*channels : (i+1)*channels]
			mono[i] = floats.Sum(frame) * scale
		}
	}

	peak := floats.Norm(mono, math.Inf(1))
	if peak == 0 || math.IsNaN(peak) || math.IsInf(peak, 0) {
		return nil, &AudioLoadError{Filename: filename, Reason: "audio is silent or not finite"}
	}
	floats.Scale(1/peak, mono)

	start, end := temporal.NewSilenceDetection(FrameSize, HopSize).Trim(mono, TrimTopDB)
	if end <= start {
		return nil, &AudioLoadError{Filename: filename, Reason: "audio is silent"}
	}

	return &Audio{
		Filename:   filename,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   float64(length) / float64(sampleRate),
		Mono:       mono[start:end:end],
		Playback:   interleaved,
		TrimOffset: start,
	}, nil
}

// Length returns the number of untrimmed playback samples per channel
func (a *Audio) Length() int {
	return len(a.Playback) / a.Channels
}

// SecondsToSamples truncates toward zero
func (a *Audio) SecondsToSamples(seconds float64) int {
	return int(seconds * float64(a.SampleRate))
}

// SecondsToFrames returns the analysis frame containing the given time
func (a *Audio) SecondsToFrames(seconds float64) int {
	return SamplesToFrames(a.SecondsToSamples(seconds))
}

// TrimmedSecondsToFrames maps a time on the untrimmed track to the
// analysis frame of the trimmed signal. The result may be negative.
func (a *Audio) TrimmedSecondsToFrames(seconds float64) int {
	return a.SecondsToFrames(seconds - float64(a.TrimOffset)/float64(a.SampleRate))
}

// SamplesToSeconds converts a sample count to seconds
func (a *Audio) SamplesToSeconds(samples int) float64 {
	return float64(samples) / float64(a.SampleRate)
}

// FrameToPlaybackSample converts an analysis frame of the trimmed signal to
// a sample index of the untrimmed playback signal.
func (a *Audio) FrameToPlaybackSample(frame int) int {
	return FramesToSamples(frame) + a.TrimOffset
}

// FramesToSamples returns the first sample of a frame
func FramesToSamples(frame int) int {
	return frame * HopSize
}

// SamplesToFrames floors toward negative infinity
func SamplesToFrames(samples int) int {
	return int(math.Floor(float64(samples) / HopSize))
}

// FormatTime renders seconds as MM:SS.mmm
func FormatTime(seconds float64) string {
	m := math.Floor(seconds / 60)
	s := seconds - 60*m
	return fmt.Sprintf("%02.0f:%06.3f", m, s)
}
