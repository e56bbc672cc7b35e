package temporal

import (
	"math"
)

// SilenceDetection finds the non-silent span of a signal
type SilenceDetection struct {
	envelopeExtractor *Envelope
	frameSize         int
	hopSize           int
}

// NewSilenceDetection creates a silence detector with the given framing
func NewSilenceDetection(frameSize, hopSize int) *SilenceDetection {
	return &SilenceDetection{
		envelopeExtractor: NewEnvelope(),
		frameSize:         frameSize,
		hopSize:           hopSize,
	}
}

// NonSilentFrames flags frames whose energy is within topDB of the
// loudest frame.
func (sd *SilenceDetection) NonSilentFrames(signal []float64, topDB float64) []bool {
	ms := sd.envelopeExtractor.ComputeMeanSquare(signal, sd.frameSize, sd.hopSize)
	flags := make([]bool, len(ms))
	if len(ms) == 0 {
		return flags
	}

	const amin = 1e-10
	peak := 0.0
	for _, v := range ms {
		peak = math.Max(peak, v)
	}
	refDB := 10 * math.Log10(math.Max(amin, peak))

	for i, v := range ms {
		db := 10*math.Log10(math.Max(amin, v)) - refDB
		flags[i] = db > -topDB
	}
	return flags
}

// Trim returns the sample span [start, end) that excludes leading and
// trailing silence quieter than topDB below the peak frame. An empty
// signal yields start == end == 0.
func (sd *SilenceDetection) Trim(signal []float64, topDB float64) (start, end int) {
	flags := sd.NonSilentFrames(signal, topDB)

	first, last := -1, -1
	for i, loud := range flags {
		if !loud {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return 0, 0
	}

	start = first * sd.hopSize
	end = min(len(signal), (last+1)*sd.hopSize)
	return start, end
}
