package temporal

import (
	"math"
)

// Envelope provides frame-level amplitude envelopes
type Envelope struct{}

// NewEnvelope creates a new envelope extractor
func NewEnvelope() *Envelope {
	return &Envelope{}
}

// ComputeMeanSquare returns the mean squared amplitude of each frame.
// Frames are centered: frame i covers samples around i*hopSize, with the
// signal zero-padded by frameSize/2 at both ends, giving 1+len/hop frames.
func (e *Envelope) ComputeMeanSquare(signal []float64, frameSize, hopSize int) []float64 {
	if len(signal) == 0 || frameSize <= 0 || hopSize <= 0 {
		return []float64{}
	}

	numFrames := 1 + len(signal)/hopSize
	envelope := make([]float64, numFrames)
	half := frameSize / 2

	for i := range numFrames {
		start := max(i*hopSize-half, 0)
		end := min(i*hopSize-half+frameSize, len(signal))

		sumSquares := 0.0
		for _, v := range signal[start:end] {
			sumSquares += v * v
		}
		// Padding zeros still count toward the frame length
		envelope[i] = sumSquares / float64(frameSize)
	}

	return envelope
}

// ComputeRMS computes the centered RMS envelope
func (e *Envelope) ComputeRMS(signal []float64, frameSize, hopSize int) []float64 {
	ms := e.ComputeMeanSquare(signal, frameSize, hopSize)
	for i, v := range ms {
		ms[i] = math.Sqrt(v)
	}
	return ms
}
