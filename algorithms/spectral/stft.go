package spectral

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-looper/logging"
)

// STFT computes short-time power spectrograms
type STFT struct {
	fft    *FFT
	logger logging.Logger
}

// Spectrogram is a frame-major power spectrogram
type Spectrogram struct {
	Power          [][]float64 `json:"-"`               // Time x Frequency power matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	WindowSize     int         `json:"window_size"`     // FFT window size
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	Centered       bool        `json:"centered"`        // Frames centered on t*hop
	FreqResolution float64     `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64     `json:"time_resolution"` // Time resolution (seconds/frame)
}

// Window interface for windowing functions
type Window interface {
	ApplyInPlace(signal []float64) error
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft:    NewFFT(),
		logger: logging.WithFields(logging.Fields{"component": "stft"}),
	}
}

// FrameCount returns how many frames ComputePower produces for a signal of
// n samples.
func FrameCount(n, windowSize, hopSize int, center bool) int {
	if center {
		return 1 + n/hopSize
	}
	if n < windowSize {
		return 0
	}
	return 1 + (n-windowSize)/hopSize
}

// ComputePower computes |STFT|^2 with parallel frame processing.
//
// When center is true the signal is zero-padded by windowSize/2 on both
// sides so frame t is centered on sample t*hopSize.
func (s *STFT) ComputePower(signal []float64, windowSize, hopSize, sampleRate int, center bool, window Window) (*Spectrogram, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	numFrames := FrameCount(len(signal), windowSize, hopSize, center)
	if numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	offset := 0
	if center {
		offset = windowSize / 2
	}

	freqBins := windowSize/2 + 1
	power := make([][]float64, numFrames)
	backing := make([]float64, numFrames*freqBins)
	for i := range numFrames {
		power[i] = backing[i*freqBins : (i+1)*freqBins : (i+1)*freqBins]
	}

	numWorkers := s.getOptimalWorkerCount(numFrames)
	jobs := make(chan int, numFrames)
	errs := make(chan error, numWorkers)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			frameBuffer := make([]float64, windowSize)
			for frameIdx := range jobs {
				start := frameIdx*hopSize - offset
				for i := range frameBuffer {
					pos := start + i
					if pos >= 0 && pos < len(signal) {
						frameBuffer[i] = signal[pos]
					} else {
						frameBuffer[i] = 0
					}
				}

				if window != nil {
					if err := window.ApplyInPlace(frameBuffer); err != nil {
						errs <- err
						return
					}
				}

				s.fft.PowerInto(power[frameIdx], frameBuffer)
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)
	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return nil, fmt.Errorf("failed to window frame: %w", err)
	}

	s.logger.Debug("Power spectrogram computed", logging.Fields{
		"frames":    numFrames,
		"freq_bins": freqBins,
		"workers":   numWorkers,
	})

	return &Spectrogram{
		Power:          power,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		Centered:       center,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// Frequencies returns the center frequency in Hz of each bin
func (sp *Spectrogram) Frequencies() []float64 {
	return FFTFrequencies(sp.SampleRate, sp.WindowSize)
}

// FFTFrequencies returns k*sampleRate/nFFT for k in [0, nFFT/2]
func FFTFrequencies(sampleRate, nFFT int) []float64 {
	freqs := make([]float64, nFFT/2+1)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / float64(nFFT)
	}
	return freqs
}

// getOptimalWorkerCount determines the optimal number of workers
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// Small jobs are dominated by goroutine overhead
	if numFrames < 64 {
		return 1
	}

	workers := min(numCPU, numFrames/32)
	return max(workers, 1)
}
