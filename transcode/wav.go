package transcode

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// decodeWAVFile reads integer PCM WAV files. Other encodings return
// ErrUnsupportedFormat so the caller can hand them to ffmpeg.
func decodeWAVFile(filename string, maxDuration time.Duration) (*AudioData, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrUnsupportedFormat, filename)
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: WAV encoding %d", ErrUnsupportedFormat, decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data from %s: %w", filename, err)
	}

	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, channels, sampleRate)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}

	data := buf.Data[:len(buf.Data)-len(buf.Data)%channels]
	if maxDuration > 0 {
		limit := int(maxDuration.Seconds()*float64(sampleRate)) * channels
		if limit < len(data) {
			data = data[:limit]
		}
	}

	pcm, err := intToFloat(data, bitDepth)
	if err != nil {
		return nil, err
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   framesToDuration(len(pcm)/channels, sampleRate),
		Metadata: &AudioMetadata{
			SampleRate: sampleRate,
			Channels:   channels,
			Codec:      fmt.Sprintf("pcm_s%dle", bitDepth),
			Duration:   float64(len(pcm)/channels) / float64(sampleRate),
			Format:     "WAV",
		},
	}, nil
}

// intToFloat scales integer samples of the given bit depth to [-1, 1].
// 8-bit WAV samples are unsigned.
func intToFloat(data []int, bitDepth int) ([]float64, error) {
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, bitDepth)
	}

	scale := math.Ldexp(1, bitDepth-1)
	offset := 0.0
	if bitDepth == 8 {
		offset = scale
	}

	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = (float64(v) - offset) / scale
	}
	return out, nil
}

// WAVWriter streams interleaved [-1, 1] samples into an integer PCM WAV
// file. Values outside the range are clipped.
type WAVWriter struct {
	f        *os.File
	encoder  *wav.Encoder
	format   *audio.Format
	bitDepth int
	peak     float64
	ints     []int
	wrote    bool
}

// CreateWAV creates filename and prepares it for writing.
func CreateWAV(filename string, channels, sampleRate, bitDepth int) (*WAVWriter, error) {
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid layout: %d channels at %d Hz", channels, sampleRate)
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filename, err)
	}

	return &WAVWriter{
		f:        f,
		encoder:  wav.NewEncoder(f, sampleRate, bitDepth, channels, wavFormatPCM),
		format:   &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		bitDepth: bitDepth,
		peak:     math.Ldexp(1, bitDepth-1) - 1,
	}, nil
}

// Write appends samples. The conversion buffer is reused across calls.
func (w *WAVWriter) Write(pcm []float64) error {
	if cap(w.ints) < len(pcm) {
		w.ints = make([]int, len(pcm))
	}
	ints := w.ints[:len(pcm)]
	for i, v := range pcm {
		v = max(-1, min(1, v))
		ints[i] = int(math.Round(v * w.peak))
	}

	buf := &audio.IntBuffer{
		Format:         w.format,
		Data:           ints,
		SourceBitDepth: w.bitDepth,
	}
	if err := w.encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.f.Name(), err)
	}
	w.wrote = true
	return nil
}

// Close finalizes the header and closes the file.
func (w *WAVWriter) Close() error {
	if !w.wrote {
		if err := w.Write(nil); err != nil {
			w.f.Close()
			return err
		}
	}
	if err := w.encoder.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to finalize %s: %w", w.f.Name(), err)
	}
	return w.f.Close()
}

// WriteWAV writes a whole signal to filename.
func WriteWAV(filename string, pcm []float64, channels, sampleRate, bitDepth int) error {
	w, err := CreateWAV(filename, channels, sampleRate, bitDepth)
	if err != nil {
		return err
	}
	if err := w.Write(pcm); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
