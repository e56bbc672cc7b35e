package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-looper/logging"
)

// ErrUnsupportedFormat is returned when neither the native WAV reader nor
// ffmpeg can decode a file.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// AudioData holds decoded, interleaved PCM scaled to [-1, 1].
type AudioData struct {
	PCM        []float64      `json:"-"`
	SampleRate int            `json:"sample_rate"`
	Channels   int            `json:"channels"`
	Duration   time.Duration  `json:"duration"`
	Metadata   *AudioMetadata `json:"metadata,omitempty"`
}

// Frames returns the number of samples per channel.
func (a *AudioData) Frames() int {
	if a.Channels <= 0 {
		return 0
	}
	return len(a.PCM) / a.Channels
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// TargetSampleRate and TargetChannels force a conversion when non-zero.
	// Zero keeps the source layout, which is what loop analysis wants.
	TargetSampleRate int           `json:"target_sample_rate"`
	TargetChannels   int           `json:"target_channels"`
	MaxDuration      time.Duration `json:"max_duration"`
	ResampleQuality  string        `json:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"`
	// PreferNative decodes PCM .wav files in-process without ffmpeg.
	PreferNative bool `json:"prefer_native"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		ResampleQuality: "high",
		FFmpegPath:      "ffmpeg",
		FFprobePath:     "ffprobe",
		Timeout:         2 * time.Minute,
		PreferNative:    true,
	}
}

// Decoder turns audio files into interleaved float PCM
type Decoder struct {
	config *DecoderConfig
}

// AudioMetadata holds detected audio properties from ffprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// Config returns the decoder configuration.
func (d *Decoder) Config() DecoderConfig {
	return *d.config
}

// DecodeFile decodes an audio file and returns interleaved PCM. PCM .wav
// files are read natively when allowed; everything else goes through ffmpeg.
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	logger.Debug("Starting audio file decode")

	if d.config.PreferNative && d.config.TargetSampleRate == 0 && d.config.TargetChannels == 0 &&
		strings.EqualFold(filepath.Ext(filename), ".wav") {
		data, err := decodeWAVFile(filename, d.config.MaxDuration)
		if err == nil {
			logger.Debug("Decoded WAV natively", logging.Fields{
				"sample_rate": data.SampleRate,
				"channels":    data.Channels,
				"duration":    data.Duration.Seconds(),
			})
			return data, nil
		}
		if !errors.Is(err, ErrUnsupportedFormat) {
			return nil, err
		}
		logger.Debug("Native WAV reader declined, falling back to ffmpeg", logging.Fields{
			"reason": err.Error(),
		})
	}

	metadata, err := d.Probe(ctx, filename)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
		"input_bitrate":     metadata.Bitrate,
	})

	return d.decodeWithFFmpeg(ctx, filename, metadata, logger)
}

// Probe uses ffprobe to read the first audio stream's properties.
func (d *Decoder) Probe(ctx context.Context, filename string) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		filename,
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	output, err := exec.CommandContext(ctx, d.config.FFprobePath, args...).Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("%w: no audio streams found", ErrUnsupportedFormat)
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("%w: stream is not audio type: %s", ErrUnsupportedFormat, stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %q", stream.SampleRate)
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

func (d *Decoder) decodeWithFFmpeg(ctx context.Context, filename string, metadata *AudioMetadata, logger logging.Logger) (*AudioData, error) {
	sampleRate, channels := d.outputLayout(metadata)

	args := d.buildFFmpegArgs(metadata)
	args = append([]string{"-i", filename}, args...)
	args = append(args, "pipe:1")

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	startTime := time.Now()
	output, err := exec.CommandContext(ctx, d.config.FFmpegPath, args...).Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "FFmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
			return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded from %s", filename)
	}
	samples = samples[:len(samples)-len(samples)%channels]

	data := &AudioData{
		PCM:        samples,
		SampleRate: sampleRate,
		Channels:   channels,
		Metadata:   metadata,
	}
	data.Duration = framesToDuration(data.Frames(), sampleRate)

	logger.Debug("FFmpeg decode completed", logging.Fields{
		"output_samples":     len(samples),
		"output_sample_rate": sampleRate,
		"output_channels":    channels,
		"output_duration":    data.Duration.Seconds(),
		"decode_time":        time.Since(startTime).Seconds(),
	})

	return data, nil
}

// outputLayout resolves the sample rate and channel count ffmpeg will emit.
func (d *Decoder) outputLayout(metadata *AudioMetadata) (sampleRate, channels int) {
	sampleRate, channels = metadata.SampleRate, metadata.Channels
	if d.config.TargetSampleRate > 0 {
		sampleRate = d.config.TargetSampleRate
	}
	if d.config.TargetChannels > 0 {
		channels = d.config.TargetChannels
	}
	return sampleRate, channels
}

// buildFFmpegArgs builds the ffmpeg output arguments for raw float64 PCM
func (d *Decoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	sampleRate, channels := d.outputLayout(metadata)

	args := []string{
		"-vn",
		"-map", "0:a:0",
		"-f", "f64le",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
	}

	if sampleRate != metadata.SampleRate {
		switch d.config.ResampleQuality {
		case "fast":
			args = append(args, "-af", "aresample=resampler=soxr:precision=16")
		case "medium":
			args = append(args, "-af", "aresample=resampler=soxr:precision=20")
		case "high":
			args = append(args, "-af", "aresample=resampler=soxr:precision=28")
		}
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}

	return append(args, "-v", "error")
}

func (d *Decoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// bytesToFloat64 converts raw little-endian float64 bytes to []float64
func bytesToFloat64(data []byte) []float64 {
	data = data[:len(data)-len(data)%8]
	if len(data) == 0 {
		return nil
	}

	samples := make([]float64, len(data)/8)
	for i := range samples {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}

func framesToDuration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// ValidateConfig validates the decoder configuration
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate < 0 {
		return fmt.Errorf("target sample rate must not be negative: %d", d.config.TargetSampleRate)
	}

	if d.config.TargetChannels < 0 || d.config.TargetChannels > 8 {
		return fmt.Errorf("target channels must be between 0 and 8: %d", d.config.TargetChannels)
	}

	if d.config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", d.config.Timeout)
	}

	switch d.config.ResampleQuality {
	case "", "fast", "medium", "high":
	default:
		return fmt.Errorf("unknown resample quality %q", d.config.ResampleQuality)
	}

	return nil
}

// CheckFFmpeg checks that ffmpeg and ffprobe can be executed
func (d *Decoder) CheckFFmpeg(ctx context.Context) error {
	if err := exec.CommandContext(ctx, d.config.FFmpegPath, "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", d.config.FFmpegPath, err)
	}
	if err := exec.CommandContext(ctx, d.config.FFprobePath, "-version").Run(); err != nil {
		return fmt.Errorf("ffprobe not found at %s: %w", d.config.FFprobePath, err)
	}
	return nil
}

// SupportedExtensions lists the file extensions batch mode picks up.
func SupportedExtensions() []string {
	return []string{
		".wav", ".mp3", ".flac", ".ogg", ".opus", ".m4a", ".aac", ".wma", ".aiff", ".aif",
	}
}

// IsSupported reports whether the file extension is one batch mode decodes.
func IsSupported(filename string) bool {
	return slices.Contains(SupportedExtensions(), strings.ToLower(filepath.Ext(filename)))
}
