// Package export writes loop points and loop-derived audio to disk.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/RyanBlaney/sonido-looper/logging"
	"github.com/RyanBlaney/sonido-looper/looper"
	"github.com/RyanBlaney/sonido-looper/transcode"
)

// DefaultTxtName is the base name of the loop-point text file.
const DefaultTxtName = "loops"

// Config controls where and how files are written
type Config struct {
	// OutputDir defaults to the directory of the source file.
	OutputDir string `json:"output_dir"`
	BitDepth  int    `json:"bit_depth"`
}

// DefaultConfig returns 16-bit output next to the source file
func DefaultConfig() *Config {
	return &Config{BitDepth: 16}
}

// Exporter writes intro/loop/outro splits, extended renders and loop-point
// records for a track.
type Exporter struct {
	config *Config
	logger logging.Logger
}

// NewExporter creates an exporter; nil uses DefaultConfig.
func NewExporter(config *Config) *Exporter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BitDepth == 0 {
		config.BitDepth = 16
	}
	return &Exporter{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "exporter",
		}),
	}
}

// outBase is the path prefix every audio export appends a suffix to. The
// source extension is kept so "song.mp3" becomes "song.mp3-loop.wav".
func (e *Exporter) outBase(filename string) (string, error) {
	if e.config.OutputDir != "" {
		return filepath.Join(e.config.OutputDir, filepath.Base(filename)), nil
	}
	return filepath.Abs(filename)
}

func (e *Exporter) outDir(filename string) string {
	if e.config.OutputDir != "" {
		return e.config.OutputDir
	}
	return filepath.Dir(filename)
}

func checkBounds(audio *looper.Audio, loopStart, loopEnd int) error {
	if audio == nil {
		return fmt.Errorf("audio is nil")
	}
	if loopStart < 0 || loopEnd > audio.Length() || loopStart >= loopEnd {
		return fmt.Errorf("loop points out of bounds: start %d, end %d, total samples %d",
			loopStart, loopEnd, audio.Length())
	}
	return nil
}

// section returns frames [from, to) of the interleaved playback signal.
func section(audio *looper.Audio, from, to int) []float64 {
	return audio.Playback[from*audio.Channels : to*audio.Channels]
}

// Split writes the intro, loop and outro of the track as three WAV files and
// returns their paths.
func (e *Exporter) Split(audio *looper.Audio, loopStart, loopEnd int) ([]string, error) {
	if err := checkBounds(audio, loopStart, loopEnd); err != nil {
		return nil, err
	}
	base, err := e.outBase(audio.Filename)
	if err != nil {
		return nil, err
	}

	parts := []struct {
		suffix   string
		from, to int
	}{
		{"intro", 0, loopStart},
		{"loop", loopStart, loopEnd},
		{"outro", loopEnd, audio.Length()},
	}

	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		path := fmt.Sprintf("%s-%s.wav", base, p.suffix)
		err := transcode.WriteWAV(path, section(audio, p.from, p.to), audio.Channels, audio.SampleRate, e.config.BitDepth)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	e.logger.Info("Exported intro, loop and outro", logging.Fields{
		"filename":   audio.Filename,
		"loop_start": loopStart,
		"loop_end":   loopEnd,
		"output":     filepath.Dir(base),
	})
	return paths, nil
}

// ExtendOptions controls Extend
type ExtendOptions struct {
	// Length is the target length in seconds; it must exceed the track.
	Length float64
	// FadeLength is the fade-out applied to the final partial loop.
	FadeLength float64
	// KeepOutro ends on the outro instead of a fade; Length then becomes a
	// lower bound.
	KeepOutro bool
}

// DefaultExtendOptions fades over five seconds
func DefaultExtendOptions(length float64) ExtendOptions {
	return ExtendOptions{Length: length, FadeLength: 5}
}

// Extend renders intro, the loop repeated until Length is reached, and
// either a faded partial loop or the outro. The loop is streamed repeatedly
// rather than materialized.
func (e *Exporter) Extend(audio *looper.Audio, loopStart, loopEnd int, opts ExtendOptions) (string, error) {
	if err := checkBounds(audio, loopStart, loopEnd); err != nil {
		return "", err
	}
	if opts.Length < audio.Duration {
		return "", fmt.Errorf("extended length %.2fs must be greater than the track length %.2fs", opts.Length, audio.Duration)
	}
	if opts.FadeLength < 0 {
		return "", fmt.Errorf("fade length must not be negative: %v", opts.FadeLength)
	}
	base, err := e.outBase(audio.Filename)
	if err != nil {
		return "", err
	}

	intro := section(audio, 0, loopStart)
	loop := section(audio, loopStart, loopEnd)
	outro := section(audio, loopEnd, audio.Length())
	loopLen := loopEnd - loopStart

	target := audio.SecondsToSamples(opts.Length) - loopStart
	if opts.KeepOutro {
		target -= audio.Length() - loopEnd
	}
	factor := float64(target) / float64(loopLen)
	repeats := int(factor)

	var final []float64
	if opts.KeepOutro {
		final = loop
	} else {
		end := loopStart + int(float64(loopLen)*(factor-float64(repeats)))
		final = fadeOut(section(audio, loopStart, end), audio.Channels, audio.SecondsToSamples(opts.FadeLength))
	}

	total := loopStart + repeats*loopLen + len(final)/audio.Channels
	if opts.KeepOutro {
		total += audio.Length() - loopEnd
	}
	path := fmt.Sprintf("%s-extended-%s.wav", base, durationSuffix(audio.SamplesToSeconds(total)))

	w, err := transcode.CreateWAV(path, audio.Channels, audio.SampleRate, e.config.BitDepth)
	if err != nil {
		return "", err
	}
	chunks := make([][]float64, 0, repeats+3)
	chunks = append(chunks, intro)
	for range repeats {
		chunks = append(chunks, loop)
	}
	chunks = append(chunks, final)
	if opts.KeepOutro {
		chunks = append(chunks, outro)
	}
	for _, c := range chunks {
		if err := w.Write(c); err != nil {
			w.Close()
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	e.logger.Info("Exported extended track", logging.Fields{
		"filename":      audio.Filename,
		"repeats":       repeats,
		"total_seconds": audio.SamplesToSeconds(total),
		"path":          path,
	})
	return path, nil
}

// fadeOut returns a copy of section with a linear 1→0 ramp over its last
// fadeFrames frames.
func fadeOut(section []float64, channels, fadeFrames int) []float64 {
	out := make([]float64, len(section))
	copy(out, section)

	frames := len(out) / channels
	n := min(max(fadeFrames, 0), frames)
	if n == 0 {
		return out
	}
	start := frames - n
	for i := range n {
		gain := 1.0
		if n > 1 {
			gain = 1 - float64(i)/float64(n-1)
		}
		for c := range channels {
			out[(start+i)*channels+c] *= gain
		}
	}
	return out
}

// durationSuffix formats seconds as "3m05s", rounding seconds up.
func durationSuffix(seconds float64) string {
	mins := int(seconds / 60)
	secs := int(math.Ceil(math.Mod(seconds, 60)))
	if secs == 60 {
		secs = 0
		mins++
	}
	return fmt.Sprintf("%dm%02ds", mins, secs)
}

// AppendTxt appends "start end filename" to <txtName>.txt and returns the
// file's path.
func (e *Exporter) AppendTxt(filename string, loopStart, loopEnd int, txtName string) (string, error) {
	if txtName == "" {
		txtName = DefaultTxtName
	}
	path := filepath.Join(e.outDir(filename), txtName+".txt")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := fmt.Fprintf(f, "%d %d %s\n", loopStart, loopEnd, filepath.Base(filename)); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return path, f.Close()
}

// Record is the serialized form of a track's loop points
type Record struct {
	Filename   string        `json:"filename"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   float64       `json:"duration"`
	Loops      []RecordEntry `json:"loops"`
}

// RecordEntry is one ranked loop pair
type RecordEntry struct {
	LoopStart          int     `json:"loop_start"`
	LoopEnd            int     `json:"loop_end"`
	LoopStartTime      string  `json:"loop_start_time"`
	LoopEndTime        string  `json:"loop_end_time"`
	Score              float64 `json:"score"`
	NoteDistance       float64 `json:"note_distance"`
	LoudnessDifference float64 `json:"loudness_difference"`
}

// NewRecord converts ranked pairs into a Record; limit <= 0 keeps all.
func NewRecord(audio *looper.Audio, pairs []*looper.LoopPair, limit int) *Record {
	if limit > 0 && limit < len(pairs) {
		pairs = pairs[:limit]
	}
	r := &Record{
		Filename:   filepath.Base(audio.Filename),
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
		Duration:   audio.Duration,
		Loops:      make([]RecordEntry, len(pairs)),
	}
	for i, p := range pairs {
		r.Loops[i] = RecordEntry{
			LoopStart:          p.LoopStart,
			LoopEnd:            p.LoopEnd,
			LoopStartTime:      looper.FormatTime(audio.SamplesToSeconds(p.LoopStart)),
			LoopEndTime:        looper.FormatTime(audio.SamplesToSeconds(p.LoopEnd)),
			Score:              p.Score,
			NoteDistance:       p.NoteDistance,
			LoudnessDifference: p.LoudnessDifference,
		}
	}
	return r
}

// EncodeJSON writes the record as indented JSON.
func EncodeJSON(w io.Writer, record *Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}

// WriteJSON writes <filename>.loops.json and returns its path.
func (e *Exporter) WriteJSON(audio *looper.Audio, pairs []*looper.LoopPair, limit int) (string, error) {
	if audio == nil {
		return "", fmt.Errorf("audio is nil")
	}
	path := filepath.Join(e.outDir(audio.Filename), filepath.Base(audio.Filename)+".loops.json")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := EncodeJSON(f, NewRecord(audio, pairs, limit)); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, f.Close()
}
