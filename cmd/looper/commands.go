package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-looper/export"
	"github.com/RyanBlaney/sonido-looper/internal/cli"
	"github.com/RyanBlaney/sonido-looper/logging"
	"github.com/RyanBlaney/sonido-looper/looper"
	"github.com/RyanBlaney/sonido-looper/transcode"
)

// runContext is bound into every command's Run method
type runContext struct {
	ctx        context.Context
	cancel     context.CancelFunc
	interrupts chan os.Signal
}

// cancelOnInterrupt cancels the run on the first Ctrl+C.
func (rc *runContext) cancelOnInterrupt() {
	go func() {
		select {
		case <-rc.interrupts:
			logging.Warn("Interrupted, stopping")
			rc.cancel()
		case <-rc.ctx.Done():
		}
	}()
}

// FindFlags map onto looper.Config and the decoder
type FindFlags struct {
	MinDurationMultiplier float64  `default:"0.35" env:"LOOPER_MIN_DURATION_MULTIPLIER" help:"Minimum loop length as a fraction of the track length."`
	MinLoopDuration       *float64 `placeholder:"SECONDS" help:"Minimum loop length in seconds; overrides the multiplier."`
	MaxLoopDuration       *float64 `placeholder:"SECONDS" help:"Maximum loop length in seconds."`
	ApproxStart           *float64 `placeholder:"SECONDS" help:"Approximate loop start; the search stays within two seconds of it. Requires --approx-end."`
	ApproxEnd             *float64 `placeholder:"SECONDS" help:"Approximate loop end. Requires --approx-start."`
	BruteForce            bool     `help:"Check every frame instead of detected beats. Much slower."`
	DisablePruning        bool     `help:"Score every candidate instead of pruning outliers first."`
	Loudness              string   `default:"max" enum:"max,mean" help:"Loudness comparison between loop boundaries."`
	Workers               int      `default:"0" help:"Analysis goroutines per track (0 uses every CPU)."`
	FFmpeg                string   `default:"ffmpeg" env:"LOOPER_FFMPEG" help:"Path to ffmpeg."`
	FFprobe               string   `default:"ffprobe" env:"LOOPER_FFPROBE" help:"Path to ffprobe."`
}

func (f *FindFlags) config() *looper.Config {
	cfg := looper.DefaultConfig()
	cfg.MinDurationMultiplier = f.MinDurationMultiplier
	cfg.MinLoopDuration = f.MinLoopDuration
	cfg.MaxLoopDuration = f.MaxLoopDuration
	cfg.ApproxLoopStart = f.ApproxStart
	cfg.ApproxLoopEnd = f.ApproxEnd
	cfg.BruteForce = f.BruteForce
	cfg.DisablePruning = f.DisablePruning
	cfg.LoudnessPolicy = looper.LoudnessPolicy(f.Loudness)
	cfg.Workers = f.Workers
	return cfg
}

func (f *FindFlags) decoder() *transcode.Decoder {
	cfg := transcode.DefaultDecoderConfig()
	cfg.FFmpegPath = f.FFmpeg
	cfg.FFprobePath = f.FFprobe
	return transcode.NewDecoder(cfg)
}

// BatchFlags select the input tracks
type BatchFlags struct {
	Paths     []string `arg:"" type:"path" help:"Audio files or directories."`
	Recursive bool     `short:"r" help:"Descend into subdirectories."`
	Jobs      int      `short:"n" default:"1" help:"Tracks analysed at the same time. Memory use grows with this."`
}

// OutputFlags choose where exports land
type OutputFlags struct {
	OutputDir string `short:"o" type:"path" help:"Output directory (defaults to each track's directory)."`
	Flatten   bool   `short:"f" help:"Put every export directly in the output directory instead of mirroring the input tree."`
}

func (o *OutputFlags) dirFor(in inputFile) (string, error) {
	if o.OutputDir == "" {
		return "", nil
	}
	dir := o.OutputDir
	if !o.Flatten {
		rel, err := filepath.Rel(in.root, filepath.Dir(in.path))
		if err == nil && rel != "." {
			dir = filepath.Join(dir, rel)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}

// trackFunc handles one analysed track
type trackFunc func(ctx context.Context, in inputFile, audio *looper.Audio, pairs []*looper.LoopPair) error

// analyzeFile decodes a track and runs the loop search on it
func analyzeFile(ctx context.Context, dec *transcode.Decoder, cfg *looper.Config, path string) (*looper.Audio, []*looper.LoopPair, error) {
	ctx = logging.ContextWithFields(ctx, logging.Fields{"file": filepath.Base(path)})
	logger := logging.WithContext(ctx)

	start := time.Now()
	data, err := dec.DecodeFile(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, &looper.AudioLoadError{Filename: path, Reason: "decoding failed", Err: err}
	}

	audio, err := looper.NewAudio(path, data.PCM, data.Channels, data.SampleRate)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Loaded track, analysing", logging.Fields{
		"duration":    looper.FormatTime(audio.Duration),
		"sample_rate": audio.SampleRate,
		"channels":    audio.Channels,
		"decode_time": time.Since(start).Seconds(),
	})

	pairs, err := looper.FindBestLoopPoints(ctx, audio, cfg)
	if err != nil {
		return nil, nil, err
	}
	return audio, pairs, nil
}

// forEachTrack analyses every input and hands the result to fn. A single
// input fails the command; in a batch, failures are logged and skipped.
func forEachTrack(rc *runContext, batch *BatchFlags, find *FindFlags, fn trackFunc) error {
	cfg := find.config()
	if err := cfg.Validate(); err != nil {
		return err
	}

	files, err := collectFiles(batch.Paths, batch.Recursive)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no audio files found in %v", batch.Paths)
	}

	dec := find.decoder()
	rc.cancelOnInterrupt()

	process := func(ctx context.Context, in inputFile) error {
		audio, pairs, err := analyzeFile(ctx, dec, cfg, in.path)
		if err != nil {
			return err
		}
		return fn(ctx, in, audio, pairs)
	}

	if len(files) == 1 {
		return process(rc.ctx, files[0])
	}

	stats, err := runBatch(rc.ctx, files, batch.Jobs, process)
	if err != nil {
		return err
	}
	logging.Info("Batch complete", logging.Fields{
		"processed": stats.succeeded,
		"failed":    stats.failed,
		"total":     len(files),
	})
	return nil
}

// pick returns the ranked pair at index
func pick(pairs []*looper.LoopPair, index int) (*looper.LoopPair, error) {
	if index < 0 || index >= len(pairs) {
		return nil, fmt.Errorf("loop index %d out of range [0,%d]", index, len(pairs)-1)
	}
	return pairs[index], nil
}

// stdoutMu serializes output from concurrent batch workers
var stdoutMu sync.Mutex

// PointsCmd lists discovered loop points
type PointsCmd struct {
	BatchFlags
	FindFlags

	Top     int  `default:"10" help:"Number of ranked loops to show (0 shows all)."`
	Samples bool `help:"Show positions in samples instead of MM:SS.mmm."`
	Plain   bool `help:"Print only the best pair as LOOP_START/LOOP_END sample lines."`
}

func (c *PointsCmd) Run(rc *runContext) error {
	return forEachTrack(rc, &c.BatchFlags, &c.FindFlags, func(_ context.Context, _ inputFile, audio *looper.Audio, pairs []*looper.LoopPair) error {
		stdoutMu.Lock()
		defer stdoutMu.Unlock()

		if c.Plain {
			fmt.Print(cli.LoopPoints(audio, pairs[0]))
			return nil
		}
		fmt.Println(cli.TitleStyle.Render(filepath.Base(audio.Filename)))
		fmt.Println(cli.LoopTable(audio, pairs, c.Top, c.Samples))
		return nil
	})
}

// SplitCmd exports intro/loop/outro sections
type SplitCmd struct {
	BatchFlags
	FindFlags
	OutputFlags

	Index    int `default:"0" help:"Ranked loop to export."`
	BitDepth int `default:"16" enum:"16,24,32" help:"Output WAV bit depth."`
}

func (c *SplitCmd) Run(rc *runContext) error {
	return forEachTrack(rc, &c.BatchFlags, &c.FindFlags, func(_ context.Context, in inputFile, audio *looper.Audio, pairs []*looper.LoopPair) error {
		pair, err := pick(pairs, c.Index)
		if err != nil {
			return err
		}
		dir, err := c.dirFor(in)
		if err != nil {
			return err
		}
		paths, err := export.NewExporter(&export.Config{OutputDir: dir, BitDepth: c.BitDepth}).Split(audio, pair.LoopStart, pair.LoopEnd)
		if err != nil {
			return err
		}
		cli.PrintSuccess(os.Stderr, fmt.Sprintf("Exported %s sections to %s", filepath.Base(audio.Filename), filepath.Dir(paths[0])))
		return nil
	})
}

// ExtendCmd renders an extended track
type ExtendCmd struct {
	BatchFlags
	FindFlags
	OutputFlags

	Index     int     `default:"0" help:"Ranked loop to repeat."`
	Length    float64 `required:"" placeholder:"SECONDS" help:"Target length of the extended track."`
	Fade      float64 `default:"5" placeholder:"SECONDS" help:"Fade-out length at the end."`
	KeepOutro bool    `help:"End with the original outro instead of fading out; the length becomes a minimum."`
	BitDepth  int     `default:"16" enum:"16,24,32" help:"Output WAV bit depth."`
}

func (c *ExtendCmd) Run(rc *runContext) error {
	return forEachTrack(rc, &c.BatchFlags, &c.FindFlags, func(_ context.Context, in inputFile, audio *looper.Audio, pairs []*looper.LoopPair) error {
		pair, err := pick(pairs, c.Index)
		if err != nil {
			return err
		}
		dir, err := c.dirFor(in)
		if err != nil {
			return err
		}
		opts := export.ExtendOptions{Length: c.Length, FadeLength: c.Fade, KeepOutro: c.KeepOutro}
		path, err := export.NewExporter(&export.Config{OutputDir: dir, BitDepth: c.BitDepth}).Extend(audio, pair.LoopStart, pair.LoopEnd, opts)
		if err != nil {
			return err
		}
		cli.PrintSuccess(os.Stderr, fmt.Sprintf("Extended track written to %s", path))
		return nil
	})
}

// TxtCmd appends loop points to a text file
type TxtCmd struct {
	BatchFlags
	FindFlags
	OutputFlags

	Index int    `default:"0" help:"Ranked loop to record."`
	Name  string `default:"loops" help:"Base name of the text file."`
}

func (c *TxtCmd) Run(rc *runContext) error {
	var mu sync.Mutex
	return forEachTrack(rc, &c.BatchFlags, &c.FindFlags, func(_ context.Context, in inputFile, audio *looper.Audio, pairs []*looper.LoopPair) error {
		pair, err := pick(pairs, c.Index)
		if err != nil {
			return err
		}
		dir, err := c.dirFor(in)
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		path, err := export.NewExporter(&export.Config{OutputDir: dir}).AppendTxt(audio.Filename, pair.LoopStart, pair.LoopEnd, c.Name)
		if err != nil {
			return err
		}
		logging.Info("Added loop points", logging.Fields{"file": filepath.Base(audio.Filename), "path": path})
		return nil
	})
}

// JSONCmd writes ranked loop points as JSON
type JSONCmd struct {
	BatchFlags
	FindFlags
	OutputFlags

	Top    int  `default:"0" help:"Number of ranked loops to keep (0 keeps all)."`
	Stdout bool `help:"Print the JSON to stdout instead of writing files."`
}

func (c *JSONCmd) Run(rc *runContext) error {
	return forEachTrack(rc, &c.BatchFlags, &c.FindFlags, func(_ context.Context, in inputFile, audio *looper.Audio, pairs []*looper.LoopPair) error {
		if c.Stdout {
			stdoutMu.Lock()
			defer stdoutMu.Unlock()
			return export.EncodeJSON(os.Stdout, export.NewRecord(audio, pairs, c.Top))
		}

		dir, err := c.dirFor(in)
		if err != nil {
			return err
		}
		path, err := export.NewExporter(&export.Config{OutputDir: dir}).WriteJSON(audio, pairs, c.Top)
		if err != nil {
			return err
		}
		logging.Info("Wrote loop points", logging.Fields{"file": filepath.Base(audio.Filename), "path": path})
		return nil
	})
}
