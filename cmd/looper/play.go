package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/RyanBlaney/sonido-looper/internal/cli"
	"github.com/RyanBlaney/sonido-looper/looper"
	"github.com/RyanBlaney/sonido-looper/playback"
	"github.com/RyanBlaney/sonido-looper/transcode"
)

// previewLeadIn is how far before the loop end --preview starts
const previewLeadIn = 5 * time.Second

// PlayCmd plays a track with a loop active
type PlayCmd struct {
	FindFlags

	Path      string `arg:"" type:"existingfile" help:"Audio file to play."`
	Index     int    `default:"0" help:"Ranked loop to play."`
	LoopStart *int   `placeholder:"SAMPLE" help:"Loop start in samples; with --loop-end, skips the analysis."`
	LoopEnd   *int   `placeholder:"SAMPLE" help:"Loop end in samples."`
	Preview   bool   `help:"Start shortly before the loop end to hear the transition."`
	Stdout    bool   `help:"Write raw float32 PCM to stdout instead of starting ffplay."`
	FFplay    string `default:"ffplay" env:"LOOPER_FFPLAY" help:"Path to ffplay."`
}

func (c *PlayCmd) Run(rc *runContext) error {
	if (c.LoopStart == nil) != (c.LoopEnd == nil) {
		return errors.New("--loop-start and --loop-end must be given together")
	}

	start, end, data, err := c.prepare(rc)
	if err != nil {
		return err
	}

	startFrom := 0
	if c.Preview {
		startFrom = max(end-int(previewLeadIn.Seconds()*float64(data.SampleRate)), 0)
	}

	cursor, err := playback.NewCursor(data.PCM, data.Channels, start, end, startFrom)
	if err != nil {
		return err
	}

	playCtx, stopPlayback := context.WithCancel(rc.ctx)
	defer stopPlayback()

	var sink playback.Sink
	if c.Stdout {
		sink = playback.NewWriterSink(os.Stdout)
	} else {
		ps, err := playback.StartFFplay(playCtx, c.FFplay, data.SampleRate, data.Channels)
		if err != nil {
			return err
		}
		defer ps.Close()
		sink = ps
	}

	go watchPlayback(playCtx, rc.interrupts, cursor, stopPlayback)

	err = playback.Run(playCtx, cursor, sink, playback.DefaultBufferFrames)
	if err != nil && playCtx.Err() != nil && rc.ctx.Err() == nil {
		// stopped by the second interrupt
		return nil
	}
	return err
}

// prepare decodes the track and resolves the loop region. Ctrl+C during
// this phase aborts the command.
func (c *PlayCmd) prepare(rc *runContext) (int, int, *transcode.AudioData, error) {
	ctx, done := context.WithCancel(rc.ctx)
	defer done()
	go func() {
		select {
		case <-rc.interrupts:
			rc.cancel()
		case <-ctx.Done():
		}
	}()

	data, err := c.decoder().DecodeFile(ctx, c.Path)
	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, nil, ctx.Err()
		}
		return 0, 0, nil, &looper.AudioLoadError{Filename: c.Path, Reason: "decoding failed", Err: err}
	}

	if c.LoopStart != nil {
		return *c.LoopStart, *c.LoopEnd, data, nil
	}

	cfg := c.config()
	if err := cfg.Validate(); err != nil {
		return 0, 0, nil, err
	}
	audio, err := looper.NewAudio(c.Path, data.PCM, data.Channels, data.SampleRate)
	if err != nil {
		return 0, 0, nil, err
	}
	pairs, err := looper.FindBestLoopPoints(ctx, audio, cfg)
	if err != nil {
		return 0, 0, nil, err
	}
	pair, err := pick(pairs, c.Index)
	if err != nil {
		return 0, 0, nil, err
	}

	cli.PrintNotice(fmt.Sprintf("Playing with loop from %s back to %s (score %.2f%%). Ctrl+C to stop looping.",
		looper.FormatTime(audio.SamplesToSeconds(pair.LoopEnd)),
		looper.FormatTime(audio.SamplesToSeconds(pair.LoopStart)),
		pair.Score*100), false)
	return pair.LoopStart, pair.LoopEnd, data, nil
}

// watchPlayback drives the two-stage interrupt and reports loop progress.
func watchPlayback(ctx context.Context, interrupts <-chan os.Signal, cursor *playback.Cursor, stop context.CancelFunc) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	shown := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-interrupts:
			switch cursor.Interrupt() {
			case playback.LoopingDisabled:
				cli.PrintNotice("(Looping disabled. Ctrl+C again to stop playback.)", false)
			case playback.Stopped:
				cli.PrintNotice("Playback interrupted by user.", false)
				stop()
				return
			}
		case <-ticker.C:
			if n := cursor.Loops(); n != shown {
				shown = n
				cli.PrintNotice(fmt.Sprintf("Currently on loop #%d.", n), true)
			}
		}
	}
}
