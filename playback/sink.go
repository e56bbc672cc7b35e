package playback

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"

	"github.com/RyanBlaney/sonido-looper/logging"
)

// DefaultBufferFrames is the block size Run pulls from the cursor.
const DefaultBufferFrames = 1024

// Sink consumes interleaved frames. Write may block to pace playback.
type Sink interface {
	Write(samples []float64) error
}

// Run pulls blocks from the cursor into the sink until the cursor finishes,
// the sink fails or ctx is cancelled.
func Run(ctx context.Context, cursor *Cursor, sink Sink, bufferFrames int) error {
	if bufferFrames <= 0 {
		bufferFrames = DefaultBufferFrames
	}

	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "playback",
		"function":  "Run",
	})

	buf := make([]float64, bufferFrames*cursor.Channels())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, done := cursor.Fill(buf)
		if n > 0 {
			if err := sink.Write(buf[:n*cursor.Channels()]); err != nil {
				return fmt.Errorf("playback sink: %w", err)
			}
		}
		if done {
			logger.Debug("Playback finished", logging.Fields{
				"loops":    cursor.Loops(),
				"position": cursor.Position(),
			})
			return nil
		}
	}
}

// WriterSink encodes samples as little-endian float32 PCM.
type WriterSink struct {
	w   io.Writer
	buf []byte
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(samples []float64) error {
	need := len(samples) * 4
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	b := s.buf[:need]
	for i, v := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(float32(v)))
	}
	_, err := s.w.Write(b)
	return err
}

// ProcessSink pipes float32 PCM into an ffplay process.
type ProcessSink struct {
	*WriterSink
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// StartFFplay launches ffplay reading raw PCM from stdin.
func StartFFplay(ctx context.Context, ffplayPath string, sampleRate, channels int) (*ProcessSink, error) {
	args := []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "f32le",
		"-ar", strconv.Itoa(sampleRate),
		"-ch_layout", channelLayout(channels),
		"-i", "pipe:0",
	}

	cmd := exec.CommandContext(ctx, ffplayPath, args...)
	detach(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffplay stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", ffplayPath, err)
	}

	return &ProcessSink{
		WriterSink: NewWriterSink(stdin),
		cmd:        cmd,
		stdin:      stdin,
	}, nil
}

// Close ends the input stream and waits for ffplay to drain it.
func (p *ProcessSink) Close() error {
	closeErr := p.stdin.Close()
	waitErr := p.cmd.Wait()

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) && !exitErr.Exited() {
		// killed by context cancellation
		waitErr = nil
	}
	return errors.Join(closeErr, waitErr)
}

func channelLayout(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return strconv.Itoa(channels) + "c"
	}
}
