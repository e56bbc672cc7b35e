// Package playback streams a track with an active loop region. It does no
// device I/O itself: a Cursor produces interleaved frames on demand and a
// Sink consumes them.
package playback

import (
	"fmt"
	"sync/atomic"
)

// Stage is the state reached after an Interrupt.
type Stage int

const (
	// LoopingDisabled means playback continues past the loop end to the
	// end of the track.
	LoopingDisabled Stage = iota + 1
	// Stopped means Fill emits silence and reports completion.
	Stopped
)

func (s Stage) String() string {
	switch s {
	case LoopingDisabled:
		return "looping disabled"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Cursor walks an interleaved signal, jumping from the loop end back to the
// loop start while looping is enabled. Fill is meant to be called from a
// single audio goroutine; Interrupt, Loops and Position may be called from
// any goroutine.
type Cursor struct {
	signal    []float64
	channels  int
	total     int
	loopStart int
	loopEnd   int

	pos     atomic.Int64
	loops   atomic.Int64
	looping atomic.Bool
	stopped atomic.Bool
}

// NewCursor validates the loop region (in frames, i.e. samples per channel)
// and positions the cursor at startFrom.
func NewCursor(signal []float64, channels, loopStart, loopEnd, startFrom int) (*Cursor, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}
	if len(signal)%channels != 0 {
		return nil, fmt.Errorf("signal length %d is not a multiple of %d channels", len(signal), channels)
	}
	total := len(signal) / channels

	if loopStart >= loopEnd {
		return nil, fmt.Errorf("loop points in the wrong order: start %d, end %d", loopStart, loopEnd)
	}
	if loopStart < 0 || loopEnd >= total {
		return nil, fmt.Errorf("loop points out of bounds: start %d, end %d, total frames %d", loopStart, loopEnd, total)
	}
	if startFrom < 0 || startFrom >= total {
		return nil, fmt.Errorf("start position %d out of bounds (total frames %d)", startFrom, total)
	}

	c := &Cursor{
		signal:    signal,
		channels:  channels,
		total:     total,
		loopStart: loopStart,
		loopEnd:   loopEnd,
	}
	c.pos.Store(int64(startFrom))
	c.looping.Store(true)
	return c, nil
}

// Channels returns the interleave width of the signal.
func (c *Cursor) Channels() int { return c.channels }

// Fill writes up to len(out)/channels frames into out and zeroes whatever
// it could not fill. It returns the number of frames written and whether
// playback has finished. Fill never allocates.
func (c *Cursor) Fill(out []float64) (int, bool) {
	ch := c.channels
	frames := len(out) / ch
	pos := int(c.pos.Load())
	written := 0

	for written < frames && !c.stopped.Load() {
		looping := c.looping.Load()
		if looping && pos == c.loopEnd {
			pos = c.loopStart
			c.loops.Add(1)
		}

		end := c.total
		if looping && pos < c.loopEnd {
			end = c.loopEnd
		}

		n := min(frames-written, end-pos)
		if n == 0 {
			break
		}
		copy(out[written*ch:(written+n)*ch], c.signal[pos*ch:(pos+n)*ch])
		written += n
		pos += n
	}

	clear(out[written*ch:])
	c.pos.Store(int64(pos))
	return written, c.Done()
}

// Interrupt advances the two-stage stop: the first call disables looping so
// the track plays out, any later call stops playback.
func (c *Cursor) Interrupt() Stage {
	if c.looping.CompareAndSwap(true, false) {
		return LoopingDisabled
	}
	c.stopped.Store(true)
	return Stopped
}

// Done reports whether playback was stopped or reached the end of the track.
func (c *Cursor) Done() bool {
	return c.stopped.Load() || int(c.pos.Load()) >= c.total
}

// Loops returns how many times the cursor has jumped back to the loop start.
func (c *Cursor) Loops() int { return int(c.loops.Load()) }

// Position returns the next frame Fill will read.
func (c *Cursor) Position() int { return int(c.pos.Load()) }
