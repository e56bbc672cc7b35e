package playback

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"sync"
	"testing"
)

// ramp returns a mono signal whose sample i equals i.
func ramp(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = float64(i)
	}
	return s
}

func TestNewCursorValidation(t *testing.T) {
	tests := []struct {
		name                  string
		length, channels      int
		start, end, startFrom int
		wantErr               bool
	}{
		{"valid", 10, 1, 2, 8, 0, false},
		{"valid stereo", 20, 2, 2, 8, 5, false},
		{"start after end", 10, 1, 8, 2, 0, true},
		{"equal points", 10, 1, 4, 4, 0, true},
		{"negative start", 10, 1, -1, 5, 0, true},
		{"end at total", 10, 1, 2, 10, 0, true},
		{"start from past end", 10, 1, 2, 8, 10, true},
		{"zero channels", 10, 0, 2, 8, 0, true},
		{"ragged interleave", 11, 2, 1, 3, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCursor(make([]float64, tt.length), tt.channels, tt.start, tt.end, tt.startFrom)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewCursor() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFillWrapsAtLoopEnd(t *testing.T) {
	c, err := NewCursor(ramp(10), 1, 2, 6, 0)
	if err != nil {
		t.Fatal(err)
	}

	out := make([]float64, 8)
	n, done := c.Fill(out)
	if n != 8 || done {
		t.Fatalf("Fill = (%d, %v)", n, done)
	}
	if want := []float64{0, 1, 2, 3, 4, 5, 2, 3}; !slices.Equal(out, want) {
		t.Errorf("first block = %v, want %v", out, want)
	}
	if c.Loops() != 1 {
		t.Errorf("loops = %d, want 1", c.Loops())
	}

	// A block longer than the loop wraps more than once.
	out = make([]float64, 10)
	c.Fill(out)
	if want := []float64{4, 5, 2, 3, 4, 5, 2, 3, 4, 5}; !slices.Equal(out, want) {
		t.Errorf("second block = %v, want %v", out, want)
	}
	if c.Loops() != 3 {
		t.Errorf("loops = %d, want 3", c.Loops())
	}
}

func TestFillStereoInterleave(t *testing.T) {
	signal := []float64{0, -0, 1, -1, 2, -2, 3, -3, 4, -4}
	c, err := NewCursor(signal, 2, 1, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]float64, 6)
	c.Fill(out)
	if want := []float64{2, -2, 1, -1, 2, -2}; !slices.Equal(out, want) {
		t.Errorf("out = %v, want %v", out, want)
	}
}

func TestInterruptTwoStage(t *testing.T) {
	c, err := NewCursor(ramp(10), 1, 2, 6, 4)
	if err != nil {
		t.Fatal(err)
	}

	if got := c.Interrupt(); got != LoopingDisabled {
		t.Fatalf("first interrupt = %v", got)
	}

	// Without looping the cursor plays through to the end and zero pads.
	out := make([]float64, 8)
	n, done := c.Fill(out)
	if n != 6 || !done {
		t.Fatalf("Fill = (%d, %v), want (6, true)", n, done)
	}
	if want := []float64{4, 5, 6, 7, 8, 9, 0, 0}; !slices.Equal(out, want) {
		t.Errorf("out = %v, want %v", out, want)
	}
	if c.Loops() != 0 {
		t.Errorf("loops = %d after disabling looping", c.Loops())
	}

	c2, _ := NewCursor(ramp(10), 1, 2, 6, 0)
	c2.Interrupt()
	if got := c2.Interrupt(); got != Stopped {
		t.Fatalf("second interrupt = %v", got)
	}
	out = []float64{9, 9, 9}
	if n, done := c2.Fill(out); n != 0 || !done {
		t.Errorf("Fill after stop = (%d, %v)", n, done)
	}
	if !slices.Equal(out, []float64{0, 0, 0}) {
		t.Errorf("stopped cursor wrote %v", out)
	}
}

func TestFillDoesNotAllocate(t *testing.T) {
	c, err := NewCursor(ramp(4096), 1, 100, 3000, 0)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]float64, 512)
	allocs := testing.AllocsPerRun(100, func() { c.Fill(out) })
	if allocs != 0 {
		t.Errorf("Fill allocated %v times per call", allocs)
	}
}

func TestInterruptConcurrentWithFill(t *testing.T) {
	c, err := NewCursor(ramp(1000), 1, 10, 900, 0)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		out := make([]float64, 64)
		for {
			if _, done := c.Fill(out); done {
				return
			}
		}
	}()

	c.Interrupt()
	c.Interrupt()
	wg.Wait()

	if !c.Done() {
		t.Error("cursor not done after two interrupts")
	}
}

type recordingSink struct {
	got  []float64
	fail error
}

func (r *recordingSink) Write(samples []float64) error {
	if r.fail != nil {
		return r.fail
	}
	r.got = append(r.got, samples...)
	return nil
}

func TestRunStreamsUntilDone(t *testing.T) {
	c, err := NewCursor(ramp(10), 1, 2, 6, 0)
	if err != nil {
		t.Fatal(err)
	}
	c.Interrupt() // play straight through

	sink := &recordingSink{}
	if err := Run(context.Background(), c, sink, 3); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(sink.got, ramp(10)) {
		t.Errorf("sink got %v", sink.got)
	}
}

func TestRunErrors(t *testing.T) {
	c, _ := NewCursor(ramp(10), 1, 2, 6, 0)

	boom := errors.New("device gone")
	if err := Run(context.Background(), c, &recordingSink{fail: boom}, 4); !errors.Is(err, boom) {
		t.Errorf("err = %v, want sink error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, c, &recordingSink{}, 4); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWriterSinkEncodesFloat32(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)
	if err := sink.Write([]float64{0.5, -1}); err != nil {
		t.Fatal(err)
	}
	if err := sink.Write([]float64{0.25}); err != nil {
		t.Fatal(err)
	}

	raw := buf.Bytes()
	if len(raw) != 12 {
		t.Fatalf("wrote %d bytes, want 12", len(raw))
	}
	for i, want := range []float32{0.5, -1, 0.25} {
		got := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		if got != want {
			t.Errorf("sample %d = %v, want %v", i, got, want)
		}
	}
}
