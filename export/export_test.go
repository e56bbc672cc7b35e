package export

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/sonido-looper/looper"
	"github.com/RyanBlaney/sonido-looper/transcode"
)

const testRate = 1000

// testTrack builds a track whose left channel is a slow sine and whose
// right channel is its negation, so every sample is identifiable.
func testTrack(t *testing.T, dir string, seconds, channels int) *looper.Audio {
	t.Helper()
	frames := seconds * testRate
	pcm := make([]float64, frames*channels)
	for i := range frames {
		v := 0.9 * math.Sin(2*math.Pi*float64(i)/997)
		for c := range channels {
			if c%2 == 1 {
				pcm[i*channels+c] = -v
			} else {
				pcm[i*channels+c] = v
			}
		}
	}
	return &looper.Audio{
		Filename:   filepath.Join(dir, "song.wav"),
		SampleRate: testRate,
		Channels:   channels,
		Duration:   float64(seconds),
		Playback:   pcm,
	}
}

func decode(t *testing.T, path string) *transcode.AudioData {
	t.Helper()
	cfg := transcode.DefaultDecoderConfig()
	cfg.FFmpegPath = filepath.Join(t.TempDir(), "no-ffmpeg")
	cfg.FFprobePath = cfg.FFmpegPath
	data, err := transcode.NewDecoder(cfg).DecodeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return data
}

func assertSamples(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-4 {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSplitWritesThreeSections(t *testing.T) {
	dir := t.TempDir()
	audio := testTrack(t, dir, 3, 2)
	out := t.TempDir()

	paths, err := NewExporter(&Config{OutputDir: out}).Split(audio, 700, 2100)
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		name     string
		from, to int
	}{
		{"song.wav-intro.wav", 0, 700},
		{"song.wav-loop.wav", 700, 2100},
		{"song.wav-outro.wav", 2100, 3000},
	}
	if len(paths) != len(want) {
		t.Fatalf("got %d paths", len(paths))
	}
	for i, w := range want {
		t.Run(w.name, func(t *testing.T) {
			if paths[i] != filepath.Join(out, w.name) {
				t.Errorf("path = %s", paths[i])
			}
			data := decode(t, paths[i])
			if data.Channels != 2 || data.SampleRate != testRate {
				t.Errorf("layout = %d x %d Hz", data.Channels, data.SampleRate)
			}
			assertSamples(t, data.PCM, audio.Playback[w.from*2:w.to*2])
		})
	}
}

func TestSplitRejectsBadBounds(t *testing.T) {
	audio := testTrack(t, t.TempDir(), 1, 1)
	e := NewExporter(&Config{OutputDir: t.TempDir()})
	for _, b := range [][2]int{{-1, 10}, {10, 10}, {20, 10}, {0, 1001}} {
		if _, err := e.Split(audio, b[0], b[1]); err == nil {
			t.Errorf("Split(%d, %d) accepted", b[0], b[1])
		}
	}
}

func TestExtendWithFadeOut(t *testing.T) {
	audio := testTrack(t, t.TempDir(), 10, 1)
	out := t.TempDir()

	path, err := NewExporter(&Config{OutputDir: out}).Extend(audio, 2000, 6000, DefaultExtendOptions(20))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(out, "song.wav-extended-0m20s.wav"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}

	data := decode(t, path)
	if len(data.PCM) != 20000 {
		t.Fatalf("extended length = %d, want 20000", len(data.PCM))
	}

	// Intro, then four whole loops.
	assertSamples(t, data.PCM[:2000], audio.Playback[:2000])
	for k := range 4 {
		at := 2000 + k*4000
		assertSamples(t, data.PCM[at:at+4000], audio.Playback[2000:6000])
	}

	// The half loop at the end fades to silence.
	tail := data.PCM[18000:]
	if math.Abs(tail[len(tail)-1]) > 1e-4 {
		t.Errorf("last sample = %v, want 0", tail[len(tail)-1])
	}
	if math.Abs(tail[0]-audio.Playback[2000]) > 1e-4 {
		t.Errorf("fade starts at %v, want %v", tail[0], audio.Playback[2000])
	}
}

func TestExtendKeepsOutro(t *testing.T) {
	audio := testTrack(t, t.TempDir(), 10, 1)
	out := t.TempDir()

	opts := DefaultExtendOptions(20)
	opts.KeepOutro = true
	path, err := NewExporter(&Config{OutputDir: out}).Extend(audio, 2000, 6000, opts)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(out, "song.wav-extended-0m22s.wav"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}

	data := decode(t, path)
	if len(data.PCM) != 22000 {
		t.Fatalf("extended length = %d, want 22000", len(data.PCM))
	}
	assertSamples(t, data.PCM[18000:], audio.Playback[6000:])
}

func TestExtendRejectsShortTarget(t *testing.T) {
	audio := testTrack(t, t.TempDir(), 10, 1)
	if _, err := NewExporter(nil).Extend(audio, 2000, 6000, DefaultExtendOptions(9)); err == nil {
		t.Error("expected an error for a target shorter than the track")
	}
}

func TestFadeOut(t *testing.T) {
	tests := []struct {
		name     string
		in       []float64
		channels int
		fade     int
		want     []float64
	}{
		{"whole section", []float64{1, 1, 1, 1}, 1, 4, []float64{1, 2.0 / 3, 1.0 / 3, 0}},
		{"longer than section", []float64{1, 1}, 1, 10, []float64{1, 0}},
		{"tail only", []float64{1, 1, 1, 1}, 1, 2, []float64{1, 1, 1, 0}},
		{"stereo", []float64{1, -1, 1, -1}, 2, 2, []float64{1, -1, 0, 0}},
		{"no fade", []float64{1, 1}, 1, 0, []float64{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fadeOut(tt.in, tt.channels, tt.fade)
			for i := range tt.want {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestDurationSuffix(t *testing.T) {
	tests := map[float64]string{
		0.5:   "0m01s",
		20:    "0m20s",
		59.2:  "1m00s",
		60:    "1m00s",
		125:   "2m05s",
		184.1: "3m05s",
	}
	for in, want := range tests {
		if got := durationSuffix(in); got != want {
			t.Errorf("durationSuffix(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestAppendTxt(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(&Config{OutputDir: dir})

	path, err := e.AppendTxt("/music/song.ogg", 100, 200, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.AppendTxt("/music/other.ogg", 300, 400, ""); err != nil {
		t.Fatal(err)
	}

	if path != filepath.Join(dir, "loops.txt") {
		t.Errorf("path = %s", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := "100 200 song.ogg\n300 400 other.ogg\n"; string(got) != want {
		t.Errorf("contents = %q, want %q", got, want)
	}
}

func TestWriteJSON(t *testing.T) {
	audio := testTrack(t, t.TempDir(), 4, 2)
	dir := t.TempDir()
	pairs := []*looper.LoopPair{
		{LoopStart: 1000, LoopEnd: 3500, Score: 0.97, NoteDistance: 0.01, LoudnessDifference: 0.2},
		{LoopStart: 500, LoopEnd: 3000, Score: 0.91},
		{LoopStart: 200, LoopEnd: 2200, Score: 0.5},
	}

	path, err := NewExporter(&Config{OutputDir: dir}).WriteJSON(audio, pairs, 2)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "song.wav.loops.json") {
		t.Errorf("path = %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		t.Fatal(err)
	}

	if record.Filename != "song.wav" || record.SampleRate != testRate || record.Channels != 2 {
		t.Errorf("header = %+v", record)
	}
	if len(record.Loops) != 2 {
		t.Fatalf("got %d loops, want the limit of 2", len(record.Loops))
	}
	first := record.Loops[0]
	if first.LoopStart != 1000 || first.LoopEnd != 3500 || first.Score != 0.97 || first.LoudnessDifference != 0.2 {
		t.Errorf("first loop = %+v", first)
	}
	if first.LoopStartTime != "00:01.000" || first.LoopEndTime != "00:03.500" {
		t.Errorf("times = %s, %s", first.LoopStartTime, first.LoopEndTime)
	}
}
