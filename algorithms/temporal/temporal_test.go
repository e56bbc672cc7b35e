package temporal

import (
	"math"
	"slices"
	"testing"
)

// impulseTrain returns an onset envelope with unit spikes every period frames
func impulseTrain(t *testing.T, n, period, offset int) []float64 {
	t.Helper()
	env := make([]float64, n)
	for i := offset; i < n; i += period {
		env[i] = 1
	}
	return env
}

func TestLocalMaxima(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []int
	}{
		{"empty", nil, nil},
		{"first never counts", []float64{5, 1, 1}, nil},
		{"rising end counts", []float64{0, 1, 2}, []int{2}},
		{"plateau keeps left edge", []float64{0, 2, 2, 0}, []int{1}},
		{"several", []float64{0, 3, 1, 4, 1, 1}, []int{1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocalMaxima(tt.in); !slices.Equal(got, tt.want) {
				t.Errorf("LocalMaxima(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOnsetStrengthRectifiesAndDelays(t *testing.T) {
	// Energy steps up at frame 5 and back down at frame 8.
	spec := make([][]float64, 12)
	for i := range spec {
		level := 0.0
		if i >= 5 && i < 8 {
			level = 10
		}
		spec[i] = []float64{level, level}
	}

	env, err := NewOnsetDetection(2048, 512).Strength(spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(env) != len(spec) {
		t.Fatalf("len = %d, want %d", len(env), len(spec))
	}

	// Rise between frames 4 and 5 shows up at 5 + 2 (centering delay).
	for i, v := range env {
		want := 0.0
		if i == 7 {
			want = 10
		}
		if v != want {
			t.Errorf("env[%d] = %v, want %v", i, v, want)
		}
	}

	if _, err := NewOnsetDetection(2048, 512).Strength(nil); err == nil {
		t.Error("expected error for empty spectrogram")
	}
}

func TestEstimateTempoFromImpulses(t *testing.T) {
	const sr, hop = 22050, 512
	fps := float64(sr) / hop
	onset := impulseTrain(t, int(30*fps), 22, 3)

	bpm, err := NewTempoEstimation(DefaultTempoConfig()).EstimateTempo(onset, sr, hop)
	if err != nil {
		t.Fatal(err)
	}
	want := 60 * fps / 22
	if math.Abs(bpm-want) > 0.5 {
		t.Errorf("bpm = %.2f, want %.2f", bpm, want)
	}
}

func TestSilentEnvelopeFallsBackToPrior(t *testing.T) {
	bpm, beats, err := NewBeatTracker(DefaultBeatTrackerConfig()).Track(make([]float64, 500), 22050, 512)
	if err != nil {
		t.Fatal(err)
	}
	if len(beats) != 0 {
		t.Errorf("expected no beats, got %v", beats)
	}
	// The prior alone picks the lag closest to 120 BPM.
	if math.Abs(bpm-120) > 3 {
		t.Errorf("bpm = %.2f, want about 120", bpm)
	}
}

func TestBeatTrackerFollowsImpulses(t *testing.T) {
	const sr, hop, period = 22050, 512, 22
	onset := impulseTrain(t, 1200, period, 5)

	bpm, beats, err := NewBeatTracker(DefaultBeatTrackerConfig()).Track(onset, sr, hop)
	if err != nil {
		t.Fatal(err)
	}
	if bpm <= 0 {
		t.Fatalf("bpm = %v", bpm)
	}
	if len(beats) < 40 {
		t.Fatalf("only %d beats tracked", len(beats))
	}
	if !slices.IsSorted(beats) {
		t.Fatalf("beats not sorted: %v", beats)
	}

	for _, b := range beats {
		if d := ((b-5)%period + period) % period; d != 0 && d != 1 && d != period-1 {
			t.Errorf("beat %d is %d frames off the impulse grid", b, d)
		}
	}
}

func TestTrackWithTempoRejectsBadInput(t *testing.T) {
	bt := NewBeatTracker(DefaultBeatTrackerConfig())
	if _, err := bt.TrackWithTempo([]float64{1, 0, 1}, 0, 22050, 512); err == nil {
		t.Error("expected error for zero tempo")
	}

	cfg := DefaultBeatTrackerConfig()
	cfg.Tightness = 0
	if _, err := NewBeatTracker(cfg).TrackWithTempo([]float64{1, 0, 1}, 120, 22050, 512); err == nil {
		t.Error("expected error for zero tightness")
	}
}

func TestPLPPulsePeriod(t *testing.T) {
	// A raised cosine every 24 frames lands exactly on tempogram bin 16.
	const sr, hop, period = 22050, 512, 24
	onset := make([]float64, 1000)
	for i := range onset {
		onset[i] = 0.5 + 0.5*math.Cos(2*math.Pi*float64(i)/period)
	}

	plp := NewPLP(DefaultPLPConfig())
	pulse, err := plp.Pulse(onset, sr, hop)
	if err != nil {
		t.Fatal(err)
	}
	if len(pulse) != len(onset) {
		t.Fatalf("len = %d, want %d", len(pulse), len(onset))
	}
	for i, v := range pulse {
		if v < 0 || v > 1+1e-12 {
			t.Fatalf("pulse[%d] = %v out of [0,1]", i, v)
		}
	}

	beats, err := plp.Beats(onset, sr, hop)
	if err != nil {
		t.Fatal(err)
	}
	// Away from the edges the pulse repeats once per period.
	var gaps []int
	for i := 1; i < len(beats); i++ {
		if beats[i-1] > 200 && beats[i] < 800 {
			gaps = append(gaps, beats[i]-beats[i-1])
		}
	}
	if len(gaps) == 0 {
		t.Fatalf("no interior pulse peaks: %v", beats)
	}
	for _, g := range gaps {
		if g < period-2 || g > period+2 {
			t.Errorf("pulse gap %d, want about %d", g, period)
		}
	}

	if _, err := NewPLP(PLPConfig{WinLength: 3}).Pulse(onset, sr, hop); err == nil {
		t.Error("expected error for odd window")
	}
}

func TestTrimLeadingAndTrailingSilence(t *testing.T) {
	const sr = 44100
	signal := make([]float64, 3*sr)
	for i := sr; i < 2*sr; i++ {
		signal[i] = math.Sin(2 * math.Pi * 440 * float64(i) / sr)
	}

	start, end := NewSilenceDetection(2048, 512).Trim(signal, 40)
	if start < sr-2048 || start > sr {
		t.Errorf("start = %d, want within a frame before %d", start, sr)
	}
	if end < 2*sr || end > 2*sr+2048 {
		t.Errorf("end = %d, want within a frame after %d", end, 2*sr)
	}
	if start%512 != 0 {
		t.Errorf("start %d is not frame aligned", start)
	}

	if s, e := NewSilenceDetection(2048, 512).Trim(nil, 40); s != 0 || e != 0 {
		t.Errorf("empty trim = [%d,%d)", s, e)
	}
}

func TestRMSEnvelopeCentered(t *testing.T) {
	signal := make([]float64, 4096)
	for i := range signal {
		signal[i] = 1
	}
	rms := NewEnvelope().ComputeRMS(signal, 2048, 512)
	if len(rms) != 1+4096/512 {
		t.Fatalf("frames = %d", len(rms))
	}
	// Frame 0 is half padding.
	if math.Abs(rms[0]-math.Sqrt(0.5)) > 1e-12 {
		t.Errorf("rms[0] = %v, want sqrt(0.5)", rms[0])
	}
	if math.Abs(rms[4]-1) > 1e-12 {
		t.Errorf("rms[4] = %v, want 1", rms[4])
	}
}
