package pulse

import (
	"testing"
	"time"
)

const ms = time.Millisecond

// pulseEdges returns the rising/falling pair for a pulse of width w at t
func pulseEdges(t, w time.Duration) []Edge {
	return []Edge{{Direction: Rising, At: t}, {Direction: Falling, At: t + w}}
}

func feed(c *Classifier, edges []Edge) {
	for _, e := range edges {
		c.HandleEdge(e)
	}
}

func TestDefaultWindows_Valid(t *testing.T) {
	if err := DefaultWindows.Validate(); err != nil {
		t.Fatalf("default windows invalid: %v", err)
	}
}

func TestWindows_ValidateOverlap(t *testing.T) {
	w := DefaultWindows
	w.One = Window{Min: 500 * ms, Max: 760 * ms}
	if err := w.Validate(); err == nil {
		t.Fatal("expected overlap error")
	}
	w = DefaultWindows
	w.Marker = Window{Min: 0, Max: 100 * ms}
	if err := w.Validate(); err == nil {
		t.Fatal("expected error for non-positive minimum")
	}
}

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		width time.Duration
		want  Class
	}{
		{749 * ms, Noise},
		{750 * ms, Zero},
		{800 * ms, Zero},
		{849 * ms, Zero},
		{850 * ms, Zero},
		{851 * ms, Noise},
		{449 * ms, Noise},
		{450 * ms, One},
		{550 * ms, One},
		{551 * ms, Noise},
		{149 * ms, Noise},
		{150 * ms, Marker},
		{249 * ms, Marker},
		{250 * ms, Marker},
		{251 * ms, Noise},
		{650 * ms, Noise},
		{0, Noise},
		{2 * time.Second, Noise},
	}
	for _, tt := range tests {
		if got := DefaultWindows.Classify(tt.width); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.width, got, tt.want)
		}
	}
}

func TestClassify_NoDoubleClassification(t *testing.T) {
	w := DefaultWindows
	for d := time.Duration(0); d <= time.Second; d += ms {
		matches := 0
		for _, win := range []Window{w.Zero, w.One, w.Marker} {
			if win.Contains(d) {
				matches++
			}
		}
		if matches > 1 {
			t.Fatalf("duration %v matched %d windows", d, matches)
		}
	}
}

func TestClassifier_AppendsBits(t *testing.T) {
	c, err := NewClassifier(DefaultWindows, nil)
	if err != nil {
		t.Fatal(err)
	}
	feed(c, pulseEdges(0, 800*ms))
	feed(c, pulseEdges(time.Second, 500*ms))
	feed(c, pulseEdges(2*time.Second, 200*ms))
	feed(c, pulseEdges(3*time.Second, 650*ms))

	bits, markers := c.Pending()
	if bits != 2 || markers != 1 {
		t.Fatalf("Pending() = (%d, %d), want (2, 1)", bits, markers)
	}
	if c.bits[0] != 0 || c.bits[1] != 1 {
		t.Errorf("bits = %v, want [0 1]", c.bits)
	}
	s := c.Stats()
	if s.Zeros != 1 || s.Ones != 1 || s.Markers != 1 || s.Noise != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestClassifier_FirstFallingEdgeOnlyRecordsTime(t *testing.T) {
	c, _ := NewClassifier(DefaultWindows, nil)
	c.HandleEdge(Edge{Direction: Falling, At: 5 * time.Second})
	if bits, markers := c.Pending(); bits != 0 || markers != 0 {
		t.Fatalf("expected no classification without a previous edge, got (%d, %d)", bits, markers)
	}
	c.HandleEdge(Edge{Direction: Falling, At: 5*time.Second + 500*ms})
	if bits, _ := c.Pending(); bits != 1 {
		t.Fatalf("expected one bit after a measured pulse, got %d", bits)
	}
}

func TestClassifier_NoiseUpdatesTiming(t *testing.T) {
	c, _ := NewClassifier(DefaultWindows, nil)
	c.HandleEdge(Edge{Direction: Rising, At: 0})
	c.HandleEdge(Edge{Direction: Falling, At: 50 * ms})
	// measured from the noise edge, not from the rising edge
	c.HandleEdge(Edge{Direction: Falling, At: 250 * ms})
	if _, markers := c.Pending(); markers != 1 {
		t.Fatalf("expected marker measured from last edge, got %d markers", markers)
	}
}

func TestClassifier_CompletesFrameAfterSixtyMarkers(t *testing.T) {
	var frames []Frame
	c, _ := NewClassifier(DefaultWindows, func(f Frame) { frames = append(frames, f) })

	bits := make([]uint8, 60)
	for i := range bits {
		bits[i] = uint8(i % 2)
	}
	feed(c, Synthesize(bits, DefaultWindows, 0))

	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	f := frames[0]
	if len(f.Bits) != 60 || f.Markers != 60 {
		t.Fatalf("frame has %d bits and %d markers", len(f.Bits), f.Markers)
	}
	for i := range bits {
		if f.Bits[i] != bits[i] {
			t.Fatalf("bit %d = %d, want %d", i, f.Bits[i], bits[i])
		}
	}
	if len(f.JitterMS) != 120 {
		t.Errorf("expected jitter for 120 pulses, got %d", len(f.JitterMS))
	}
	for _, j := range f.JitterMS {
		if j != 0 {
			t.Fatalf("nominal pulses should have zero jitter, got %v", j)
		}
	}
	if b, m := c.Pending(); b != 0 || m != 0 {
		t.Errorf("expected reset after frame, got (%d, %d)", b, m)
	}
	if c.Stats().Frames != 1 {
		t.Errorf("expected frame counter 1, got %d", c.Stats().Frames)
	}
}

func TestClassifier_FrameOwnsItsBits(t *testing.T) {
	var frames []Frame
	c, _ := NewClassifier(DefaultWindows, func(f Frame) { frames = append(frames, f) })

	ones := make([]uint8, 60)
	for i := range ones {
		ones[i] = 1
	}
	edges := Synthesize(ones, DefaultWindows, 0)
	edges = append(edges, Synthesize(make([]uint8, 60), DefaultWindows, 200*time.Second)...)
	feed(c, edges)

	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Bits[0] != 1 {
		t.Error("first frame bits were overwritten by the second frame")
	}
}

func TestClassifier_MarkersOnlyFrame(t *testing.T) {
	var frames []Frame
	c, _ := NewClassifier(DefaultWindows, func(f Frame) { frames = append(frames, f) })
	at := time.Duration(0)
	for i := 0; i < 60; i++ {
		feed(c, pulseEdges(at, 200*ms))
		at += time.Second
	}
	if len(frames) != 1 || len(frames[0].Bits) != 0 {
		t.Fatalf("expected one empty frame, got %+v", frames)
	}
}
