// Package pulse turns edge timings from a time-code receiver into data bits
// and frame markers.
//
// The Classifier is driven from a single goroutine (the edge source). Its
// per-edge work is bounded: a subtraction, a table lookup and at most one
// append. Frame completion hands a copy of the bits to the FrameHandler.
package pulse

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Direction of a line transition
type Direction int

const (
	_ Direction = iota
	// Rising indicates the start of a pulse
	Rising
	// Falling indicates the end of a pulse
	Falling
)

func (d Direction) String() string {
	switch d {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Edge is one transition reported by an edge source. At is a monotonic
// timestamp relative to an arbitrary origin.
type Edge struct {
	Direction Direction
	At        time.Duration
}

// Handler consumes edges
type Handler func(Edge)

// Class is the result of classifying one pulse
type Class int

const (
	Noise Class = iota
	Zero
	One
	Marker
)

func (c Class) String() string {
	switch c {
	case Zero:
		return "zero"
	case One:
		return "one"
	case Marker:
		return "marker"
	default:
		return "noise"
	}
}

// SecondsPerFrame markers complete one frame
const SecondsPerFrame = 60

// Window is an inclusive pulse width range
type Window struct {
	Min time.Duration
	Max time.Duration
}

// Contains reports whether d lies within the window, bounds included
func (w Window) Contains(d time.Duration) bool {
	return d >= w.Min && d <= w.Max
}

// center is the nominal pulse width of the window
func (w Window) center() time.Duration {
	return (w.Min + w.Max) / 2
}

// Windows holds the pulse width windows for each class
type Windows struct {
	Zero   Window
	One    Window
	Marker Window
}

// DefaultWindows are the standard pulse widths with +/-50ms tolerance
var DefaultWindows = Windows{
	Zero:   Window{Min: 750 * time.Millisecond, Max: 850 * time.Millisecond},
	One:    Window{Min: 450 * time.Millisecond, Max: 550 * time.Millisecond},
	Marker: Window{Min: 150 * time.Millisecond, Max: 250 * time.Millisecond},
}

// Validate checks that windows are well formed and do not overlap, so a
// duration can never match more than one class.
func (w Windows) Validate() error {
	named := []struct {
		name string
		w    Window
	}{{"zero", w.Zero}, {"one", w.One}, {"marker", w.Marker}}
	for i, a := range named {
		if a.w.Min <= 0 || a.w.Max < a.w.Min {
			return fmt.Errorf("pulse: %s window [%v,%v] is invalid", a.name, a.w.Min, a.w.Max)
		}
		for _, b := range named[i+1:] {
			if a.w.Min <= b.w.Max && b.w.Min <= a.w.Max {
				return fmt.Errorf("pulse: %s and %s windows overlap", a.name, b.name)
			}
		}
	}
	return nil
}

// Classify maps a pulse width to its class
func (w Windows) Classify(d time.Duration) Class {
	switch {
	case w.Zero.Contains(d):
		return Zero
	case w.One.Contains(d):
		return One
	case w.Marker.Contains(d):
		return Marker
	default:
		return Noise
	}
}

func (w Windows) window(c Class) Window {
	switch c {
	case Zero:
		return w.Zero
	case One:
		return w.One
	default:
		return w.Marker
	}
}

// Frame is the bit sequence observed between two frame boundaries
type Frame struct {
	Bits    []uint8
	Markers int
	// JitterMS holds, per classified pulse, the deviation in milliseconds
	// from the nominal width of its class.
	JitterMS []float64
}

// FrameHandler is invoked synchronously when a frame completes
type FrameHandler func(Frame)

// Stats are cumulative classification counters
type Stats struct {
	Zeros   uint64
	Ones    uint64
	Markers uint64
	Noise   uint64
	Frames  uint64
}

// Classifier accumulates bits from falling-edge pulse widths
type Classifier struct {
	windows Windows
	onFrame FrameHandler

	lastEdge time.Duration
	haveEdge bool
	bits     []uint8
	jitter   []float64
	seconds  int

	zeros, ones, markers, noise, frames atomic.Uint64
}

// NewClassifier creates a classifier. onFrame may be nil.
func NewClassifier(windows Windows, onFrame FrameHandler) (*Classifier, error) {
	if err := windows.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		windows: windows,
		onFrame: onFrame,
		bits:    make([]uint8, 0, SecondsPerFrame),
		jitter:  make([]float64, 0, 2*SecondsPerFrame),
	}, nil
}

// HandleEdge processes one transition. Rising edges only record timing;
// falling edges classify the pulse that just ended.
func (c *Classifier) HandleEdge(e Edge) {
	if e.Direction != Falling || !c.haveEdge {
		c.lastEdge = e.At
		c.haveEdge = true
		return
	}

	width := e.At - c.lastEdge
	c.lastEdge = e.At

	class := c.windows.Classify(width)
	switch class {
	case Zero:
		c.zeros.Add(1)
		c.bits = append(c.bits, 0)
	case One:
		c.ones.Add(1)
		c.bits = append(c.bits, 1)
	case Marker:
		c.markers.Add(1)
		c.seconds++
	default:
		c.noise.Add(1)
		return
	}
	dev := width - c.windows.window(class).center()
	c.jitter = append(c.jitter, float64(dev)/float64(time.Millisecond))

	if c.seconds >= SecondsPerFrame {
		c.completeFrame()
	}
}

// completeFrame hands off the accumulated bits and starts a new frame
func (c *Classifier) completeFrame() {
	c.frames.Add(1)
	if c.onFrame != nil {
		frame := Frame{
			Bits:     append([]uint8(nil), c.bits...),
			Markers:  c.seconds,
			JitterMS: append([]float64(nil), c.jitter...),
		}
		c.onFrame(frame)
	}
	c.Reset()
}

// Reset discards the partial frame. Timing state is kept so the next
// falling edge still measures a full pulse.
func (c *Classifier) Reset() {
	c.bits = c.bits[:0]
	c.jitter = c.jitter[:0]
	c.seconds = 0
}

// Pending returns the number of bits and markers in the current frame.
// It must be called from the goroutine feeding HandleEdge.
func (c *Classifier) Pending() (bits, markers int) {
	return len(c.bits), c.seconds
}

// Stats returns the cumulative counters; safe for concurrent use
func (c *Classifier) Stats() Stats {
	return Stats{
		Zeros:   c.zeros.Load(),
		Ones:    c.ones.Load(),
		Markers: c.markers.Load(),
		Noise:   c.noise.Load(),
		Frames:  c.frames.Load(),
	}
}
