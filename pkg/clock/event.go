package clock

import (
	"context"
	"time"

	"github.com/dbehnke/wwvb-sync/pkg/wwvb"
)

// EventType identifies what happened
type EventType string

const (
	EventSynced       EventType = "synced"
	EventFailed       EventType = "failed"
	EventReconfigured EventType = "reconfigured"
)

// Event is delivered to listeners after every frame or reconfiguration
type Event struct {
	Type     EventType
	At       time.Time
	Snapshot Snapshot
	Err      error       // set for EventFailed
	Reason   wwvb.Reason // set for EventFailed
	BitCount int
	JitterMS []float64
}

// Listener receives pipeline events. Listeners run on the synchronizer's
// goroutine, never on the edge path, so they may block on I/O.
type Listener interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(ctx context.Context, ev Event) error

// HandleEvent calls f
func (f ListenerFunc) HandleEvent(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
