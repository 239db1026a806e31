package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbehnke/wwvb-sync/pkg/logger"
	"github.com/dbehnke/wwvb-sync/pkg/pulse"
	"github.com/dbehnke/wwvb-sync/pkg/wwvb"
)

// DefaultQueueSize is the number of events buffered between the edge path
// and the listeners.
const DefaultQueueSize = 64

// Synchronizer decodes completed frames into the clock state and fans the
// outcome out to listeners.
type Synchronizer struct {
	state   *State
	decoder *wwvb.Decoder
	log     *logger.Logger
	now     func() time.Time

	events  chan Event
	dropped atomic.Uint64

	// newest state update for state listeners; replaced, never dropped
	latestMu sync.Mutex
	latest   *Event
	notify   chan struct{}

	mu             sync.RWMutex
	listeners      []Listener
	stateListeners []Listener
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithQueueSize sets the event buffer length
func WithQueueSize(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.events = make(chan Event, n)
		}
	}
}

// WithNow overrides the wall clock used to timestamp events
func WithNow(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// NewSynchronizer creates a synchronizer writing into state
func NewSynchronizer(state *State, decoder *wwvb.Decoder, log *logger.Logger, opts ...Option) *Synchronizer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	s := &Synchronizer{
		state:   state,
		decoder: decoder,
		log:     log.WithComponent("sync"),
		now:     time.Now,
		events:  make(chan Event, DefaultQueueSize),
		notify:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the clock state the synchronizer writes
func (s *Synchronizer) State() *State {
	return s.state
}

// AddListener registers l for all subsequent events
func (s *Synchronizer) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// AddStateListener registers l for clock state updates (EventSynced and
// EventReconfigured). These bypass the event queue: when l falls behind it
// receives only the newest update, but an update is never lost to a full
// queue. Use it for sinks that must track the clock, such as RTC writers.
func (s *Synchronizer) AddStateListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateListeners = append(s.stateListeners, l)
}

// HandleFrame decodes one frame and updates the clock state on success.
// It is called from the edge path: it does no I/O and never blocks. A
// failed decode leaves the time untouched.
func (s *Synchronizer) HandleFrame(f pulse.Frame) (Snapshot, error) {
	at := s.now()
	t, err := s.decoder.Decode(f.Bits)
	if err != nil {
		snap := s.state.RecordFailure(err)
		s.enqueue(Event{
			Type:     EventFailed,
			At:       at,
			Snapshot: snap,
			Err:      err,
			Reason:   wwvb.ReasonOf(err),
			BitCount: len(f.Bits),
			JitterMS: f.JitterMS,
		})
		return snap, err
	}

	snap := s.state.Apply(t, at)
	ev := Event{
		Type:     EventSynced,
		At:       at,
		Snapshot: snap,
		BitCount: len(f.Bits),
		JitterMS: f.JitterMS,
	}
	s.offerLatest(ev)
	s.enqueue(ev)
	return snap, nil
}

// SetTimezone changes the offset and notifies listeners
func (s *Synchronizer) SetTimezone(offset int) (Snapshot, error) {
	snap, err := s.state.Reconfigure(offset)
	if err != nil {
		return Snapshot{}, err
	}
	ev := Event{Type: EventReconfigured, At: s.now(), Snapshot: snap}
	s.offerLatest(ev)
	s.enqueue(ev)
	return snap, nil
}

// Dropped returns the number of events lost to a full queue
func (s *Synchronizer) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Synchronizer) enqueue(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}

// offerLatest replaces the pending state update and wakes Run
func (s *Synchronizer) offerLatest(ev Event) {
	s.latestMu.Lock()
	s.latest = &ev
	s.latestMu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) takeLatest() (Event, bool) {
	s.latestMu.Lock()
	defer s.latestMu.Unlock()
	if s.latest == nil {
		return Event{}, false
	}
	ev := *s.latest
	s.latest = nil
	return ev, true
}

// Run delivers queued events to listeners until ctx is cancelled
func (s *Synchronizer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.notify:
			if ev, ok := s.takeLatest(); ok {
				s.dispatchState(ctx, ev)
			}
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		}
	}
}

// Drain delivers events already queued and the pending state update, and
// returns once both are empty. It must not run concurrently with Run.
func (s *Synchronizer) Drain(ctx context.Context) {
	if ev, ok := s.takeLatest(); ok {
		s.dispatchState(ctx, ev)
	}
	for {
		select {
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		default:
			return
		}
	}
}

func (s *Synchronizer) dispatchState(ctx context.Context, ev Event) {
	s.mu.RLock()
	listeners := s.stateListeners
	s.mu.RUnlock()

	for _, l := range listeners {
		if err := l.HandleEvent(ctx, ev); err != nil {
			s.log.Warn("State listener failed",
				logger.String("event", string(ev.Type)),
				logger.Error(err))
		}
	}
}

func (s *Synchronizer) dispatch(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventSynced:
		s.log.Info("Time synchronized",
			logger.String("local", ev.Snapshot.Local.String()),
			logger.String("utc", ev.Snapshot.UTC.String()),
			logger.Int("day_of_year", ev.Snapshot.UTC.DayOfYear),
			logger.String("dst", ev.Snapshot.UTC.DST.String()))
	case EventFailed:
		s.log.Warn("Frame rejected",
			logger.String("reason", ev.Reason.String()),
			logger.Int("bits", ev.BitCount),
			logger.Error(ev.Err))
	case EventReconfigured:
		s.log.Info("Timezone reconfigured",
			logger.Int("offset", ev.Snapshot.Offset),
			logger.String("local", ev.Snapshot.Local.String()))
	}

	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()

	for _, l := range listeners {
		if err := l.HandleEvent(ctx, ev); err != nil {
			s.log.Warn("Listener failed",
				logger.String("event", string(ev.Type)),
				logger.Error(err))
		}
	}
}
