// Package clock holds the last known-good time and drives the decode
// pipeline from completed frames to listeners.
package clock

import (
	"sync"
	"time"

	"github.com/dbehnke/wwvb-sync/pkg/timezone"
	"github.com/dbehnke/wwvb-sync/pkg/wwvb"
)

// Snapshot is an immutable copy of the clock state
type Snapshot struct {
	Synced    bool           `json:"synced"`
	UTC       wwvb.Time      `json:"utc"`
	Local     timezone.Local `json:"local"`
	Offset    int            `json:"offset"`
	SyncedAt  time.Time      `json:"synced_at"`
	Successes uint64         `json:"successes"`
	Failures  uint64         `json:"failures"`
	LastError string         `json:"last_error,omitempty"`
}

// placeholder is the time reported before the first successful decode
var placeholder = wwvb.Time{Year: wwvb.CenturyBase, DayOfYear: 1}

// State is the single owner of the synchronized time. Writers are the
// synchronizer (decodes) and reconfiguration; readers are display, web and
// sinks. Every update replaces the whole record under the lock.
type State struct {
	mu       sync.RWMutex
	snap     Snapshot
	localize func(wwvb.Time, int) timezone.Local
}

// StateOption configures a State
type StateOption func(*State)

// WithDateRollover makes the local date follow the local hour across
// midnight. Without it the local date is the decoded UTC date.
func WithDateRollover(enabled bool) StateOption {
	return func(s *State) {
		if enabled {
			s.localize = timezone.LocalizeRollover
		} else {
			s.localize = timezone.Localize
		}
	}
}

// NewState creates a state at the placeholder time with offset hours
func NewState(offset int, opts ...StateOption) (*State, error) {
	if err := timezone.ValidateOffset(offset); err != nil {
		return nil, err
	}
	s := &State{localize: timezone.Localize}
	for _, opt := range opts {
		opt(s)
	}
	s.snap = Snapshot{
		UTC:    placeholder,
		Local:  s.localize(placeholder, offset),
		Offset: offset,
	}
	return s, nil
}

// Snapshot returns a copy of the current state
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Offset returns the configured timezone offset in hours
func (s *State) Offset() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Offset
}

// Apply records a successfully decoded time
func (s *State) Apply(t wwvb.Time, at time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap
	next.Synced = true
	next.UTC = t
	next.Local = s.localize(t, next.Offset)
	next.SyncedAt = at
	next.Successes++
	next.LastError = ""
	s.snap = next
	return next
}

// RecordFailure counts a rejected frame. The time fields are not touched.
func (s *State) RecordFailure(err error) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Failures++
	if err != nil {
		s.snap.LastError = err.Error()
	}
	return s.snap
}

// Reconfigure changes the timezone offset and re-derives the local view
// from the stored UTC time. Calling it twice with the same offset yields
// the same snapshot.
func (s *State) Reconfigure(offset int) (Snapshot, error) {
	if err := timezone.ValidateOffset(offset); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap
	next.Offset = offset
	next.Local = s.localize(next.UTC, offset)
	s.snap = next
	return next, nil
}
