// Package rtc pushes synchronized time into real-time clock sinks.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbehnke/wwvb-sync/pkg/clock"
	"github.com/dbehnke/wwvb-sync/pkg/logger"
)

// DateTime is the value written to a sink. Second and Subsecond are always
// zero because a frame is only complete at the top of the minute.
type DateTime struct {
	Year      int
	Month     int
	Day       int
	Weekday   int // Monday = 0
	Hour      int
	Minute    int
	Second    int
	Subsecond int
	// UTCOffset is the local offset from UTC including DST
	UTCOffset time.Duration
	// UTC is the decoded instant. The local fields keep the decoded date
	// when the hour wraps, so they cannot always be converted back.
	UTC time.Time
}

// String formats the local fields as YYYY-MM-DD HH:MM
func (d DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute)
}

// FromSnapshot builds the local DateTime of snap
func FromSnapshot(snap clock.Snapshot) DateTime {
	l := snap.Local
	u := snap.UTC
	return DateTime{
		Year:      l.Year,
		Month:     l.Month,
		Day:       l.Day,
		Weekday:   int(l.Weekday),
		Hour:      l.Hour,
		Minute:    l.Minute,
		UTCOffset: time.Duration(l.UTCOffsetHours()) * time.Hour,
		UTC:       time.Date(u.Year, time.January, u.DayOfYear, u.Hour, u.Minute, 0, 0, time.UTC),
	}
}

// Sink is a clock that can be set but is never read back
type Sink interface {
	SetDateTime(ctx context.Context, dt DateTime) error
}

// Writer forwards successful syncs and reconfigurations to sinks
type Writer struct {
	sinks []Sink
	log   *logger.Logger
}

// NewWriter creates a listener writing to every sink
func NewWriter(log *logger.Logger, sinks ...Sink) *Writer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	return &Writer{sinks: sinks, log: log.WithComponent("rtc")}
}

// HandleEvent implements clock.Listener
func (w *Writer) HandleEvent(ctx context.Context, ev clock.Event) error {
	switch ev.Type {
	case clock.EventSynced:
	case clock.EventReconfigured:
		if !ev.Snapshot.Synced {
			return nil
		}
	default:
		return nil
	}

	dt := FromSnapshot(ev.Snapshot)
	var errs []error
	for _, s := range w.sinks {
		if err := s.SetDateTime(ctx, dt); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	if len(errs) == 0 {
		w.log.Debug("RTC updated",
			logger.String("time", dt.String()),
			logger.Int("sinks", len(w.sinks)))
	}
	return errors.Join(errs...)
}
