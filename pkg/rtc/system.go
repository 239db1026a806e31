package rtc

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// SystemClock sets the host clock with settimeofday(2). It needs
// CAP_SYS_TIME.
type SystemClock struct {
	settimeofday func(tv *unix.Timeval) error
}

// NewSystemClock creates a sink for the host clock
func NewSystemClock() *SystemClock {
	return &SystemClock{settimeofday: unix.Settimeofday}
}

// SetDateTime implements Sink. The host clock is set from the decoded UTC
// instant, not the local fields.
func (s *SystemClock) SetDateTime(_ context.Context, dt DateTime) error {
	if dt.UTC.IsZero() {
		return errors.New("settimeofday: no UTC time")
	}
	tv := unix.NsecToTimeval(dt.UTC.UnixNano())
	if err := s.settimeofday(&tv); err != nil {
		return fmt.Errorf("settimeofday: %w", err)
	}
	return nil
}
