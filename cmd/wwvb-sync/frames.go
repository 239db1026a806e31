package main

import (
	"fmt"
	"time"

	"github.com/dbehnke/wwvb-sync/pkg/wwvb"
)

// simulatedFrames returns n consecutive minutes starting at start
func simulatedFrames(start time.Time, n int, dst wwvb.DSTStatus) ([]wwvb.Time, error) {
	if n <= 0 {
		return nil, fmt.Errorf("frame count must be positive, got %d", n)
	}
	start = start.UTC().Truncate(time.Minute)
	frames := make([]wwvb.Time, 0, n)
	for i := 0; i < n; i++ {
		t := start.Add(time.Duration(i) * time.Minute)
		frames = append(frames, wwvb.Time{
			Minute:    t.Minute(),
			Hour:      t.Hour(),
			DayOfYear: t.YearDay(),
			Year:      t.Year(),
			DST:       dst,
		})
	}
	return frames, nil
}

// parseStart reads an RFC 3339 start time, defaulting to now
func parseStart(s string, now func() time.Time) (time.Time, error) {
	if s == "" {
		return now(), nil
	}
	return time.Parse(time.RFC3339, s)
}
