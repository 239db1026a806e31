package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dbehnke/wwvb-sync/pkg/clock"
)

// DefaultInterval is how often the refresher polls the clock state
const DefaultInterval = 250 * time.Millisecond

// Refresher periodically redraws the clock line. It only writes when the
// state changed or the wall-clock minute rolled over since the last draw.
type Refresher struct {
	state    *clock.State
	out      io.Writer
	interval time.Duration
	now      func() time.Time
	style    styles

	last       clock.Snapshot
	lastMinute int
	drawn      bool
}

// NewRefresher creates a refresher for state
func NewRefresher(state *clock.State, out io.Writer, interval time.Duration) *Refresher {
	if out == nil {
		out = os.Stdout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{
		state:    state,
		out:      out,
		interval: interval,
		now:      time.Now,
		style:    newStyles(lipgloss.NewRenderer(out)),
	}
}

// Run polls until ctx is cancelled
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.refresh(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// refresh draws once if anything changed and reports write errors
func (r *Refresher) refresh() error {
	snap := r.state.Snapshot()
	minute := r.now().Minute()
	if r.drawn && snap == r.last && minute == r.lastMinute {
		return nil
	}
	r.last, r.lastMinute, r.drawn = snap, minute, true
	_, err := fmt.Fprintln(r.out, r.render(snap))
	return err
}

func (r *Refresher) render(snap clock.Snapshot) string {
	l := snap.Local
	line := r.style.clock.Render(fmt.Sprintf("%02d:%02d", l.Hour, l.Minute)) + " " +
		fmt.Sprintf("%s %s UTC%+d", l.Date, l.Weekday, l.UTCOffsetHours())
	if !snap.Synced {
		return line + " " + r.style.warn.Render("(not synchronized)")
	}
	return line + " " + r.style.muted.Render("DST "+l.DST.String())
}
