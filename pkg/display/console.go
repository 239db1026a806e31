// Package display renders the clock state to a terminal.
package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/dbehnke/wwvb-sync/pkg/clock"
	"github.com/dbehnke/wwvb-sync/pkg/wwvb"
)

type styles struct {
	ok    lipgloss.Style
	warn  lipgloss.Style
	err   lipgloss.Style
	muted lipgloss.Style
	clock lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		ok:    r.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		err:   r.NewStyle().Foreground(lipgloss.Color("#EF4444")),
		muted: r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		clock: r.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Bold(true),
	}
}

// Console prints pipeline events as they happen
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	style styles
}

// NewConsole creates a console writing to out, or stdout when nil
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out, style: newStyles(lipgloss.NewRenderer(out))}
}

// HandleEvent implements clock.Listener
func (c *Console) HandleEvent(_ context.Context, ev clock.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch ev.Type {
	case clock.EventSynced:
		utc := ev.Snapshot.UTC
		_, err = fmt.Fprintf(c.out, "%s\n%s\n",
			c.style.ok.Render("Time synchronized: "+ev.Snapshot.Local.String()),
			c.style.muted.Render(fmt.Sprintf("Day of year: %d, DST status: %s", utc.DayOfYear, utc.DST)))
	case clock.EventFailed:
		if ev.Reason == wwvb.ReasonIncomplete {
			_, err = fmt.Fprintln(c.out, c.style.warn.Render("Incomplete frame, discarding"))
		} else {
			_, err = fmt.Fprintln(c.out, c.style.err.Render(fmt.Sprintf("Invalid time data: %v", ev.Err)))
		}
	case clock.EventReconfigured:
		_, err = fmt.Fprintln(c.out, c.style.muted.Render(
			fmt.Sprintf("Timezone set to UTC%+d, local time %s", ev.Snapshot.Offset, ev.Snapshot.Local)))
	}
	return err
}
