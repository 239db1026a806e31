//go:build linux

package edge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dbehnke/wwvb-sync/pkg/pulse"
)

// pollTimeoutMS bounds each poll so cancellation is noticed promptly
const pollTimeoutMS = 250

// Run exports the pin, then blocks in poll(2) waiting for edge interrupts.
// Timestamps are monotonic offsets from the start of Run.
func (g *GPIO) Run(ctx context.Context, h pulse.Handler) error {
	if err := g.setup(); err != nil {
		return err
	}

	fd, err := unix.Open(filepath.Join(g.pinDir(), "value"), unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("gpio: open value: %w", err)
	}
	defer unix.Close(fd)

	start := time.Now()
	buf := make([]byte, 2)

	// the first read clears the pending interrupt and gives the idle level
	high, err := readValue(fd, buf, g.cfg.ActiveLow)
	if err != nil {
		return err
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLPRI | unix.POLLERR}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := unix.Poll(fds, pollTimeoutMS)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("gpio: poll: %w", err)
		}
		if n == 0 {
			continue
		}
		at := time.Since(start)

		level, err := readValue(fd, buf, g.cfg.ActiveLow)
		if err != nil {
			return err
		}
		if level == high {
			continue
		}
		high = level

		dir := pulse.Falling
		if high {
			dir = pulse.Rising
		}
		h(pulse.Edge{Direction: dir, At: at.Truncate(time.Millisecond)})
	}
}

func readValue(fd int, buf []byte, activeLow bool) (bool, error) {
	if _, err := unix.Seek(fd, 0, 0); err != nil {
		return false, fmt.Errorf("gpio: seek: %w", err)
	}
	n, err := unix.Read(fd, buf)
	if err != nil {
		return false, fmt.Errorf("gpio: read: %w", err)
	}
	if n == 0 {
		return false, errors.New("gpio: empty value read")
	}
	return levelHigh(buf[0], activeLow)
}
