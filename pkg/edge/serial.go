package edge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goburrow/serial"

	"github.com/dbehnke/wwvb-sync/pkg/pulse"
)

// SerialConfig describes the UART link to an edge-forwarding
// microcontroller. Each line is "R <ms>" or "F <ms>", the millisecond
// timestamp being the bridge's own monotonic counter.
type SerialConfig struct {
	Address  string
	BaudRate int
	Timeout  time.Duration
}

// Serial reads forwarded edges from a serial port
type Serial struct {
	cfg  SerialConfig
	open func(*serial.Config) (io.ReadCloser, error)
}

// NewSerial creates a serial edge source
func NewSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Address == "" {
		return nil, errors.New("serial: address required")
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 115200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	return &Serial{
		cfg: cfg,
		open: func(c *serial.Config) (io.ReadCloser, error) {
			return serial.Open(c)
		},
	}, nil
}

// Run opens the port and forwards parsed edges to h
func (s *Serial) Run(ctx context.Context, h pulse.Handler) error {
	port, err := s.open(&serial.Config{
		Address:  s.cfg.Address,
		BaudRate: s.cfg.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  s.cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("serial: open %s: %w", s.cfg.Address, err)
	}

	// closing the port unblocks a pending read on cancellation
	stop := context.AfterFunc(ctx, func() { _ = port.Close() })
	defer func() {
		if stop() {
			_ = port.Close()
		}
	}()

	err = ReadEdges(ctx, &timeoutReader{r: port}, h)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// timeoutReader turns read timeouts into empty reads so an idle line does
// not end the stream.
type timeoutReader struct {
	r io.Reader
}

func (t *timeoutReader) Read(p []byte) (int, error) {
	for {
		n, err := t.r.Read(p)
		if errors.Is(err, serial.ErrTimeout) {
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// ReadEdges parses edge lines from r until EOF or ctx is done. Blank lines
// and lines starting with '#' are skipped; malformed lines are ignored the
// same way a noise pulse would be.
func ReadEdges(ctx context.Context, r io.Reader, h pulse.Handler) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := ParseLine(line)
		if err != nil {
			continue
		}
		h(e)
	}
	return sc.Err()
}

// ParseLine parses "R <ms>" or "F <ms>"
func ParseLine(line string) (pulse.Edge, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return pulse.Edge{}, fmt.Errorf("serial: malformed line %q", line)
	}
	var dir pulse.Direction
	switch strings.ToUpper(fields[0]) {
	case "R":
		dir = pulse.Rising
	case "F":
		dir = pulse.Falling
	default:
		return pulse.Edge{}, fmt.Errorf("serial: unknown edge %q", fields[0])
	}
	ms, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || ms < 0 {
		return pulse.Edge{}, fmt.Errorf("serial: bad timestamp %q", fields[1])
	}
	return pulse.Edge{Direction: dir, At: time.Duration(ms) * time.Millisecond}, nil
}
