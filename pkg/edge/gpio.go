package edge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultSysfsRoot is where the kernel exposes the legacy GPIO interface
const DefaultSysfsRoot = "/sys/class/gpio"

// GPIOConfig selects the receiver output pin
type GPIOConfig struct {
	Pin       int
	ActiveLow bool   // invert the line level
	SysfsRoot string // defaults to DefaultSysfsRoot
}

// GPIO reads edges from a sysfs GPIO pin
type GPIO struct {
	cfg GPIOConfig
}

// NewGPIO creates a GPIO source for cfg.Pin
func NewGPIO(cfg GPIOConfig) (*GPIO, error) {
	if cfg.Pin < 0 {
		return nil, fmt.Errorf("gpio: invalid pin %d", cfg.Pin)
	}
	if cfg.SysfsRoot == "" {
		cfg.SysfsRoot = DefaultSysfsRoot
	}
	return &GPIO{cfg: cfg}, nil
}

func (g *GPIO) pinDir() string {
	return filepath.Join(g.cfg.SysfsRoot, "gpio"+strconv.Itoa(g.cfg.Pin))
}

// setup exports the pin and configures it as an input interrupting on
// both edges.
func (g *GPIO) setup() error {
	if _, err := os.Stat(g.pinDir()); errors.Is(err, os.ErrNotExist) {
		if err := writeSysfs(filepath.Join(g.cfg.SysfsRoot, "export"), strconv.Itoa(g.cfg.Pin)); err != nil {
			return fmt.Errorf("gpio: export pin %d: %w", g.cfg.Pin, err)
		}
	}
	if err := writeSysfs(filepath.Join(g.pinDir(), "direction"), "in"); err != nil {
		return fmt.Errorf("gpio: set direction: %w", err)
	}
	if err := writeSysfs(filepath.Join(g.pinDir(), "edge"), "both"); err != nil {
		return fmt.Errorf("gpio: set edge: %w", err)
	}
	return nil
}

func writeSysfs(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}

// levelHigh interprets the first byte of a sysfs value read
func levelHigh(b byte, activeLow bool) (bool, error) {
	var high bool
	switch b {
	case '1':
		high = true
	case '0':
		high = false
	default:
		return false, fmt.Errorf("gpio: unexpected value byte %q", b)
	}
	return high != activeLow, nil
}
