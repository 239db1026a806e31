// Package edge provides sources of receiver line transitions: a Linux
// sysfs GPIO pin, a serial bridge that forwards edges from a
// microcontroller, and a simulator replaying synthetic frames.
package edge

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbehnke/wwvb-sync/pkg/pulse"
)

// Source delivers edges to h until ctx is cancelled or the source fails.
// Run calls h from a single goroutine.
type Source interface {
	Run(ctx context.Context, h pulse.Handler) error
}

// Kind names a source implementation in configuration
type Kind string

const (
	KindGPIO      Kind = "gpio"
	KindSerial    Kind = "serial"
	KindSimulator Kind = "simulate"
)

// ParseKind validates a configured source name
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindGPIO, KindSerial, KindSimulator:
		return k, nil
	default:
		return "", fmt.Errorf("edge: unknown source %q (must be gpio, serial or simulate)", s)
	}
}
