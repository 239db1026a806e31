//go:build !linux

package edge

import (
	"context"
	"errors"

	"github.com/dbehnke/wwvb-sync/pkg/pulse"
)

// Run is only supported on Linux
func (g *GPIO) Run(ctx context.Context, h pulse.Handler) error {
	return errors.New("gpio: sysfs edge source requires linux")
}
