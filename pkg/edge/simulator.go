package edge

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dbehnke/wwvb-sync/pkg/pulse"
	"github.com/dbehnke/wwvb-sync/pkg/wwvb"
)

// SimulatorConfig describes the synthetic signal
type SimulatorConfig struct {
	Frames  []wwvb.Time
	Layout  wwvb.Layout
	Windows pulse.Windows
	// Speed scales playback; 0 replays as fast as possible
	Speed float64
	// JitterMS adds uniform random jitter of +/- JitterMS to every edge
	JitterMS int
	Seed     uint64
}

// Simulator replays an encoded pulse train
type Simulator struct {
	cfg   SimulatorConfig
	edges []pulse.Edge
}

// NewSimulator encodes every frame up front
func NewSimulator(cfg SimulatorConfig) (*Simulator, error) {
	if len(cfg.Frames) == 0 {
		return nil, fmt.Errorf("simulator: at least one frame required")
	}
	if cfg.Speed < 0 {
		return nil, fmt.Errorf("simulator: speed must not be negative")
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	var edges []pulse.Edge
	origin := time.Duration(0)
	for i, t := range cfg.Frames {
		bits, err := wwvb.Encode(t, cfg.Layout)
		if err != nil {
			return nil, fmt.Errorf("simulator: frame %d: %w", i, err)
		}
		train := pulse.Synthesize(bits, cfg.Windows, origin)
		if cfg.JitterMS > 0 {
			for j := range train {
				off := rng.IntN(2*cfg.JitterMS+1) - cfg.JitterMS
				train[j].At += time.Duration(off) * time.Millisecond
			}
		}
		edges = append(edges, train...)
		origin += time.Duration(len(bits)) * pulse.SlotLength
	}
	return &Simulator{cfg: cfg, edges: edges}, nil
}

// Edges returns the generated edge sequence
func (s *Simulator) Edges() []pulse.Edge {
	return s.edges
}

// Run replays the edges, pacing them by Speed
func (s *Simulator) Run(ctx context.Context, h pulse.Handler) error {
	start := time.Now()
	for _, e := range s.edges {
		if s.cfg.Speed > 0 {
			due := time.Duration(float64(e.At) / s.cfg.Speed)
			if wait := due - time.Since(start); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		h(e)
	}
	return nil
}
