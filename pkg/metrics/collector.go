// Package metrics exposes decoder counters in Prometheus format.
package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/stat"

	"github.com/dbehnke/wwvb-sync/pkg/clock"
	"github.com/dbehnke/wwvb-sync/pkg/pulse"
)

// Collector owns the registry and every wwvb_* metric
type Collector struct {
	registry *prometheus.Registry

	mu      sync.RWMutex
	stats   func() pulse.Stats
	dropped func() uint64

	frames   *prometheus.CounterVec
	lastSync prometheus.Gauge
	offset   prometheus.Gauge
	jitter   *prometheus.GaugeVec
}

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wwvb_frames_total",
			Help: "Completed frames by decode result",
		}, []string{"result"}),
		lastSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wwvb_last_sync_timestamp_seconds",
			Help: "Unix time of the last successful decode",
		}),
		offset: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wwvb_timezone_offset_hours",
			Help: "Configured timezone offset from UTC",
		}),
		jitter: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wwvb_pulse_jitter_ms",
			Help: "Pulse width deviation from nominal over the last frame",
		}, []string{"stat"}),
	}

	c.registry.MustRegister(c.frames, c.lastSync, c.offset, c.jitter)

	for _, class := range []pulse.Class{pulse.Zero, pulse.One, pulse.Marker, pulse.Noise} {
		class := class
		c.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "wwvb_pulses_total",
			Help:        "Classified pulses by class",
			ConstLabels: prometheus.Labels{"class": class.String()},
		}, func() float64 { return float64(c.pulseCount(class)) }))
	}
	c.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "wwvb_events_dropped_total",
		Help: "Events dropped because listeners fell behind",
	}, func() float64 {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.dropped == nil {
			return 0
		}
		return float64(c.dropped())
	}))

	return c
}

// Registry returns the registry to serve
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// BindClassifier reads pulse counters from the classifier at scrape time
func (c *Collector) BindClassifier(stats func() pulse.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = stats
}

// BindDropped reads the dropped-event count at scrape time
func (c *Collector) BindDropped(dropped func() uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped = dropped
}

// SetOffset records the configured timezone offset
func (c *Collector) SetOffset(hours int) {
	c.offset.Set(float64(hours))
}

func (c *Collector) pulseCount(class pulse.Class) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stats == nil {
		return 0
	}
	s := c.stats()
	switch class {
	case pulse.Zero:
		return s.Zeros
	case pulse.One:
		return s.Ones
	case pulse.Marker:
		return s.Markers
	default:
		return s.Noise
	}
}

// HandleEvent implements clock.Listener
func (c *Collector) HandleEvent(_ context.Context, ev clock.Event) error {
	switch ev.Type {
	case clock.EventSynced:
		c.frames.WithLabelValues("synced").Inc()
		c.lastSync.Set(float64(ev.At.Unix()))
	case clock.EventFailed:
		c.frames.WithLabelValues(ev.Reason.String()).Inc()
	case clock.EventReconfigured:
		c.SetOffset(ev.Snapshot.Offset)
		return nil
	}

	if len(ev.JitterMS) > 0 {
		mean, std := stat.MeanStdDev(ev.JitterMS, nil)
		c.jitter.WithLabelValues("mean").Set(mean)
		if len(ev.JitterMS) > 1 {
			c.jitter.WithLabelValues("stddev").Set(std)
		}
	}
	return nil
}
