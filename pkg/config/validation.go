package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dbehnke/wwvb-sync/pkg/edge"
	"github.com/dbehnke/wwvb-sync/pkg/timezone"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// validate validates the configuration
func validate(cfg *Config) error {
	kind, err := edge.ParseKind(cfg.Receiver.Source)
	if err != nil {
		return fmt.Errorf("receiver.source: %w", err)
	}
	switch kind {
	case edge.KindGPIO:
		if cfg.Receiver.GPIO.Pin < 0 {
			return fmt.Errorf("receiver.gpio.pin must not be negative")
		}
	case edge.KindSerial:
		if cfg.Receiver.Serial.Address == "" {
			return fmt.Errorf("receiver.serial.address is required for the serial source")
		}
	case edge.KindSimulator:
		if cfg.Receiver.Simulate.Frames <= 0 {
			return fmt.Errorf("receiver.simulate.frames must be positive")
		}
		if cfg.Receiver.Simulate.Speed < 0 {
			return fmt.Errorf("receiver.simulate.speed must not be negative")
		}
		if s := cfg.Receiver.Simulate.Start; s != "" {
			if _, err := time.Parse(time.RFC3339, s); err != nil {
				return fmt.Errorf("receiver.simulate.start: %w", err)
			}
		}
	}

	if _, err := cfg.Timezone.Resolve(); err != nil {
		return err
	}

	if err := cfg.Pulse.Windows().Validate(); err != nil {
		return fmt.Errorf("pulse: %w", err)
	}

	if cfg.RTC.Modbus.Enabled {
		if cfg.RTC.Modbus.Endpoint == "" {
			return fmt.Errorf("rtc.modbus.endpoint is required when modbus is enabled")
		}
		if cfg.RTC.Modbus.UnitID < 0 || cfg.RTC.Modbus.UnitID > 247 {
			return fmt.Errorf("rtc.modbus.unit_id must be between 0 and 247")
		}
		if cfg.RTC.Modbus.Register < 0 || cfg.RTC.Modbus.Register > 65535-8 {
			return fmt.Errorf("rtc.modbus.register out of range")
		}
	}

	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	if cfg.Database.Enabled && cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required when database is enabled")
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		if cfg.Metrics.Prometheus.Port <= 0 || cfg.Metrics.Prometheus.Port > 65535 {
			return fmt.Errorf("metrics.prometheus.port must be between 1 and 65535")
		}
	}

	return nil
}

// Resolve returns the effective offset in hours
func (t TimezoneConfig) Resolve() (int, error) {
	if t.Zone != "" {
		off, ok := timezone.Lookup(strings.ToUpper(t.Zone))
		if !ok {
			return 0, fmt.Errorf("timezone.zone %q is not one of %s", t.Zone, strings.Join(timezone.Names(), ", "))
		}
		return off, nil
	}
	if err := timezone.ValidateOffset(t.Offset); err != nil {
		return 0, fmt.Errorf("timezone.offset: %w", err)
	}
	return t.Offset, nil
}
