// Package config loads the receiver configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/dbehnke/wwvb-sync/pkg/pulse"
)

// Config represents the application configuration
type Config struct {
	Receiver ReceiverConfig `mapstructure:"receiver"`
	Timezone TimezoneConfig `mapstructure:"timezone"`
	Pulse    PulseConfig    `mapstructure:"pulse"`
	Display  DisplayConfig  `mapstructure:"display"`
	RTC      RTCConfig      `mapstructure:"rtc"`
	Web      WebConfig      `mapstructure:"web"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ReceiverConfig selects where pulse edges come from
type ReceiverConfig struct {
	Source   string         `mapstructure:"source"` // gpio, serial or simulate
	GPIO     GPIOConfig     `mapstructure:"gpio"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Simulate SimulateConfig `mapstructure:"simulate"`
}

// GPIOConfig holds the sysfs GPIO input
type GPIOConfig struct {
	Pin       int    `mapstructure:"pin"`
	ActiveLow bool   `mapstructure:"active_low"`
	SysfsRoot string `mapstructure:"sysfs_root"`
}

// SerialConfig holds the serial edge bridge
type SerialConfig struct {
	Address  string        `mapstructure:"address"`
	BaudRate int           `mapstructure:"baud_rate"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SimulateConfig holds the synthetic pulse train
type SimulateConfig struct {
	Start    string  `mapstructure:"start"` // RFC 3339, UTC minute of the first frame
	Frames   int     `mapstructure:"frames"`
	Speed    float64 `mapstructure:"speed"`
	JitterMS int     `mapstructure:"jitter_ms"`
	Seed     uint64  `mapstructure:"seed"`
}

// TimezoneConfig holds the local offset. Zone, when set, overrides Offset.
// DateRollover moves the local date with the hour across midnight; by
// default the date shown is the decoded UTC date.
type TimezoneConfig struct {
	Offset       int    `mapstructure:"offset"`
	Zone         string `mapstructure:"zone"`
	DateRollover bool   `mapstructure:"date_rollover"`
}

// WindowConfig is an inclusive pulse width range in milliseconds
type WindowConfig struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

// PulseConfig holds the classifier windows and event queue size
type PulseConfig struct {
	Zero      WindowConfig `mapstructure:"zero"`
	One       WindowConfig `mapstructure:"one"`
	Marker    WindowConfig `mapstructure:"marker"`
	QueueSize int          `mapstructure:"queue_size"`
}

// Windows converts the configured ranges for the classifier
func (p PulseConfig) Windows() pulse.Windows {
	conv := func(w WindowConfig) pulse.Window {
		return pulse.Window{
			Min: time.Duration(w.Min) * time.Millisecond,
			Max: time.Duration(w.Max) * time.Millisecond,
		}
	}
	return pulse.Windows{Zero: conv(p.Zero), One: conv(p.One), Marker: conv(p.Marker)}
}

// DisplayConfig holds the console output
type DisplayConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// RTCConfig holds the clock sinks
type RTCConfig struct {
	System bool         `mapstructure:"system"`
	Modbus ModbusConfig `mapstructure:"modbus"`
}

// ModbusConfig holds the Modbus TCP clock sink
type ModbusConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	UnitID   int           `mapstructure:"unit_id"`
	Register int           `mapstructure:"register"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WebConfig holds the HTTP API configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// MQTTConfig holds MQTT client configuration
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
}

// DatabaseConfig holds the sync history store
type DatabaseConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/wwvb-sync")
	}

	// WWVB_TIMEZONE_OFFSET=-6 overrides timezone.offset
	viper.SetEnvPrefix("WWVB")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no config file, defaults apply
		} else if os.IsNotExist(err) {
			// explicitly named file is missing, defaults apply
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// ConfigFileUsed returns the file the last Load read, if any
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// setDefaults sets default configuration values
func setDefaults() {
	// Receiver defaults
	viper.SetDefault("receiver.source", "gpio")
	viper.SetDefault("receiver.gpio.pin", 17)
	viper.SetDefault("receiver.gpio.active_low", false)
	viper.SetDefault("receiver.gpio.sysfs_root", "/sys/class/gpio")
	viper.SetDefault("receiver.serial.baud_rate", 115200)
	viper.SetDefault("receiver.serial.timeout", "1s")
	viper.SetDefault("receiver.simulate.frames", 5)
	viper.SetDefault("receiver.simulate.speed", 0)
	viper.SetDefault("receiver.simulate.jitter_ms", 10)
	viper.SetDefault("receiver.simulate.seed", 1)

	// Timezone defaults (Eastern)
	viper.SetDefault("timezone.offset", -5)
	viper.SetDefault("timezone.zone", "")
	viper.SetDefault("timezone.date_rollover", false)

	// Pulse defaults
	viper.SetDefault("pulse.zero.min", 750)
	viper.SetDefault("pulse.zero.max", 850)
	viper.SetDefault("pulse.one.min", 450)
	viper.SetDefault("pulse.one.max", 550)
	viper.SetDefault("pulse.marker.min", 150)
	viper.SetDefault("pulse.marker.max", 250)
	viper.SetDefault("pulse.queue_size", 64)

	// Display defaults
	viper.SetDefault("display.enabled", true)
	viper.SetDefault("display.interval", "250ms")

	// RTC defaults
	viper.SetDefault("rtc.system", false)
	viper.SetDefault("rtc.modbus.enabled", false)
	viper.SetDefault("rtc.modbus.unit_id", 1)
	viper.SetDefault("rtc.modbus.register", 0)
	viper.SetDefault("rtc.modbus.timeout", "2s")

	// Web defaults
	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)

	// MQTT defaults
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.topic_prefix", "wwvb")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retained", false)

	// Database defaults
	viper.SetDefault("database.enabled", true)
	viper.SetDefault("database.path", "data/wwvb-sync.db")
	viper.SetDefault("database.retention", "720h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 7)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", true)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")
}
