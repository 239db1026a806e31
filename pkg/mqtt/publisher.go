// Package mqtt publishes synchronization events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/dbehnke/wwvb-sync/pkg/clock"
	"github.com/dbehnke/wwvb-sync/pkg/logger"
)

// publishTimeout bounds how long a single publish may wait for the broker
const publishTimeout = 5 * time.Second

// Config holds MQTT publisher configuration
type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
}

// client is the subset of paho.Client the publisher needs
type client interface {
	Connect() paho.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher handles MQTT event publishing
type Publisher struct {
	config    Config
	log       *logger.Logger
	client    client
	newClient func(*paho.ClientOptions) client
}

// SyncEvent is published after every successful decode
type SyncEvent struct {
	UTC        string    `json:"utc"`
	Local      string    `json:"local"`
	DayOfYear  int       `json:"day_of_year"`
	Weekday    string    `json:"weekday"`
	DST        string    `json:"dst"`
	LeapSecond bool      `json:"leap_second"`
	Offset     int       `json:"offset"`
	Timestamp  time.Time `json:"timestamp"`
}

// FailureEvent is published when a frame is rejected
type FailureEvent struct {
	Reason    string    `json:"reason"`
	Error     string    `json:"error,omitempty"`
	BitCount  int       `json:"bit_count"`
	Timestamp time.Time `json:"timestamp"`
}

// TimezoneEvent is published when the offset changes
type TimezoneEvent struct {
	Offset    int       `json:"offset"`
	Local     string    `json:"local"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a new MQTT publisher
func New(config Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	if config.ClientID == "" {
		config.ClientID = "wwvb-sync-" + uuid.NewString()[:8]
	}

	return &Publisher{
		config: config,
		log:    log.WithComponent("mqtt"),
		newClient: func(opts *paho.ClientOptions) client {
			return paho.NewClient(opts)
		},
	}
}

// Start connects to the broker. paho keeps retrying in the background
// when the first attempt fails.
func (p *Publisher) Start(ctx context.Context) error {
	if !p.config.Enabled {
		p.log.Info("MQTT publisher disabled")
		return nil
	}
	if p.config.Broker == "" {
		return errors.New("mqtt: broker is required")
	}

	p.log.Info("Starting MQTT publisher",
		logger.String("broker", p.config.Broker),
		logger.String("client_id", p.config.ClientID))

	opts := paho.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
	}
	if p.config.Password != "" {
		opts.SetPassword(p.config.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(paho.Client) {
		p.log.Info("Connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.log.Warn("MQTT connection lost", logger.Error(err))
	})

	p.client = p.newClient(opts)
	token := p.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		p.log.Warn("MQTT broker not reachable yet, retrying in background")
	}
	return nil
}

// Stop disconnects from the broker
func (p *Publisher) Stop() {
	if !p.config.Enabled || p.client == nil {
		return
	}

	p.log.Info("Stopping MQTT publisher")
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// HandleEvent implements clock.Listener
func (p *Publisher) HandleEvent(_ context.Context, ev clock.Event) error {
	if !p.config.Enabled {
		return nil
	}

	snap := ev.Snapshot
	switch ev.Type {
	case clock.EventSynced:
		return p.publish(p.formatTopic("sync"), SyncEvent{
			UTC:        snap.UTC.String(),
			Local:      snap.Local.String(),
			DayOfYear:  snap.Local.DayOfYear,
			Weekday:    snap.Local.Weekday.String(),
			DST:        snap.UTC.DST.String(),
			LeapSecond: snap.UTC.LeapSecondPending,
			Offset:     snap.Offset,
			Timestamp:  ev.At,
		})
	case clock.EventFailed:
		fe := FailureEvent{Reason: ev.Reason.String(), BitCount: ev.BitCount, Timestamp: ev.At}
		if ev.Err != nil {
			fe.Error = ev.Err.Error()
		}
		return p.publish(p.formatTopic("failure"), fe)
	case clock.EventReconfigured:
		return p.publish(p.formatTopic("timezone"), TimezoneEvent{
			Offset:    snap.Offset,
			Local:     snap.Local.String(),
			Timestamp: ev.At,
		})
	}
	return nil
}

// publish publishes an event to a topic
func (p *Publisher) publish(topic string, event interface{}) error {
	payload, err := p.serializeEvent(event)
	if err != nil {
		p.log.Error("Failed to serialize event",
			logger.String("topic", topic),
			logger.Error(err))
		return err
	}
	if p.client == nil {
		return errors.New("mqtt: publisher not started")
	}

	token := p.client.Publish(topic, p.config.QoS, p.config.Retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish to %s: %w", topic, err)
	}

	p.log.Debug("Published MQTT event",
		logger.String("topic", topic),
		logger.Int("payload_size", len(payload)))
	return nil
}

// serializeEvent serializes an event to JSON
func (p *Publisher) serializeEvent(event interface{}) ([]byte, error) {
	return json.Marshal(event)
}

// formatTopic formats a topic with the configured prefix
func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}
