package rtc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// RegisterCount is the size of the time block written to the device:
// year, month, day, weekday, hour, minute, second, subsecond.
const RegisterCount = 8

// ModbusConfig addresses a holding-register clock block on a Modbus TCP
// device (typically a PLC or panel clock).
type ModbusConfig struct {
	Endpoint string
	UnitID   uint8
	Address  uint16
	Timeout  time.Duration
}

// registerWriter is the subset of modbus.Client used here
type registerWriter interface {
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// Modbus writes the time block with a single FC16 request
type Modbus struct {
	mu      sync.Mutex
	cfg     ModbusConfig
	handler *modbus.TCPClientHandler
	client  registerWriter
}

// NewModbus connects to the device
func NewModbus(cfg ModbusConfig) (*Modbus, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("rtc modbus: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &Modbus{
		cfg:     cfg,
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// Close closes the TCP connection
func (m *Modbus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handler == nil {
		return nil
	}
	return m.handler.Close()
}

// SetDateTime implements Sink
func (m *Modbus) SetDateTime(_ context.Context, dt DateTime) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.client.WriteMultipleRegisters(m.cfg.Address, RegisterCount, packRegisters(registers(dt)))
	return err
}

func registers(dt DateTime) []uint16 {
	return []uint16{
		uint16(dt.Year),
		uint16(dt.Month),
		uint16(dt.Day),
		uint16(dt.Weekday),
		uint16(dt.Hour),
		uint16(dt.Minute),
		uint16(dt.Second),
		uint16(dt.Subsecond),
	}
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[i*2] = byte(r >> 8)
		out[i*2+1] = byte(r)
	}
	return out
}
