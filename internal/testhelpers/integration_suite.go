// Package testhelpers builds a complete decode pipeline for integration tests.
package testhelpers

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dbehnke/wwvb-sync/pkg/clock"
	"github.com/dbehnke/wwvb-sync/pkg/database"
	"github.com/dbehnke/wwvb-sync/pkg/edge"
	"github.com/dbehnke/wwvb-sync/pkg/logger"
	"github.com/dbehnke/wwvb-sync/pkg/pulse"
	"github.com/dbehnke/wwvb-sync/pkg/rtc"
	"github.com/dbehnke/wwvb-sync/pkg/wwvb"
)

// IntegrationSuite wires classifier, synchronizer and history store
type IntegrationSuite struct {
	T          *testing.T
	Logger     *logger.Logger
	Ctx        context.Context
	Cancel     context.CancelFunc
	State      *clock.State
	Sync       *clock.Synchronizer
	Classifier *pulse.Classifier
	DB         *database.DB
	Repo       *database.SyncRepository
	Sink       *MockSink

	runDone chan struct{}
}

// NewIntegrationSuite creates a pipeline at offset hours and starts the
// synchronizer's listener loop.
func NewIntegrationSuite(t *testing.T, offset int) *IntegrationSuite {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	log := logger.New(logger.Config{
		Level:  "error",
		Format: "text",
	})

	state, err := clock.NewState(offset)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := wwvb.NewDecoder(wwvb.Standard)
	if err != nil {
		t.Fatal(err)
	}
	s := &IntegrationSuite{
		T:       t,
		Logger:  log,
		Ctx:     ctx,
		Cancel:  cancel,
		State:   state,
		Sync:    clock.NewSynchronizer(state, dec, log),
		Sink:    &MockSink{},
		runDone: make(chan struct{}),
	}

	s.Classifier, err = pulse.NewClassifier(pulse.DefaultWindows, func(f pulse.Frame) {
		_, _ = s.Sync.HandleFrame(f)
	})
	if err != nil {
		t.Fatal(err)
	}

	s.DB, err = database.NewDB(database.Config{Path: filepath.Join(t.TempDir(), "history.db")}, log)
	if err != nil {
		t.Fatal(err)
	}
	s.Repo = database.NewSyncRepository(s.DB.GetDB())
	s.Sync.AddListener(database.NewRecorder(s.Repo, 0, log))
	s.Sync.AddStateListener(rtc.NewWriter(log, s.Sink))

	go func() {
		defer close(s.runDone)
		_ = s.Sync.Run(ctx)
	}()
	return s
}

// Feed replays frames through the classifier with the given jitter
func (s *IntegrationSuite) Feed(frames []wwvb.Time, jitterMS int) {
	s.T.Helper()
	sim, err := edge.NewSimulator(edge.SimulatorConfig{
		Frames:   frames,
		Layout:   wwvb.Standard,
		Windows:  pulse.DefaultWindows,
		JitterMS: jitterMS,
		Seed:     7,
	})
	if err != nil {
		s.T.Fatal(err)
	}
	if err := sim.Run(s.Ctx, s.Classifier.HandleEdge); err != nil {
		s.T.Fatal(err)
	}
}

// FeedEdges sends raw edges to the classifier
func (s *IntegrationSuite) FeedEdges(edges []pulse.Edge) {
	for _, e := range edges {
		s.Classifier.HandleEdge(e)
	}
}

// Cleanup stops the pipeline and closes the database
func (s *IntegrationSuite) Cleanup() {
	s.Cancel()
	<-s.runDone
	_ = s.DB.Close()
}

// WaitFor waits for a condition to be true
func (s *IntegrationSuite) WaitFor(condition func() bool, timeout time.Duration, message string) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.T.Logf("WaitFor timeout: %s", message)
	return false
}

// AssertEventually asserts that a condition becomes true within timeout
func (s *IntegrationSuite) AssertEventually(condition func() bool, timeout time.Duration, message string) {
	if !s.WaitFor(condition, timeout, message) {
		s.T.Errorf("Assertion failed: %s", message)
	}
}

// MockSink records every DateTime written to it
type MockSink struct {
	mu  sync.Mutex
	got []rtc.DateTime
}

// SetDateTime implements rtc.Sink
func (m *MockSink) SetDateTime(_ context.Context, dt rtc.DateTime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, dt)
	return nil
}

// Writes returns a copy of the recorded values
func (m *MockSink) Writes() []rtc.DateTime {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]rtc.DateTime(nil), m.got...)
}
