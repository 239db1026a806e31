//go:build integration
// +build integration

package testhelpers

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/dbehnke/wwvb-sync/pkg/wwvb"
)

// TestIntegrationSuite_Basic tests basic integration suite functionality
func TestIntegrationSuite_Basic(t *testing.T) {
	suite := NewIntegrationSuite(t, 0)
	defer suite.Cleanup()

	if suite.Logger == nil {
		t.Error("Expected logger to be initialized")
	}
	if suite.State.Snapshot().Synced {
		t.Error("Expected unsynchronized state")
	}
}

func TestIntegrationSuite_Feed(t *testing.T) {
	suite := NewIntegrationSuite(t, 0)
	defer suite.Cleanup()

	suite.Feed([]wwvb.Time{{Minute: 1, Hour: 2, DayOfYear: 3, Year: 2024}}, 0)
	suite.AssertEventually(func() bool { return len(suite.Sink.Writes()) == 1 },
		time.Second, "sink should receive the decoded time")
}

// TestIntegrationSuite_WaitFor tests the WaitFor helper
func TestIntegrationSuite_WaitFor(t *testing.T) {
	suite := NewIntegrationSuite(t, 0)
	defer suite.Cleanup()

	var counter atomic.Int32
	go func() {
		time.Sleep(50 * time.Millisecond)
		counter.Store(1)
	}()

	if !suite.WaitFor(func() bool { return counter.Load() == 1 }, 1*time.Second, "counter to be 1") {
		t.Error("WaitFor should have succeeded")
	}
	if suite.WaitFor(func() bool { return false }, 50*time.Millisecond, "never true") {
		t.Error("WaitFor should have timed out")
	}
}
