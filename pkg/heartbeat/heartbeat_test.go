package heartbeat

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestControllerConfig(t *testing.T) {
	config := DefaultConfig()
	if config.Interval != DefaultInterval {
		t.Errorf("Interval = %v, want %v", config.Interval, DefaultInterval)
	}

	// Zero interval falls back to the default
	c := NewController(Config{}, func() error { return nil }, nil)
	if c.config.Interval != DefaultInterval {
		t.Errorf("zero interval not defaulted: %v", c.config.Interval)
	}
}

func TestControllerSendsPeriodically(t *testing.T) {
	var pings atomic.Int32

	c := NewController(Config{Interval: 20 * time.Millisecond},
		func() error {
			pings.Add(1)
			return nil
		}, nil)

	c.Start()
	time.Sleep(70 * time.Millisecond)
	c.Stop()

	if got := pings.Load(); got < 2 {
		t.Errorf("expected at least 2 pings, got %d", got)
	}

	// No more pings after Stop
	before := pings.Load()
	time.Sleep(50 * time.Millisecond)
	if pings.Load() != before {
		t.Error("pings continued after Stop")
	}
}

func TestControllerStartIsIdempotent(t *testing.T) {
	var pings atomic.Int32

	c := NewController(Config{Interval: 20 * time.Millisecond},
		func() error {
			pings.Add(1)
			return nil
		}, nil)

	c.Start()
	c.Start() // restart cancels the first schedule
	if !c.IsRunning() {
		t.Error("IsRunning = false after Start")
	}

	time.Sleep(50 * time.Millisecond)
	c.Stop()

	// A doubled schedule would produce roughly twice the pings.
	if got := pings.Load(); got > 4 {
		t.Errorf("too many pings after restart: %d", got)
	}
}

func TestControllerStopWhenNotRunning(t *testing.T) {
	c := NewController(DefaultConfig(), func() error { return nil }, nil)
	c.Stop() // must not panic
	c.Stop()
	if c.IsRunning() {
		t.Error("IsRunning = true, want false")
	}
}

func TestControllerSendFailureStopsAndReports(t *testing.T) {
	var reported atomic.Value
	sendErr := errors.New("broken pipe")

	c := NewController(Config{Interval: 10 * time.Millisecond},
		func() error { return sendErr },
		func(err error) { reported.Store(err) })

	c.Start()
	time.Sleep(50 * time.Millisecond)

	if c.IsRunning() {
		t.Error("controller should stop itself after a failed send")
	}
	if got, _ := reported.Load().(error); !errors.Is(got, sendErr) {
		t.Errorf("reported error = %v, want %v", got, sendErr)
	}
}

func TestControllerPingNowAndStats(t *testing.T) {
	c := NewController(DefaultConfig(), func() error { return nil }, nil)

	if err := c.PingNow(); err != nil {
		t.Fatalf("PingNow: %v", err)
	}
	c.PongReceived()

	stats := c.Stats()
	if stats.PingsSent != 1 || stats.PongsSeen != 1 {
		t.Errorf("stats = %+v, want 1 ping / 1 pong", stats)
	}
	if stats.LastPingTime.IsZero() || stats.LastPongTime.IsZero() {
		t.Error("timestamps not recorded")
	}
}
