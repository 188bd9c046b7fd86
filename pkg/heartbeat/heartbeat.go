// Package heartbeat schedules the periodic keep-alive pings that hold a
// registered gateway session open.
//
// The controller only sends; it never judges liveness. A pong that fails
// to arrive is not detected here - connection loss surfaces through
// transport-level errors, and a failed ping send is reported to the owner
// as an ordinary socket error.
package heartbeat

import (
	"sync"
	"time"
)

// DefaultInterval is the interval between pings.
const DefaultInterval = 30 * time.Second

// Config configures heartbeat behavior.
type Config struct {
	// Interval is the time between pings (default: 30s).
	Interval time.Duration
}

// DefaultConfig returns the default heartbeat configuration.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval}
}

// Controller sends a ping at a fixed interval while running.
type Controller struct {
	config Config

	// Callbacks
	sendPing func() error
	onError  func(err error)

	// State
	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	pingsSent    int
	pongsSeen    int
	lastPingTime time.Time
	lastPongTime time.Time
}

// NewController creates a heartbeat controller. sendPing is invoked on each
// tick; onError (optional) is invoked when a send fails, after which the
// controller stops itself.
func NewController(config Config, sendPing func() error, onError func(err error)) *Controller {
	if config.Interval == 0 {
		config.Interval = DefaultInterval
	}
	return &Controller{
		config:   config,
		sendPing: sendPing,
		onError:  onError,
	}
}

// Start begins the ping schedule. Idempotent: restarting cancels any
// existing schedule first, so the next ping is a full interval away.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.running {
		close(c.stopCh)
	}
	c.running = true
	stopCh := make(chan struct{})
	c.stopCh = stopCh
	c.mu.Unlock()

	go c.loop(stopCh)
}

// Stop cancels the ping schedule. Safe to call when not running.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	close(c.stopCh)
}

// IsRunning returns true while the ping schedule is active.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// PingNow sends one immediate out-of-schedule ping.
// Used after a foreground transition to probe the socket.
func (c *Controller) PingNow() error {
	return c.firePing()
}

// PongReceived records a pong for statistics.
func (c *Controller) PongReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pongsSeen++
	c.lastPongTime = time.Now()
}

// Stats contains heartbeat statistics.
type Stats struct {
	PingsSent    int
	PongsSeen    int
	LastPingTime time.Time
	LastPongTime time.Time
}

// Stats returns current heartbeat statistics.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		PingsSent:    c.pingsSent,
		PongsSeen:    c.pongsSeen,
		LastPingTime: c.lastPingTime,
		LastPongTime: c.lastPongTime,
	}
}

// loop drives the ping ticker until stopped.
func (c *Controller) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := c.firePing(); err != nil {
				return
			}
		}
	}
}

// firePing sends one ping and records it. On failure the controller stops
// and reports the error to the owner.
func (c *Controller) firePing() error {
	c.mu.Lock()
	c.pingsSent++
	c.lastPingTime = time.Now()
	c.mu.Unlock()

	if err := c.sendPing(); err != nil {
		c.Stop()
		if c.onError != nil {
			c.onError(err)
		}
		return err
	}
	return nil
}
