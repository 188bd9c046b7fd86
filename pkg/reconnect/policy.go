package reconnect

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff constants for the gateway reconnection policy.
const (
	// InitialDelay is the first reconnection delay (attempt 0).
	InitialDelay = 1 * time.Second

	// MaxDelay is the reconnection delay cap.
	MaxDelay = 15 * time.Second

	// maxShift bounds the exponent so 2^attempt cannot overflow.
	// 2^4s already exceeds the 15s cap, so anything past the cap's
	// exponent collapses to MaxDelay.
	maxShift = 6
)

// Config customizes the reconnection policy.
type Config struct {
	// Initial is the delay for attempt 0 (default: 1s).
	Initial time.Duration

	// Max caps the delay (default: 15s).
	Max time.Duration

	// MaxAttempts limits scheduled attempts. 0 means unlimited.
	MaxAttempts int

	// Jitter is the maximum extra delay as a fraction of the base delay.
	// 0 (the default) keeps the delay sequence exact.
	Jitter float64
}

// DefaultConfig returns the default reconnection policy configuration.
func DefaultConfig() Config {
	return Config{
		Initial: InitialDelay,
		Max:     MaxDelay,
	}
}

// Policy tracks reconnection attempts and computes backoff delays.
type Policy struct {
	mu sync.Mutex

	config   Config
	attempts int

	// Random source for jitter (only used when Jitter > 0)
	rng *rand.Rand
}

// NewPolicy creates a reconnection policy with default settings.
func NewPolicy() *Policy {
	return NewPolicyWithConfig(DefaultConfig())
}

// NewPolicyWithConfig creates a reconnection policy with custom settings.
func NewPolicyWithConfig(cfg Config) *Policy {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialDelay
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxDelay
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Policy{
		config: cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay before the next attempt and advances the attempt
// counter. The second return is false when the attempt budget is exhausted;
// no attempt may be scheduled then.
func (p *Policy) Next() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.MaxAttempts > 0 && p.attempts >= p.config.MaxAttempts {
		return 0, false
	}

	delay := p.delayFor(p.attempts)
	p.attempts++

	return p.addJitter(delay), true
}

// Peek returns the delay the next call to Next would produce, without
// advancing the counter.
func (p *Policy) Peek() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delayFor(p.attempts)
}

// Attempts returns the number of attempts scheduled since the last reset.
func (p *Policy) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Exhausted reports whether the attempt budget is used up.
func (p *Policy) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.MaxAttempts > 0 && p.attempts >= p.config.MaxAttempts
}

// Reset clears the attempt counter.
// Call this after a successful connection.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts = 0
}

// delayFor computes min(initial * 2^attempt, max), shift-guarded so large
// attempt counts cannot overflow.
func (p *Policy) delayFor(attempt int) time.Duration {
	if attempt >= maxShift {
		return p.config.Max
	}
	delay := p.config.Initial << uint(attempt)
	if delay > p.config.Max || delay <= 0 {
		return p.config.Max
	}
	return delay
}

// addJitter adds random jitter to a delay.
func (p *Policy) addJitter(d time.Duration) time.Duration {
	if p.config.Jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*p.config.Jitter*p.rng.Float64())
}

// DelaySequence returns the base delay sequence up to and including the
// first capped value.
func DelaySequence() []time.Duration {
	return []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		15 * time.Second, // cap
	}
}
