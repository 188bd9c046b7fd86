package registration

import (
	"context"
	"sync"
	"time"
)

// Stats batching defaults.
const (
	// DefaultBatchSize triggers an upload when this many events are pending.
	DefaultBatchSize = 20

	// DefaultFlushInterval triggers a periodic upload of whatever is pending.
	DefaultFlushInterval = 30 * time.Second
)

// Stats event kinds.
const (
	// EventReceive records a push arriving at the device.
	EventReceive = "receive"

	// EventOpen records the app being opened from a push.
	EventOpen = "open"

	// EventClick records a tap on a push action.
	EventClick = "click"
)

// StatsEvent is one delivery statistics record.
type StatsEvent struct {
	// PushID identifies the push the event belongs to.
	PushID string `json:"push_id,omitempty"`

	// Kind is the event kind (receive/open/click).
	Kind string `json:"event"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// StatsConfig configures statistics batching.
type StatsConfig struct {
	// BatchSize triggers an upload when this many events are pending
	// (default: 20).
	BatchSize int

	// FlushInterval triggers a periodic upload (default: 30s).
	// Negative disables the periodic flush.
	FlushInterval time.Duration
}

// DefaultStatsConfig returns the default statistics configuration.
func DefaultStatsConfig() StatsConfig {
	return StatsConfig{
		BatchSize:     DefaultBatchSize,
		FlushInterval: DefaultFlushInterval,
	}
}

// StatsReporter batches delivery statistics and uploads them when the
// batch fills or the flush interval elapses. Failed uploads re-queue the
// batch so events are not lost to a transient API outage.
type StatsReporter struct {
	client *Client
	appID  int
	config StatsConfig

	mu      sync.Mutex
	pending []StatsEvent
	running bool
	stopCh  chan struct{}
}

// NewStatsReporter creates a reporter uploading through client for appID
// and starts its periodic flush schedule.
func NewStatsReporter(client *Client, appID int, config StatsConfig) *StatsReporter {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = DefaultFlushInterval
	}

	r := &StatsReporter{
		client: client,
		appID:  appID,
		config: config,
	}

	if config.FlushInterval > 0 {
		r.mu.Lock()
		r.running = true
		r.stopCh = make(chan struct{})
		go r.loop(r.stopCh)
		r.mu.Unlock()
	}

	return r
}

// Track queues one event. When the batch is full an upload starts in the
// background.
func (r *StatsReporter) Track(event StatsEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	r.mu.Lock()
	r.pending = append(r.pending, event)
	full := len(r.pending) >= r.config.BatchSize
	r.mu.Unlock()

	if full {
		go r.flushOnce(context.Background())
	}
}

// Pending returns the number of queued events.
func (r *StatsReporter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Flush uploads everything pending. Events are re-queued on failure.
func (r *StatsReporter) Flush(ctx context.Context) error {
	return r.flushOnce(ctx)
}

// Close stops the periodic schedule and attempts one final upload.
func (r *StatsReporter) Close() error {
	r.mu.Lock()
	if r.running {
		r.running = false
		close(r.stopCh)
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.client.config.Timeout)
	defer cancel()
	return r.flushOnce(ctx)
}

// loop drives the periodic flush until stopped.
func (r *StatsReporter) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(r.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			r.flushOnce(context.Background())
		}
	}
}

// flushOnce takes the pending batch and uploads it, putting the batch
// back at the front of the queue on failure.
func (r *StatsReporter) flushOnce(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := r.client.UploadStats(ctx, r.appID, batch); err != nil {
		r.mu.Lock()
		r.pending = append(batch, r.pending...)
		r.mu.Unlock()
		return err
	}
	return nil
}
