package session

import "sync"

// EventSink receives session events. Implementations are called from a
// single dispatch goroutine in the exact order the underlying state
// changes occurred; no callback is ever invoked concurrently with another.
//
// Embed NoopSink to implement only the callbacks you care about.
type EventSink interface {
	// OnStateChanged is called on every state transition.
	OnStateChanged(oldState, newState State)

	// OnRegistered is called when the registration handshake completes.
	OnRegistered()

	// OnHeartbeatReceived is called when a pong arrives.
	OnHeartbeatReceived()

	// OnPushReceived is called with the payload of each push frame.
	// The slice is owned by the receiver.
	OnPushReceived(payload []byte)

	// OnError is called for every surfaced error.
	OnError(kind ErrorKind, err error)
}

// NoopSink implements EventSink with no-ops. Embed it to get default
// implementations for callbacks you don't need.
type NoopSink struct{}

// OnStateChanged does nothing.
func (NoopSink) OnStateChanged(State, State) {}

// OnRegistered does nothing.
func (NoopSink) OnRegistered() {}

// OnHeartbeatReceived does nothing.
func (NoopSink) OnHeartbeatReceived() {}

// OnPushReceived does nothing.
func (NoopSink) OnPushReceived([]byte) {}

// OnError does nothing.
func (NoopSink) OnError(ErrorKind, error) {}

// Compile-time interface satisfaction check.
var _ EventSink = NoopSink{}

// eventQueue serializes sink callbacks onto one goroutine while keeping
// enqueue non-blocking for the session (the queue is unbounded, so a slow
// host cannot deadlock the session's internal lock against its own
// callback).
type eventQueue struct {
	mu        sync.Mutex
	items     []func()
	wake      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	go q.drain()
	return q
}

// push appends a callback. Never blocks on the consumer.
func (q *eventQueue) push(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// drain runs callbacks in push order until the queue is closed.
func (q *eventQueue) drain() {
	for {
		select {
		case <-q.closed:
			return
		case <-q.wake:
		}

		for {
			q.mu.Lock()
			if len(q.items) == 0 {
				q.mu.Unlock()
				break
			}
			fn := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()

			fn()
		}
	}
}

// close stops the dispatcher. Queued callbacks that have not started are
// dropped.
func (q *eventQueue) close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}
