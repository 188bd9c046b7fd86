package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doopush/doopush-go/pkg/heartbeat"
	"github.com/doopush/doopush-go/pkg/log"
	"github.com/doopush/doopush-go/pkg/reconnect"
	"github.com/doopush/doopush-go/pkg/transport"
	"github.com/doopush/doopush-go/pkg/wire"
)

// Credentials identify the application and device during the handshake.
// Absence is a configuration error, not a retryable condition.
type Credentials struct {
	// AppID is the numeric application identifier.
	AppID int

	// Token is the device push token.
	Token string
}

// Validate checks required credential fields.
func (c Credentials) Validate() error {
	if c.AppID == 0 {
		return wire.ErrMissingAppID
	}
	if c.Token == "" {
		return wire.ErrMissingToken
	}
	return nil
}

// DialFunc opens a socket to the gateway. Overridable for tests.
type DialFunc func(ctx context.Context, gw transport.GatewayConfig) (net.Conn, error)

// Config configures a Session.
type Config struct {
	// Dial opens gateway sockets. Nil selects the default transport dialer.
	Dial DialFunc

	// Heartbeat configures the keep-alive schedule.
	Heartbeat heartbeat.Config

	// Reconnect configures the backoff policy.
	Reconnect reconnect.Config

	// Logger receives protocol events. Nil disables logging.
	Logger log.Logger
}

// Session owns the gateway socket and drives the connection state machine.
// Construct one with NewSession and share it; all methods are safe for
// concurrent use.
type Session struct {
	config Config
	sink   EventSink
	logger log.Logger
	queue  *eventQueue
	policy *reconnect.Policy
	hb     *heartbeat.Controller
	dialFn DialFunc

	mu               sync.Mutex
	state            State
	gateway          transport.GatewayConfig
	creds            Credentials
	configured       bool
	desiredReconnect bool
	conn             net.Conn
	writer           *transport.ChunkWriter
	connID           string
	gen              uint64
	reconnectTimer   *time.Timer
	dialCancel       context.CancelFunc
	closed           bool
}

// NewSession creates a session delivering events to sink.
// The session starts in StateDisconnected and opens no socket until
// Connect is called.
func NewSession(config Config, sink EventSink) *Session {
	if sink == nil {
		sink = NoopSink{}
	}
	logger := config.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	s := &Session{
		config: config,
		sink:   sink,
		logger: logger,
		queue:  newEventQueue(),
		policy: reconnect.NewPolicyWithConfig(config.Reconnect),
		state:  StateDisconnected,
	}

	s.dialFn = config.Dial
	if s.dialFn == nil {
		s.dialFn = transport.NewDialer(transport.DefaultDialerConfig()).Dial
	}

	s.hb = heartbeat.NewController(config.Heartbeat, s.sendHeartbeatPing, nil)

	return s
}

// Configure stores the gateway coordinates and credentials for the next
// Connect call. It opens no socket and has no side effect besides storage.
func (s *Session) Configure(gw transport.GatewayConfig, creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gateway = gw
	s.creds = creds
	s.configured = true
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts returns the reconnect attempt count since the last successful
// registration.
func (s *Session) Attempts() int {
	return s.policy.Attempts()
}

// ResetAttempts clears the reconnect attempt counter so the next failure
// backs off from the initial delay again.
func (s *Session) ResetAttempts() {
	s.policy.Reset()
}

// HeartbeatStats returns keep-alive counters for the current session.
func (s *Session) HeartbeatStats() heartbeat.Stats {
	return s.hb.Stats()
}

// Connect opens a new gateway connection. Any existing socket is torn
// down first. Fails fast without a socket attempt when the session has no
// configuration.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	s.desiredReconnect = true
	s.cancelReconnectLocked()

	if err := s.configErrLocked(); err != nil {
		s.failLocked(KindConfiguration, err, false)
		return err
	}

	s.startAttemptLocked()
	return nil
}

// Disconnect closes the socket, cancels all timers, and parks the session
// in StateDisconnected. No reconnect happens until the next Connect.
// Idempotent; no callback fires after it returns with a stale socket.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.desiredReconnect = false
	s.cancelReconnectLocked()
	s.hb.Stop()
	if s.dialCancel != nil {
		s.dialCancel()
		s.dialCancel = nil
	}
	s.gen++
	s.teardownConnLocked()
	s.setStateLocked(StateDisconnected, "disconnect")
}

// Close disconnects and stops the event dispatcher. The session cannot be
// reused afterwards.
func (s *Session) Close() {
	s.Disconnect()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.queue.close()
}

// SendPing writes one ping frame immediately. A write failure is treated
// like any socket error: the session fails and schedules a reconnect.
func (s *Session) SendPing() error {
	s.mu.Lock()
	writer := s.writer
	gen := s.gen
	connID := s.connID
	s.mu.Unlock()

	if writer == nil {
		return ErrNotConnected
	}

	if err := writer.WriteChunk(wire.Encode(wire.TagPing, nil)); err != nil {
		s.socketError(gen, fmt.Errorf("ping send failed: %w", err))
		return err
	}

	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerWire,
		Category:     log.CategoryControl,
		Heartbeat:    &log.HeartbeatEvent{Kind: log.HeartbeatPing},
	})
	return nil
}

// RestartHeartbeat restarts the keep-alive schedule. Only meaningful in
// StateRegistered; a no-op otherwise.
func (s *Session) RestartHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRegistered {
		s.hb.Start()
	}
}

// PauseTimers stops the heartbeat schedule and cancels any pending
// reconnect without touching the socket or the state. Used when the app
// moves to the background; the next foreground transition repairs the
// connection if the transport died meanwhile.
func (s *Session) PauseTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hb.Stop()
	s.cancelReconnectLocked()
}

// sendHeartbeatPing is the heartbeat controller's send callback.
func (s *Session) sendHeartbeatPing() error {
	return s.SendPing()
}

// configErrLocked validates the stored configuration.
func (s *Session) configErrLocked() error {
	if !s.configured {
		return ErrNotConfigured
	}
	if err := s.gateway.Validate(); err != nil {
		return err
	}
	return s.creds.Validate()
}

// startAttemptLocked tears down any current socket and launches a new
// connection attempt.
func (s *Session) startAttemptLocked() {
	s.hb.Stop()
	s.gen++
	s.teardownConnLocked()

	gen := s.gen
	connID := uuid.NewString()
	s.connID = connID
	gw := s.gateway
	creds := s.creds

	ctx, cancel := context.WithCancel(context.Background())
	s.dialCancel = cancel

	s.setStateLocked(StateConnecting, "connect")

	go s.runAttempt(ctx, gen, gw, creds, connID)
}

// runAttempt dials, performs the registration handshake, and starts the
// read loop. Runs outside the session lock; every re-entry checks the
// connection generation so results from torn-down attempts are ignored.
func (s *Session) runAttempt(ctx context.Context, gen uint64, gw transport.GatewayConfig, creds Credentials, connID string) {
	conn, err := s.dialFn(ctx, gw)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	s.dialCancel = nil

	if err != nil {
		s.failLocked(KindTransport, err, true)
		s.mu.Unlock()
		return
	}

	s.conn = conn
	s.writer = transport.NewChunkWriter(conn)
	s.writer.SetLogger(s.logger, connID)
	s.setStateLocked(StateConnected, "socket ready")

	frame, err := wire.EncodeRegistration(&wire.Registration{
		AppID:    creds.AppID,
		Token:    creds.Token,
		Platform: wire.PlatformIOS,
	})
	if err != nil {
		s.failLocked(KindProtocol, err, true)
		s.mu.Unlock()
		return
	}
	writer := s.writer
	s.mu.Unlock()

	if err := writer.WriteChunk(frame); err != nil {
		s.socketError(gen, fmt.Errorf("register send failed: %w", err))
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateRegistering, "register sent")
	s.mu.Unlock()

	s.readLoop(gen, conn, connID)
}

// readLoop reads frames until the socket dies or the attempt is obsoleted.
func (s *Session) readLoop(gen uint64, conn net.Conn, connID string) {
	reader := transport.NewChunkReader(conn)
	reader.SetLogger(s.logger, connID)

	for {
		chunk, err := reader.ReadChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrConnectionClosed
			}
			s.socketError(gen, err)
			return
		}
		if !s.handleFrame(gen, chunk) {
			return
		}
	}
}

// handleFrame dispatches one decoded frame. Returns false when the read
// loop should stop (stale generation or fatal frame).
func (s *Session) handleFrame(gen uint64, chunk []byte) bool {
	msg := wire.Decode(chunk)
	if msg == nil {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return false
	}

	switch msg.Tag {
	case wire.TagAck:
		if s.state != StateRegistering {
			s.logDroppedLocked(msg)
			return true
		}
		s.setStateLocked(StateRegistered, "ack received")
		s.policy.Reset()
		s.hb.Start()
		s.emitLocked(func(sink EventSink) { sink.OnRegistered() })

	case wire.TagPong:
		s.hb.PongReceived()
		s.logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: s.connID,
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryControl,
			Heartbeat:    &log.HeartbeatEvent{Kind: log.HeartbeatPong},
		})
		s.emitLocked(func(sink EventSink) { sink.OnHeartbeatReceived() })

	case wire.TagPush:
		payload := append([]byte(nil), msg.Payload...)
		s.emitLocked(func(sink EventSink) { sink.OnPushReceived(payload) })

	case wire.TagError:
		err := fmt.Errorf("%w: %s", ErrGatewayError, string(msg.Payload))
		s.failLocked(KindProtocol, err, true)
		return false

	default:
		// Unknown tags (and tags the gateway should never send us) are
		// logged and dropped; never fatal.
		s.logDroppedLocked(msg)
	}
	return true
}

// socketError reports a socket-level failure from outside the lock.
func (s *Session) socketError(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return
	}
	s.failLocked(KindTransport, err, true)
}

// failLocked tears down the socket, surfaces the error, moves to
// StateFailed, and (for retryable kinds) schedules the next attempt.
func (s *Session) failLocked(kind ErrorKind, err error, schedule bool) {
	s.gen++
	s.hb.Stop()
	s.teardownConnLocked()

	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerSession,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerSession,
			Message: err.Error(),
			Context: kind.String(),
		},
	})
	s.emitLocked(func(sink EventSink) { sink.OnError(kind, err) })
	s.setStateLocked(StateFailed, kind.String())

	if schedule {
		s.scheduleReconnectLocked()
	}
}

// scheduleReconnectLocked arms the backoff timer for the next attempt.
func (s *Session) scheduleReconnectLocked() {
	if !s.desiredReconnect {
		return
	}

	delay, ok := s.policy.Next()
	if !ok {
		// Attempt budget exhausted: stay failed until an explicit Connect.
		return
	}

	s.reconnectTimer = time.AfterFunc(delay, s.reconnectFire)
}

// reconnectFire runs when the backoff timer expires.
func (s *Session) reconnectFire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.desiredReconnect || s.state != StateFailed {
		return
	}
	s.startAttemptLocked()
}

// cancelReconnectLocked stops any pending backoff timer.
func (s *Session) cancelReconnectLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// teardownConnLocked closes and forgets the current socket.
func (s *Session) teardownConnLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.writer = nil
}

// setStateLocked transitions the state machine and notifies the sink.
func (s *Session) setStateLocked(newState State, reason string) {
	if s.state == newState {
		return
	}
	oldState := s.state
	s.state = newState

	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
	s.emitLocked(func(sink EventSink) { sink.OnStateChanged(oldState, newState) })
}

// emitLocked queues a sink callback for ordered delivery.
func (s *Session) emitLocked(fn func(sink EventSink)) {
	sink := s.sink
	s.queue.push(func() { fn(sink) })
}

// logDroppedLocked records a discarded frame.
func (s *Session) logDroppedLocked(msg *wire.Message) {
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Message: &log.MessageEvent{
			Tag:         uint8(msg.Tag),
			TagName:     msg.Tag.String(),
			PayloadSize: len(msg.Payload),
			Dropped:     true,
		},
	})
}
