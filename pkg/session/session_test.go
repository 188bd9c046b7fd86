package session

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doopush/doopush-go/pkg/heartbeat"
	"github.com/doopush/doopush-go/pkg/reconnect"
	"github.com/doopush/doopush-go/pkg/transport"
	"github.com/doopush/doopush-go/pkg/wire"
)

// recordingSink captures all sink callbacks in order.
type recordingSink struct {
	mu          sync.Mutex
	transitions []State
	registered  int
	heartbeats  int
	pushes      [][]byte
	errors      []ErrorKind
}

func (r *recordingSink) OnStateChanged(oldState, newState State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, newState)
}

func (r *recordingSink) OnRegistered() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered++
}

func (r *recordingSink) OnHeartbeatReceived() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats++
}

func (r *recordingSink) OnPushReceived(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, payload)
}

func (r *recordingSink) OnError(kind ErrorKind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, kind)
}

func (r *recordingSink) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.transitions...)
}

func (r *recordingSink) errorKinds() []ErrorKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ErrorKind(nil), r.errors...)
}

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", msg)
}

// fakeGateway hands the server end of each dialed pipe to the test.
type fakeGateway struct {
	conns chan net.Conn
	dials atomic.Int32
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{conns: make(chan net.Conn, 8)}
}

func (g *fakeGateway) dial(ctx context.Context, gw transport.GatewayConfig) (net.Conn, error) {
	g.dials.Add(1)
	client, server := net.Pipe()
	g.conns <- server
	return client, nil
}

// accept returns the next server-side conn.
func (g *fakeGateway) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case conn := <-g.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection arrived at fake gateway")
		return nil
	}
}

// expectRegister reads and verifies the registration frame.
func expectRegister(t *testing.T, conn net.Conn) *wire.Registration {
	t.Helper()
	buf := make([]byte, 4096)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err, "reading register frame")

	msg := wire.Decode(buf[:n])
	require.NotNil(t, msg)
	require.Equal(t, wire.TagRegister, msg.Tag)

	var reg wire.Registration
	require.NoError(t, json.Unmarshal(msg.Payload, &reg))
	return &reg
}

func testConfig(g *fakeGateway) Config {
	return Config{
		Dial:      g.dial,
		Heartbeat: heartbeat.Config{Interval: time.Hour}, // keep ticks out of the way
		Reconnect: reconnect.Config{Initial: 20 * time.Millisecond, Max: 100 * time.Millisecond},
	}
}

func configured(s *Session) *Session {
	s.Configure(
		transport.GatewayConfig{Host: "gateway.test", Port: 9001},
		Credentials{AppID: 42, Token: "tok-1"},
	)
	return s
}

func TestFreshConnectHandshake(t *testing.T) {
	g := newFakeGateway()
	sink := &recordingSink{}
	s := configured(NewSession(testConfig(g), sink))
	defer s.Close()

	require.NoError(t, s.Connect())

	conn := g.accept(t)
	reg := expectRegister(t, conn)
	assert.Equal(t, 42, reg.AppID)
	assert.Equal(t, "tok-1", reg.Token)
	assert.Equal(t, wire.PlatformIOS, reg.Platform)

	// Ack completes the handshake.
	_, err := conn.Write([]byte{byte(wire.TagAck)})
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool { return s.State() == StateRegistered }, "registered")

	waitFor(t, time.Second, func() bool {
		states := sink.states()
		return len(states) >= 4
	}, "state callbacks")
	assert.Equal(t,
		[]State{StateConnecting, StateConnected, StateRegistering, StateRegistered},
		sink.states())

	waitFor(t, time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.registered == 1
	}, "OnRegistered")

	assert.Equal(t, 0, s.Attempts(), "attempt count resets on registration")
}

func TestConnectWithoutConfiguration(t *testing.T) {
	g := newFakeGateway()
	sink := &recordingSink{}
	s := NewSession(testConfig(g), sink)
	defer s.Close()

	err := s.Connect()
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, StateFailed, s.State())

	waitFor(t, time.Second, func() bool { return len(sink.errorKinds()) == 1 }, "error callback")
	assert.Equal(t, KindConfiguration, sink.errorKinds()[0])

	// Configuration errors never schedule a reconnect.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), g.dials.Load(), "no socket attempt without configuration")
	assert.Equal(t, StateFailed, s.State())
}

func TestUnexpectedCloseReconnects(t *testing.T) {
	g := newFakeGateway()
	sink := &recordingSink{}
	s := configured(NewSession(testConfig(g), sink))
	defer s.Close()

	require.NoError(t, s.Connect())
	conn := g.accept(t)
	expectRegister(t, conn)
	conn.Write([]byte{byte(wire.TagAck)})
	waitFor(t, time.Second, func() bool { return s.State() == StateRegistered }, "registered")

	// Gateway drops the socket.
	conn.Close()

	waitFor(t, time.Second, func() bool {
		for _, st := range sink.states() {
			if st == StateFailed {
				return true
			}
		}
		return false
	}, "failed state")

	// First backoff interval elapses and a fresh attempt arrives.
	conn2 := g.accept(t)
	expectRegister(t, conn2)
	conn2.Write([]byte{byte(wire.TagAck)})
	waitFor(t, time.Second, func() bool { return s.State() == StateRegistered }, "re-registered")

	assert.GreaterOrEqual(t, g.dials.Load(), int32(2))
	assert.Equal(t, 0, s.Attempts())
}

func TestDisconnectWhileConnecting(t *testing.T) {
	var dials atomic.Int32
	blockingDial := func(ctx context.Context, gw transport.GatewayConfig) (net.Conn, error) {
		dials.Add(1)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	sink := &recordingSink{}
	s := configured(NewSession(Config{
		Dial:      blockingDial,
		Reconnect: reconnect.Config{Initial: 20 * time.Millisecond, Max: 100 * time.Millisecond},
	}, sink))
	defer s.Close()

	require.NoError(t, s.Connect())
	waitFor(t, time.Second, func() bool { return s.State() == StateConnecting }, "connecting")

	s.Disconnect()
	assert.Equal(t, StateDisconnected, s.State())

	// Well past the would-be backoff interval: still disconnected, no
	// further dial attempts.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateDisconnected, s.State())
	assert.Equal(t, int32(1), dials.Load())
	assert.Empty(t, sink.errorKinds(), "user disconnect is not an error")
}

func TestDisconnectIdempotent(t *testing.T) {
	g := newFakeGateway()
	s := configured(NewSession(testConfig(g), &recordingSink{}))
	defer s.Close()

	s.Disconnect()
	s.Disconnect()
	assert.Equal(t, StateDisconnected, s.State())
}

func TestUnknownTagDropped(t *testing.T) {
	g := newFakeGateway()
	sink := &recordingSink{}
	s := configured(NewSession(testConfig(g), sink))
	defer s.Close()

	require.NoError(t, s.Connect())
	conn := g.accept(t)
	expectRegister(t, conn)
	conn.Write([]byte{byte(wire.TagAck)})
	waitFor(t, time.Second, func() bool { return s.State() == StateRegistered }, "registered")

	// Unrecognized tag 0x09 with payload 0xAB: discarded silently.
	conn.Write([]byte{0x09, 0xAB})

	// Follow with a pong so we know the unknown frame has been processed.
	conn.Write([]byte{byte(wire.TagPong)})
	waitFor(t, time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.heartbeats == 1
	}, "pong after unknown frame")

	assert.Equal(t, StateRegistered, s.State(), "unknown frame must not change state")
	assert.Empty(t, sink.errorKinds(), "unknown frame must not surface an error")
}

func TestPushDelivered(t *testing.T) {
	g := newFakeGateway()
	sink := &recordingSink{}
	s := configured(NewSession(testConfig(g), sink))
	defer s.Close()

	require.NoError(t, s.Connect())
	conn := g.accept(t)
	expectRegister(t, conn)
	conn.Write([]byte{byte(wire.TagAck)})
	waitFor(t, time.Second, func() bool { return s.State() == StateRegistered }, "registered")

	payload := []byte(`{"title":"hello","body":"world"}`)
	conn.Write(wire.Encode(wire.TagPush, payload))

	waitFor(t, time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.pushes) == 1
	}, "push callback")

	sink.mu.Lock()
	got := sink.pushes[0]
	sink.mu.Unlock()
	assert.Equal(t, payload, got)
	assert.Equal(t, StateRegistered, s.State(), "push must not change state")
}

func TestGatewayErrorFrame(t *testing.T) {
	g := newFakeGateway()
	sink := &recordingSink{}
	s := configured(NewSession(testConfig(g), sink))
	defer s.Close()

	require.NoError(t, s.Connect())
	conn := g.accept(t)
	expectRegister(t, conn)
	conn.Write([]byte{byte(wire.TagAck)})
	waitFor(t, time.Second, func() bool { return s.State() == StateRegistered }, "registered")

	conn.Write(wire.Encode(wire.TagError, []byte("device quota exceeded")))

	waitFor(t, time.Second, func() bool { return len(sink.errorKinds()) >= 1 }, "error surfaced")
	assert.Equal(t, KindProtocol, sink.errorKinds()[0])

	// Protocol errors retry like transport errors.
	conn2 := g.accept(t)
	expectRegister(t, conn2)
	conn2.Write([]byte{byte(wire.TagAck)})
	waitFor(t, time.Second, func() bool { return s.State() == StateRegistered }, "recovered")
}

func TestAckOutsideRegisteringIgnored(t *testing.T) {
	g := newFakeGateway()
	sink := &recordingSink{}
	s := configured(NewSession(testConfig(g), sink))
	defer s.Close()

	require.NoError(t, s.Connect())
	conn := g.accept(t)
	expectRegister(t, conn)
	conn.Write([]byte{byte(wire.TagAck)})
	waitFor(t, time.Second, func() bool { return s.State() == StateRegistered }, "registered")

	before := len(sink.states())

	// A second ack is not a defined transition from REGISTERED.
	conn.Write([]byte{byte(wire.TagAck)})
	conn.Write([]byte{byte(wire.TagPong)})
	waitFor(t, time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.heartbeats == 1
	}, "pong processed")

	assert.Equal(t, before, len(sink.states()), "no transition from duplicate ack")
	assert.Equal(t, StateRegistered, s.State())
}

func TestSocketCloseSurfacesTransportError(t *testing.T) {
	g := newFakeGateway()
	sink := &recordingSink{}
	s := configured(NewSession(testConfig(g), sink))
	defer s.Close()

	require.NoError(t, s.Connect())
	conn := g.accept(t)
	expectRegister(t, conn)
	conn.Write([]byte{byte(wire.TagAck)})
	waitFor(t, time.Second, func() bool { return s.State() == StateRegistered }, "registered")

	// Close the server side without the client noticing yet, then ping.
	conn.Close()
	waitFor(t, time.Second, func() bool { return s.State() == StateFailed || s.State() == StateConnecting }, "failure detected")

	waitFor(t, time.Second, func() bool { return len(sink.errorKinds()) >= 1 }, "transport error surfaced")
	assert.Equal(t, KindTransport, sink.errorKinds()[0])
}

func TestPauseTimersKeepsSocketAndState(t *testing.T) {
	g := newFakeGateway()
	sink := &recordingSink{}
	s := configured(NewSession(testConfig(g), sink))
	defer s.Close()

	require.NoError(t, s.Connect())
	conn := g.accept(t)
	expectRegister(t, conn)
	conn.Write([]byte{byte(wire.TagAck)})
	waitFor(t, time.Second, func() bool { return s.State() == StateRegistered }, "registered")

	s.PauseTimers()
	assert.Equal(t, StateRegistered, s.State(), "pause must not change state")

	// The socket is still alive: a pong still gets through.
	conn.Write([]byte{byte(wire.TagPong)})
	waitFor(t, time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.heartbeats == 1
	}, "pong after pause")
}

func TestSendPingWithoutSocket(t *testing.T) {
	g := newFakeGateway()
	s := configured(NewSession(testConfig(g), &recordingSink{}))
	defer s.Close()

	assert.ErrorIs(t, s.SendPing(), ErrNotConnected)
}

func TestMaxAttemptsStopsRetrying(t *testing.T) {
	var dials atomic.Int32
	failingDial := func(ctx context.Context, gw transport.GatewayConfig) (net.Conn, error) {
		dials.Add(1)
		return nil, context.DeadlineExceeded
	}

	sink := &recordingSink{}
	s := configured(NewSession(Config{
		Dial: failingDial,
		Reconnect: reconnect.Config{
			Initial:     5 * time.Millisecond,
			Max:         10 * time.Millisecond,
			MaxAttempts: 2,
		},
	}, sink))
	defer s.Close()

	require.NoError(t, s.Connect())

	// Initial attempt plus two scheduled retries, then the budget is gone.
	waitFor(t, time.Second, func() bool { return dials.Load() == 3 }, "three attempts")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), dials.Load())
	assert.Equal(t, StateFailed, s.State(), "stays failed until explicit Connect")
}

func TestCallbackOrdering(t *testing.T) {
	g := newFakeGateway()
	sink := &recordingSink{}
	s := configured(NewSession(testConfig(g), sink))
	defer s.Close()

	require.NoError(t, s.Connect())
	conn := g.accept(t)
	expectRegister(t, conn)
	conn.Write([]byte{byte(wire.TagAck)})
	waitFor(t, time.Second, func() bool { return s.State() == StateRegistered }, "registered")

	waitFor(t, time.Second, func() bool { return len(sink.states()) == 4 }, "all transitions delivered")

	// Transitions arrive in exactly the order they occurred; none skipped.
	assert.Equal(t,
		[]State{StateConnecting, StateConnected, StateRegistering, StateRegistered},
		sink.states())
}
