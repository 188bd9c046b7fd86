package push

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doopush/doopush-go/pkg/heartbeat"
	"github.com/doopush/doopush-go/pkg/persistence"
	"github.com/doopush/doopush-go/pkg/reconnect"
	"github.com/doopush/doopush-go/pkg/registration"
	"github.com/doopush/doopush-go/pkg/session"
	"github.com/doopush/doopush-go/pkg/transport"
	"github.com/doopush/doopush-go/pkg/wire"
)

// fixture bundles a fake API server, a fake gateway, and a manager.
type fixture struct {
	manager  *Manager
	conns    chan net.Conn
	statsUps atomic.Int32
	stats    []registration.StatsEvent
	statsMu  sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{conns: make(chan net.Conn, 8)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /apps/42/devices", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"device_id": "dev-abc",
			"gateway":   map[string]any{"host": "gw.test", "port": 9001},
		})
	})
	mux.HandleFunc("POST /apps/42/push/statistics", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Events []registration.StatsEvent `json:"events"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.statsMu.Lock()
		f.stats = append(f.stats, body.Events...)
		f.statsMu.Unlock()
		f.statsUps.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	dial := func(ctx context.Context, gw transport.GatewayConfig) (net.Conn, error) {
		client, gwConn := net.Pipe()
		f.conns <- gwConn
		return client, nil
	}

	f.manager = NewManager(Config{
		StatePath: filepath.Join(t.TempDir(), "state.json"),
		Session: session.Config{
			Dial:      dial,
			Heartbeat: heartbeat.Config{Interval: time.Hour},
			Reconnect: reconnect.Config{Initial: 20 * time.Millisecond, Max: 100 * time.Millisecond},
		},
		Stats: registration.StatsConfig{BatchSize: 100, FlushInterval: -1},
	})
	t.Cleanup(f.manager.Close)

	require.NoError(t, f.manager.Configure(42, "key-123", server.URL))
	return f
}

// acceptAndAck plays the gateway side of one successful handshake.
func (f *fixture) acceptAndAck(t *testing.T) net.Conn {
	t.Helper()
	var conn net.Conn
	select {
	case conn = <-f.conns:
	case <-time.After(2 * time.Second):
		t.Fatal("no gateway connection")
	}

	buf := make([]byte, 4096)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	msg := wire.Decode(buf[:n])
	require.NotNil(t, msg)
	require.Equal(t, wire.TagRegister, msg.Tag)

	_, err = conn.Write([]byte{byte(wire.TagAck)})
	require.NoError(t, err)
	return conn
}

func waitCond(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", msg)
}

func TestRegisterDeviceFlow(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var registeredID string
	f.manager.SetCallbacks(Callbacks{
		OnRegistered: func(deviceID string) {
			mu.Lock()
			registeredID = deviceID
			mu.Unlock()
		},
	})

	require.NoError(t, f.manager.RegisterDevice(context.Background(), "tok-1"))
	assert.Equal(t, "dev-abc", f.manager.DeviceID())

	f.acceptAndAck(t)
	waitCond(t, func() bool { return f.manager.State() == session.StateRegistered }, "registered")
	waitCond(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return registeredID == "dev-abc"
	}, "OnRegistered callback")
}

func TestRegisterDeviceRequiresConfigure(t *testing.T) {
	m := NewManager(Config{StatePath: filepath.Join(t.TempDir(), "state.json")})
	defer m.Close()

	err := m.RegisterDevice(context.Background(), "tok-1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestConnectRequiresRegistration(t *testing.T) {
	m := NewManager(Config{StatePath: filepath.Join(t.TempDir(), "state.json")})
	defer m.Close()

	assert.ErrorIs(t, m.Connect(), ErrNotRegistered)
}

func TestPushNotificationFlow(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var got []Notification
	f.manager.SetCallbacks(Callbacks{
		OnPushReceived: func(n Notification) {
			mu.Lock()
			got = append(got, n)
			mu.Unlock()
		},
	})

	require.NoError(t, f.manager.RegisterDevice(context.Background(), "tok-1"))
	conn := f.acceptAndAck(t)
	waitCond(t, func() bool { return f.manager.State() == session.StateRegistered }, "registered")

	payload := []byte(`{"push_id":"p-7","title":"hi","body":"there","badge":5}`)
	conn.Write(wire.Encode(wire.TagPush, payload))

	waitCond(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, "push callback")

	mu.Lock()
	n := got[0]
	mu.Unlock()
	assert.Equal(t, "p-7", n.PushID)
	assert.Equal(t, "hi", n.Title)
	assert.Equal(t, 5, f.manager.Badge(), "server badge applied")

	// Closing flushes the receive event tracked for the push.
	f.manager.Close()
	f.statsMu.Lock()
	defer f.statsMu.Unlock()
	require.Len(t, f.stats, 1)
	assert.Equal(t, "p-7", f.stats[0].PushID)
	assert.Equal(t, registration.EventReceive, f.stats[0].Kind)
}

func TestBadgeOperations(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var changes []int
	f.manager.SetCallbacks(Callbacks{
		OnBadgeChanged: func(count int) {
			mu.Lock()
			changes = append(changes, count)
			mu.Unlock()
		},
	})

	f.manager.IncrementBadge()
	f.manager.IncrementBadge()
	assert.Equal(t, 2, f.manager.Badge())

	f.manager.DecrementBadge()
	f.manager.DecrementBadge()
	f.manager.DecrementBadge() // already at zero
	assert.Equal(t, 0, f.manager.Badge(), "badge clamps at zero")

	f.manager.SetBadge(-5)
	assert.Equal(t, 0, f.manager.Badge())

	f.manager.SetBadge(7)
	f.manager.ClearBadge()
	assert.Equal(t, 0, f.manager.Badge())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 1, 0, 7, 0}, changes)
}

func TestStatePersistsAcrossManagers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	store := persistence.NewDeviceStateStore(path)
	require.NoError(t, store.Save(&persistence.DeviceState{
		AppID:       42,
		DeviceID:    "dev-old",
		DeviceToken: "tok-old",
		Gateway:     &persistence.GatewaySnapshot{Host: "gw.test", Port: 9001},
		BadgeCount:  4,
	}))

	conns := make(chan net.Conn, 1)
	dial := func(ctx context.Context, gw transport.GatewayConfig) (net.Conn, error) {
		client, gwConn := net.Pipe()
		conns <- gwConn
		return client, nil
	}

	m := NewManager(Config{
		StatePath: path,
		Session: session.Config{
			Dial:      dial,
			Heartbeat: heartbeat.Config{Interval: time.Hour},
		},
	})
	defer m.Close()

	assert.Equal(t, "dev-old", m.DeviceID())
	assert.Equal(t, 4, m.Badge())

	// Restored gateway and token are enough to connect without HTTP.
	require.NoError(t, m.Connect())
	select {
	case conn := <-conns:
		conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("restored state did not produce a gateway connection")
	}
}

func TestNonJSONPushStillDelivered(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var got []Notification
	f.manager.SetCallbacks(Callbacks{
		OnPushReceived: func(n Notification) {
			mu.Lock()
			got = append(got, n)
			mu.Unlock()
		},
	})

	require.NoError(t, f.manager.RegisterDevice(context.Background(), "tok-1"))
	conn := f.acceptAndAck(t)
	waitCond(t, func() bool { return f.manager.State() == session.StateRegistered }, "registered")

	raw := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	conn.Write(wire.Encode(wire.TagPush, raw))

	waitCond(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, "push callback")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, raw, got[0].Raw)
	assert.Empty(t, got[0].PushID)
}
