package push

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/doopush/doopush-go/pkg/heartbeat"
	"github.com/doopush/doopush-go/pkg/lifecycle"
	"github.com/doopush/doopush-go/pkg/log"
	"github.com/doopush/doopush-go/pkg/persistence"
	"github.com/doopush/doopush-go/pkg/registration"
	"github.com/doopush/doopush-go/pkg/session"
	"github.com/doopush/doopush-go/pkg/transport"
)

// Manager errors.
var (
	// ErrNotConfigured indicates Configure has not been called.
	ErrNotConfigured = errors.New("manager not configured")

	// ErrNotRegistered indicates no device registration exists yet.
	ErrNotRegistered = errors.New("device not registered")
)

// Callbacks are the host application's event handlers. Nil fields are
// skipped. Callbacks fire from the session's dispatch goroutine in event
// order; keep them short.
type Callbacks struct {
	// OnStateChanged fires on every connection state transition.
	OnStateChanged func(oldState, newState session.State)

	// OnRegistered fires when the gateway acknowledges the device.
	OnRegistered func(deviceID string)

	// OnPushReceived fires for every push notification.
	OnPushReceived func(n Notification)

	// OnBadgeChanged fires when the badge count changes.
	OnBadgeChanged func(count int)

	// OnError fires for surfaced connection errors.
	OnError func(kind session.ErrorKind, err error)
}

// Config configures a Manager.
type Config struct {
	// StatePath is where device state persists. Empty selects
	// "doopush/state.json" under the user config directory.
	StatePath string

	// Session tunes the gateway session (heartbeat interval, reconnect
	// policy, dial override).
	Session session.Config

	// Stats tunes statistics batching.
	Stats registration.StatsConfig

	// Collector gathers device info for registration requests.
	// Nil selects the system collector.
	Collector registration.Collector

	// Logger receives protocol events. Nil disables logging.
	Logger log.Logger

	// APITimeout bounds registration API requests.
	APITimeout time.Duration
}

// Manager owns the full push pipeline for one application.
type Manager struct {
	logger    log.Logger
	store     *persistence.DeviceStateStore
	session   *session.Session
	adapter   *lifecycle.Adapter
	collector registration.Collector
	stats     registration.StatsConfig
	apiTO     time.Duration

	mu        sync.Mutex
	callbacks Callbacks
	client    *registration.Client
	reporter  *registration.StatsReporter
	appID     int
	deviceID  string
	token     string
	badge     int
}

// NewManager creates a manager. No network activity happens until
// RegisterDevice or Connect.
func NewManager(config Config) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}
	if config.Session.Logger == nil {
		config.Session.Logger = logger
	}
	collector := config.Collector
	if collector == nil {
		collector = registration.SystemCollector{}
	}

	m := &Manager{
		logger:    logger,
		store:     persistence.NewDeviceStateStore(statePath(config.StatePath)),
		collector: collector,
		stats:     config.Stats,
		apiTO:     config.APITimeout,
	}
	m.session = session.NewSession(config.Session, &managerSink{m: m})
	m.adapter = lifecycle.NewAdapter(m.session, logger)

	m.restoreState()
	return m
}

// statePath resolves the state file location.
func statePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "doopush", "state.json")
}

// restoreState loads persisted registration state so a restarted app can
// reconnect without another HTTP round trip.
func (m *Manager) restoreState() {
	state, err := m.store.Load()
	if err != nil || state == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.appID = state.AppID
	m.deviceID = state.DeviceID
	m.token = state.DeviceToken
	m.badge = state.BadgeCount

	if state.Gateway != nil && state.DeviceToken != "" {
		m.session.Configure(
			transport.GatewayConfig{
				Host:   state.Gateway.Host,
				Port:   state.Gateway.Port,
				UseTLS: state.Gateway.UseTLS,
			},
			session.Credentials{AppID: state.AppID, Token: state.DeviceToken},
		)
	}
}

// SetCallbacks installs the host application's event handlers.
// Call before RegisterDevice to avoid missing early transitions.
func (m *Manager) SetCallbacks(cb Callbacks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = cb
}

// Configure sets the application credentials for the HTTP API.
func (m *Manager) Configure(appID int, apiKey, baseURL string) error {
	client, err := registration.NewClient(registration.Config{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Timeout: m.apiTO,
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.appID = appID
	m.client = client
	if m.reporter != nil {
		m.reporter.Close()
	}
	m.reporter = registration.NewStatsReporter(client, appID, m.stats)
	return nil
}

// RegisterDevice registers the push token with the API, persists the
// resulting device identity, and connects to the assigned gateway.
func (m *Manager) RegisterDevice(ctx context.Context, token string) error {
	m.mu.Lock()
	client := m.client
	appID := m.appID
	m.mu.Unlock()

	if client == nil {
		return ErrNotConfigured
	}

	info := m.collector.Collect()
	result, err := client.Register(ctx, appID, token, &info)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.deviceID = result.DeviceID
	m.token = token
	badge := m.badge
	m.mu.Unlock()

	if err := m.store.Save(&persistence.DeviceState{
		AppID:       appID,
		DeviceID:    result.DeviceID,
		DeviceToken: token,
		Gateway: &persistence.GatewaySnapshot{
			Host:   result.Gateway.Host,
			Port:   result.Gateway.Port,
			UseTLS: result.Gateway.UseTLS,
		},
		BadgeCount: badge,
	}); err != nil {
		return fmt.Errorf("failed to persist device state: %w", err)
	}

	m.session.Configure(result.Gateway, session.Credentials{AppID: appID, Token: token})
	return m.session.Connect()
}

// UseGateway points the session directly at a known gateway, bypassing
// HTTP registration. Intended for development against a local simulator;
// nothing is persisted.
func (m *Manager) UseGateway(appID int, gw transport.GatewayConfig, token string) {
	m.mu.Lock()
	m.appID = appID
	m.token = token
	m.mu.Unlock()

	m.session.Configure(gw, session.Credentials{AppID: appID, Token: token})
}

// HeartbeatStats returns keep-alive counters for the current session.
func (m *Manager) HeartbeatStats() heartbeat.Stats {
	return m.session.HeartbeatStats()
}

// DeviceID returns the server-assigned device identifier, or empty when
// the device has not registered yet.
func (m *Manager) DeviceID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deviceID
}

// State returns the current connection state.
func (m *Manager) State() session.State {
	return m.session.State()
}

// Connect opens the gateway connection using the stored registration.
func (m *Manager) Connect() error {
	m.mu.Lock()
	registered := m.token != ""
	m.mu.Unlock()

	if !registered {
		return ErrNotRegistered
	}
	return m.session.Connect()
}

// Disconnect closes the gateway connection.
func (m *Manager) Disconnect() {
	m.session.Disconnect()
}

// SendPing sends one immediate heartbeat ping.
func (m *Manager) SendPing() error {
	return m.session.SendPing()
}

// EnterForeground reports that the app returned to the foreground.
func (m *Manager) EnterForeground() {
	m.adapter.Foreground()
}

// EnterBackground reports that the app left the foreground.
func (m *Manager) EnterBackground() {
	m.adapter.Background()
}

// Terminate reports that the app is shutting down.
func (m *Manager) Terminate() {
	m.adapter.Terminate()
}

// Badge returns the current badge count.
func (m *Manager) Badge() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.badge
}

// SetBadge sets the badge count. Negative values clamp to zero.
func (m *Manager) SetBadge(count int) {
	if count < 0 {
		count = 0
	}

	m.mu.Lock()
	changed := m.badge != count
	m.badge = count
	cb := m.callbacks.OnBadgeChanged
	m.mu.Unlock()

	if !changed {
		return
	}
	m.persistBadge(count)
	if cb != nil {
		cb(count)
	}
}

// IncrementBadge adds one to the badge count.
func (m *Manager) IncrementBadge() {
	m.SetBadge(m.Badge() + 1)
}

// DecrementBadge subtracts one from the badge count, stopping at zero.
func (m *Manager) DecrementBadge() {
	m.SetBadge(m.Badge() - 1)
}

// ClearBadge resets the badge count to zero.
func (m *Manager) ClearBadge() {
	m.SetBadge(0)
}

// persistBadge updates the badge count in the state file.
func (m *Manager) persistBadge(count int) {
	state, err := m.store.Load()
	if err != nil || state == nil {
		state = &persistence.DeviceState{}
	}
	state.BadgeCount = count
	if err := m.store.Save(state); err != nil {
		m.logger.Log(log.Event{
			Timestamp: time.Now(),
			Layer:     log.LayerSession,
			Category:  log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerSession,
				Message: err.Error(),
				Context: "badge persist",
			},
		})
	}
}

// TrackEvent queues one statistics event for upload.
func (m *Manager) TrackEvent(pushID, kind string) {
	m.mu.Lock()
	reporter := m.reporter
	m.mu.Unlock()

	if reporter == nil {
		return
	}
	reporter.Track(registration.StatsEvent{PushID: pushID, Kind: kind})
}

// Close disconnects, uploads pending statistics, and releases resources.
func (m *Manager) Close() {
	m.session.Close()

	m.mu.Lock()
	reporter := m.reporter
	m.reporter = nil
	m.mu.Unlock()

	if reporter != nil {
		reporter.Close()
	}
}

// managerSink adapts session events onto manager callbacks.
type managerSink struct {
	m *Manager
}

func (s *managerSink) OnStateChanged(oldState, newState session.State) {
	s.m.mu.Lock()
	cb := s.m.callbacks.OnStateChanged
	s.m.mu.Unlock()
	if cb != nil {
		cb(oldState, newState)
	}
}

func (s *managerSink) OnRegistered() {
	s.m.mu.Lock()
	cb := s.m.callbacks.OnRegistered
	deviceID := s.m.deviceID
	s.m.mu.Unlock()
	if cb != nil {
		cb(deviceID)
	}
}

func (s *managerSink) OnHeartbeatReceived() {}

func (s *managerSink) OnPushReceived(payload []byte) {
	n := decodeNotification(payload)

	if n.PushID != "" {
		s.m.TrackEvent(n.PushID, registration.EventReceive)
	}
	if n.Badge != nil {
		s.m.SetBadge(*n.Badge)
	}

	s.m.mu.Lock()
	cb := s.m.callbacks.OnPushReceived
	s.m.mu.Unlock()
	if cb != nil {
		cb(n)
	}
}

func (s *managerSink) OnError(kind session.ErrorKind, err error) {
	s.m.mu.Lock()
	cb := s.m.callbacks.OnError
	s.m.mu.Unlock()
	if cb != nil {
		cb(kind, err)
	}
}

var _ session.EventSink = (*managerSink)(nil)
