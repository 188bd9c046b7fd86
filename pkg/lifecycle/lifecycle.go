// Package lifecycle maps application lifecycle transitions onto session
// operations. The host application reports foreground, background, and
// terminate transitions; the adapter decides whether the session needs a
// health probe, a full reconnect, or a timer pause.
package lifecycle

import (
	"time"

	"github.com/doopush/doopush-go/pkg/log"
	"github.com/doopush/doopush-go/pkg/session"
)

// Connection is the slice of the session surface the adapter drives.
// *session.Session satisfies it.
type Connection interface {
	State() session.State
	Connect() error
	Disconnect()
	SendPing() error
	RestartHeartbeat()
	PauseTimers()
	ResetAttempts()
}

var _ Connection = (*session.Session)(nil)

// Adapter translates lifecycle transitions into session operations.
type Adapter struct {
	conn   Connection
	logger log.Logger
}

// NewAdapter creates a lifecycle adapter for conn.
// A nil logger disables logging.
func NewAdapter(conn Connection, logger log.Logger) *Adapter {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Adapter{conn: conn, logger: logger}
}

// Foreground repairs the connection after the app returns to the
// foreground. A registered session gets an immediate ping probe: if the
// socket died while the app was backgrounded the probe fails, the
// session fails over, and a fresh connection starts from a clean attempt
// counter. A healthy session just restarts its heartbeat schedule so the
// next ping is a full interval away. Sessions already mid-attempt are
// left alone.
func (a *Adapter) Foreground() {
	state := a.conn.State()
	a.logTransition("foreground", state)

	switch state {
	case session.StateRegistered:
		if err := a.conn.SendPing(); err != nil {
			a.reconnect()
			return
		}
		a.conn.RestartHeartbeat()

	case session.StateConnecting, session.StateConnected, session.StateRegistering:
		// An attempt is already in flight.

	default:
		a.reconnect()
	}
}

// Background quiesces timers when the app leaves the foreground. The
// socket stays open: the OS may keep it alive, and Foreground probes it
// on the way back.
func (a *Adapter) Background() {
	a.logTransition("background", a.conn.State())
	a.conn.PauseTimers()
}

// Terminate tears the connection down for app shutdown.
func (a *Adapter) Terminate() {
	a.logTransition("terminate", a.conn.State())
	a.conn.Disconnect()
}

// reconnect starts a fresh connection from a clean attempt counter.
func (a *Adapter) reconnect() {
	a.conn.ResetAttempts()
	if err := a.conn.Connect(); err != nil {
		a.logger.Log(log.Event{
			Timestamp: time.Now(),
			Layer:     log.LayerSession,
			Category:  log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerSession,
				Message: err.Error(),
				Context: "lifecycle reconnect",
			},
		})
	}
}

func (a *Adapter) logTransition(transition string, state session.State) {
	a.logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerSession,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: state.String(),
			NewState: state.String(),
			Reason:   "app " + transition,
		},
	})
}
