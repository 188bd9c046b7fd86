package lifecycle

import (
	"errors"
	"testing"

	"github.com/doopush/doopush-go/pkg/session"
)

// fakeConn records which session operations the adapter invoked.
type fakeConn struct {
	state   session.State
	pingErr error

	connects     int
	disconnects  int
	pings        int
	hbRestarts   int
	timerPauses  int
	attemptReset int
}

func (f *fakeConn) State() session.State { return f.state }
func (f *fakeConn) Connect() error       { f.connects++; return nil }
func (f *fakeConn) Disconnect()          { f.disconnects++ }
func (f *fakeConn) SendPing() error      { f.pings++; return f.pingErr }
func (f *fakeConn) RestartHeartbeat()    { f.hbRestarts++ }
func (f *fakeConn) PauseTimers()         { f.timerPauses++ }
func (f *fakeConn) ResetAttempts()       { f.attemptReset++ }

func TestForegroundHealthyRegistered(t *testing.T) {
	conn := &fakeConn{state: session.StateRegistered}
	NewAdapter(conn, nil).Foreground()

	if conn.pings != 1 {
		t.Errorf("expected 1 probe ping, got %d", conn.pings)
	}
	if conn.hbRestarts != 1 {
		t.Errorf("expected heartbeat restart, got %d", conn.hbRestarts)
	}
	if conn.connects != 0 {
		t.Errorf("healthy session must not reconnect, got %d connects", conn.connects)
	}
}

func TestForegroundDeadSocketReconnects(t *testing.T) {
	conn := &fakeConn{state: session.StateRegistered, pingErr: errors.New("broken pipe")}
	NewAdapter(conn, nil).Foreground()

	if conn.attemptReset != 1 {
		t.Errorf("expected attempt counter reset, got %d", conn.attemptReset)
	}
	if conn.connects != 1 {
		t.Errorf("expected reconnect after failed probe, got %d connects", conn.connects)
	}
	if conn.hbRestarts != 0 {
		t.Errorf("dead socket must not restart heartbeat, got %d", conn.hbRestarts)
	}
}

func TestForegroundAttemptInFlight(t *testing.T) {
	for _, state := range []session.State{
		session.StateConnecting,
		session.StateConnected,
		session.StateRegistering,
	} {
		conn := &fakeConn{state: state}
		NewAdapter(conn, nil).Foreground()

		if conn.connects != 0 || conn.pings != 0 || conn.attemptReset != 0 {
			t.Errorf("state %v: in-flight attempt must be left alone", state)
		}
	}
}

func TestForegroundIdleStatesReconnect(t *testing.T) {
	for _, state := range []session.State{
		session.StateDisconnected,
		session.StateFailed,
	} {
		conn := &fakeConn{state: state}
		NewAdapter(conn, nil).Foreground()

		if conn.attemptReset != 1 {
			t.Errorf("state %v: expected attempt counter reset", state)
		}
		if conn.connects != 1 {
			t.Errorf("state %v: expected connect, got %d", state, conn.connects)
		}
	}
}

func TestBackgroundPausesTimersOnly(t *testing.T) {
	conn := &fakeConn{state: session.StateRegistered}
	NewAdapter(conn, nil).Background()

	if conn.timerPauses != 1 {
		t.Errorf("expected timers paused, got %d", conn.timerPauses)
	}
	if conn.disconnects != 0 {
		t.Errorf("background must not close the socket, got %d disconnects", conn.disconnects)
	}
}

func TestTerminateDisconnects(t *testing.T) {
	conn := &fakeConn{state: session.StateRegistered}
	NewAdapter(conn, nil).Terminate()

	if conn.disconnects != 1 {
		t.Errorf("expected disconnect on terminate, got %d", conn.disconnects)
	}
}
