package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Transport constants.
const (
	// DefaultConnectTimeout bounds a single dial attempt.
	DefaultConnectTimeout = 30 * time.Second

	// MinPort and MaxPort bound valid gateway ports.
	MinPort = 1
	MaxPort = 65535
)

// Transport errors.
var (
	ErrMissingHost = errors.New("missing gateway host")
	ErrInvalidPort = errors.New("invalid gateway port")
)

// GatewayConfig describes the gateway endpoint for one connection attempt.
// It is immutable once handed to a session; a later connect may supply a
// new value (for example after the server issues new gateway coordinates).
type GatewayConfig struct {
	// Host is the gateway hostname or IP address.
	Host string

	// Port is the gateway TCP port (1-65535).
	Port int

	// UseTLS selects TLS-over-TCP instead of plain TCP.
	UseTLS bool
}

// Validate checks the gateway coordinates.
func (c GatewayConfig) Validate() error {
	if c.Host == "" {
		return ErrMissingHost
	}
	if c.Port < MinPort || c.Port > MaxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	return nil
}

// Address returns the host:port dial address.
func (c GatewayConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DialerConfig configures gateway dialing.
type DialerConfig struct {
	// ConnectTimeout bounds a dial attempt when the context has no
	// deadline of its own (default: 30s).
	ConnectTimeout time.Duration

	// TLSConfig overrides the TLS client configuration.
	// Nil selects a default configuration with the gateway host as
	// server name.
	TLSConfig *tls.Config
}

// DefaultDialerConfig returns the default dialer configuration.
func DefaultDialerConfig() DialerConfig {
	return DialerConfig{
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Dialer opens gateway sockets.
type Dialer struct {
	config DialerConfig
}

// NewDialer creates a dialer.
func NewDialer(config DialerConfig) *Dialer {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	return &Dialer{config: config}
}

// Dial opens a TCP connection to the gateway, wrapping it in TLS when the
// gateway coordinates require it. The returned conn is ready for framing.
func (d *Dialer) Dial(ctx context.Context, gw GatewayConfig) (net.Conn, error) {
	if err := gw.Validate(); err != nil {
		return nil, err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", gw.Address())
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	if !gw.UseTLS {
		return conn, nil
	}

	tlsConf := d.config.TLSConfig
	if tlsConf == nil {
		tlsConf = NewGatewayTLSConfig(gw.Host)
	}

	tlsConn := tls.Client(conn, tlsConf)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}

	return tlsConn, nil
}
