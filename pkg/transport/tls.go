package transport

import "crypto/tls"

// NewGatewayTLSConfig creates the TLS client configuration for a gateway
// connection. The gateway presents an ordinary server certificate; there
// is no client certificate.
func NewGatewayTLSConfig(serverName string) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}
}

// NewInsecureTLSConfig creates a TLS configuration that skips certificate
// verification. Only for development gateways with self-signed certs.
func NewInsecureTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: true,
	}
}
