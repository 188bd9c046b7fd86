package discovery

import (
	"net"
	"testing"

	"github.com/enbility/zeroconf/v3"
)

func TestGatewayAddr(t *testing.T) {
	tests := []struct {
		name    string
		gateway Gateway
		want    string
	}{
		{
			name:    "prefers resolved IP",
			gateway: Gateway{Host: "sim.local.", Addresses: []string{"192.168.1.10"}, Port: 9001},
			want:    "192.168.1.10:9001",
		},
		{
			name:    "falls back to hostname",
			gateway: Gateway{Host: "sim.local.", Port: 9001},
			want:    "sim.local.:9001",
		},
		{
			name:    "ipv6 address is bracketed",
			gateway: Gateway{Addresses: []string{"fe80::1"}, Port: 9001},
			want:    "[fe80::1]:9001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.gateway.Addr(); got != tt.want {
				t.Errorf("Addr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEntryToGateway(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		HostName: "devbox.local.",
		Port:     9001,
		Text:     []string{"tls=true"},
		AddrIPv4: []net.IP{net.ParseIP("192.168.1.10")},
		AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
	}
	entry.Instance = "sim-1"

	gw := entryToGateway(entry)
	if gw.Instance != "sim-1" {
		t.Errorf("Instance = %q, want sim-1", gw.Instance)
	}
	if gw.Host != "devbox.local." {
		t.Errorf("Host = %q, want devbox.local.", gw.Host)
	}
	if len(gw.Addresses) != 2 {
		t.Errorf("Addresses = %v, want 2 entries", gw.Addresses)
	}
	if !gw.TLS {
		t.Error("TLS flag not decoded from TXT record")
	}
}

func TestHasTXTFlag(t *testing.T) {
	if hasTXTFlag([]string{"tls=false"}, "tls=true") {
		t.Error("tls=false must not match tls=true")
	}
	if !hasTXTFlag([]string{"x=1", "tls=true"}, "tls=true") {
		t.Error("flag not found")
	}
	if hasTXTFlag(nil, "tls=true") {
		t.Error("empty TXT must not match")
	}
}
