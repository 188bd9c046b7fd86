// Package discovery finds development gateway simulators on the local
// network via mDNS. Production gateways are never discovered this way;
// their coordinates come from the registration API.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// mDNS service parameters for development gateways.
const (
	// ServiceType is the mDNS service type for gateway simulators.
	ServiceType = "_doopush-gw._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultBrowseTimeout bounds a Browse call without explicit timeout.
	DefaultBrowseTimeout = 3 * time.Second
)

// Gateway is a discovered development gateway.
type Gateway struct {
	// Instance is the advertised instance name.
	Instance string

	// Host is the advertised hostname.
	Host string

	// Addresses are the resolved IP addresses.
	Addresses []string

	// Port is the gateway TCP port.
	Port int

	// TLS reports whether the gateway expects TLS, from the TXT record.
	TLS bool
}

// Addr returns a dialable address, preferring a resolved IP over the
// mDNS hostname.
func (g *Gateway) Addr() string {
	host := g.Host
	if len(g.Addresses) > 0 {
		host = g.Addresses[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(g.Port))
}

// Advertiser announces one gateway simulator over mDNS.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser. Nothing is announced until
// Advertise is called.
func NewAdvertiser() *Advertiser {
	return &Advertiser{}
}

// Advertise announces a gateway instance on all interfaces. A previous
// announcement is replaced.
func (a *Advertiser) Advertise(instance string, port int, useTLS bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	txt := []string{"tls=" + strconv.FormatBool(useTLS)}
	server, err := zeroconf.Register(instance, ServiceType, Domain, port, txt, nil)
	if err != nil {
		return fmt.Errorf("failed to register gateway service: %w", err)
	}

	a.server = server
	return nil
}

// Stop withdraws the announcement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// Browse collects gateway simulators visible on the local network. It
// returns when the context expires or, lacking a context deadline, after
// DefaultBrowseTimeout. Entries from multiple interfaces are aggregated
// by instance name.
func Browse(ctx context.Context) ([]Gateway, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultBrowseTimeout)
		defer cancel()
	}

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	done := make(chan struct{})
	found := make(map[string]*Gateway)
	var order []string

	go func() {
		defer close(done)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				gw := entryToGateway(entry)
				if existing, seen := found[gw.Instance]; seen {
					existing.Addresses = append(existing.Addresses, gw.Addresses...)
					continue
				}
				found[gw.Instance] = gw
				order = append(order, gw.Instance)
			case entry, ok := <-removed:
				if !ok {
					return
				}
				_ = entry
			case <-ctx.Done():
				return
			}
		}
	}()

	err := zeroconf.Browse(ctx, ServiceType, Domain, entries, removed)
	<-done

	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("mdns browse failed: %w", err)
	}

	gateways := make([]Gateway, 0, len(order))
	for _, instance := range order {
		gateways = append(gateways, *found[instance])
	}
	return gateways, nil
}

// entryToGateway converts a zeroconf entry.
func entryToGateway(entry *zeroconf.ServiceEntry) *Gateway {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &Gateway{
		Instance:  entry.Instance,
		Host:      entry.HostName,
		Addresses: addrs,
		Port:      entry.Port,
		TLS:       hasTXTFlag(entry.Text, "tls=true"),
	}
}

// hasTXTFlag reports whether a TXT record is present.
func hasTXTFlag(txt []string, flag string) bool {
	for _, record := range txt {
		if record == flag {
			return true
		}
	}
	return false
}
