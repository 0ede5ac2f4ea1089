// Package resolve wraps the OS resolver for the hub's two address-family
// modes, mirroring chaosc's lib.resolve_host/fix_host.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// Mode selects the address family the hub resolves and binds to.
type Mode int

const (
	// IPv4Only requests AF_INET resolution only.
	IPv4Only Mode = iota
	// DualStack requests AF_INET6 resolution with v4-mapped addresses
	// included, matching the original's AI_V4MAPPED|AI_ALL flags.
	DualStack
)

// ResolvedAddress is a concrete, resolved socket address. It is comparable,
// so it can be used directly as a registry.Key field.
type ResolvedAddress struct {
	IP   netip.Addr
	Port int
}

// String renders the address as "host:port".
func (r ResolvedAddress) String() string {
	return net.JoinHostPort(r.IP.String(), fmt.Sprint(r.Port))
}

// ErrResolutionFailed wraps any failure from the underlying OS resolver.
var ErrResolutionFailed = errors.New("resolve: host resolution failed")

// Resolve resolves host:port to a ResolvedAddress under the given Mode. In
// IPv4Only mode only A records are considered; in DualStack mode both A and
// AAAA records are considered and IPv4 results are returned v4-mapped,
// matching the original's AI_V4MAPPED|AI_ALL flags. When the resolver
// returns more than one matching address the last one is kept, matching the
// legacy getaddrinfo()[-1] behavior.
func Resolve(ctx context.Context, host string, port int, mode Mode) (ResolvedAddress, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, hostOrUnspecified(host, mode))
	if err != nil {
		return ResolvedAddress{}, fmt.Errorf("%w: %s: %w", ErrResolutionFailed, host, err)
	}

	var chosen netip.Addr
	for _, a := range addrs {
		addr, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()

		if mode == IPv4Only {
			if !addr.Is4() {
				continue
			}
			chosen = addr
			continue
		}
		if addr.Is4() {
			addr = netip.AddrFrom16(addr.As16()) // v4-mapped form, AI_V4MAPPED
		}
		chosen = addr
	}
	if !chosen.IsValid() {
		return ResolvedAddress{}, fmt.Errorf("%w: %s: no usable address for mode", ErrResolutionFailed, host)
	}
	return ResolvedAddress{IP: chosen, Port: port}, nil
}

// hostOrUnspecified maps the empty host to the appropriate unspecified
// address literal so LookupIPAddr always has a concrete name to resolve.
func hostOrUnspecified(host string, mode Mode) string {
	if host != "" {
		return host
	}
	if mode == IPv4Only {
		return "0.0.0.0"
	}
	return "::"
}

// FixupBindHost rewrites "::" or "::1" to their IPv4 equivalents when mode is
// IPv4Only, so a dual-stack config value can still be used to bind an
// IPv4-only socket.
func FixupBindHost(host string, mode Mode) string {
	if mode != IPv4Only {
		return host
	}
	switch host {
	case "::":
		return "0.0.0.0"
	case "::1":
		return "127.0.0.1"
	default:
		return host
	}
}
