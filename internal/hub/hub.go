// Package hub implements the forwarding engine: the single UDP receive loop
// that classifies each datagram as control-for-us or traffic-to-forward,
// then either dispatches it to the control handlers or fans it out verbatim
// to every current subscriber.
package hub

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/oschub/chaosc/internal/control"
	"github.com/oschub/chaosc/internal/registry"
	"github.com/oschub/chaosc/internal/resolve"
	"github.com/oschub/chaosc/osc"
)

// DefaultMaxPacketSize is the receive buffer size used when Config does not
// specify one: the configurable OSC datagram maximum the concurrency model
// calls out, defaulting to 16 MiB.
const DefaultMaxPacketSize = 16 << 20

// Config bundles the parameters Hub needs to bind its socket.
type Config struct {
	BindHost      string
	BindPort      int
	Mode          resolve.Mode
	MaxPacketSize int
}

// Hub owns the UDP socket and runs the single receive loop that is the only
// mutator of Registry (via Dispatcher) and the only reader of the paused
// flag on the forwarding path.
type Hub struct {
	conn          *net.UDPConn
	registry      *registry.Registry
	dispatcher    *control.Dispatcher
	logger        *log.Logger
	maxPacketSize int
}

// New binds the hub's UDP socket per cfg and returns a ready-to-run Hub.
func New(ctx context.Context, cfg Config, reg *registry.Registry, dispatcher *control.Dispatcher, logger *log.Logger) (*Hub, error) {
	host := resolve.FixupBindHost(cfg.BindHost, cfg.Mode)
	address := net.JoinHostPort(host, strconv.Itoa(cfg.BindPort))

	lc := net.ListenConfig{}
	if cfg.Mode == resolve.DualStack {
		lc.Control = clearV6Only
	}

	pc, err := lc.ListenPacket(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("hub: binding %s: %w", address, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("hub: unexpected packet conn type %T", pc)
	}

	size := cfg.MaxPacketSize
	if size <= 0 {
		size = DefaultMaxPacketSize
	}
	if err := conn.SetReadBuffer(size); err != nil {
		logger.Warn("could not size read buffer", "err", err)
	}
	if err := conn.SetWriteBuffer(size); err != nil {
		logger.Warn("could not size write buffer", "err", err)
	}

	return &Hub{
		conn:          conn,
		registry:      reg,
		dispatcher:    dispatcher,
		logger:        logger,
		maxPacketSize: size,
	}, nil
}

// LocalAddr returns the socket's bound address.
func (h *Hub) LocalAddr() net.Addr {
	return h.conn.LocalAddr()
}

// Close closes the hub's UDP socket, unblocking any pending Run.
func (h *Hub) Close() error {
	return h.conn.Close()
}

// Run blocks, serving datagrams until ctx is canceled or an unrecoverable
// socket error occurs. Cancellation closes the socket, which unblocks the
// pending ReadFromUDP — the Go-idiomatic replacement for a separate
// shutdown() entry point.
func (h *Hub) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			h.conn.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, h.maxPacketSize)
	for {
		n, src, err := h.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("hub: reading datagram: %w", err)
		}
		h.serveOne(ctx, buf[:n], src)
	}
}

// serveOne implements the per-datagram classification in §4.5: proxy-decode,
// and either forward verbatim (bundle or non-reserved address) or run the
// full decode and control dispatcher.
func (h *Hub) serveOne(ctx context.Context, data []byte, src *net.UDPAddr) {
	address, typetags, rest, err := osc.ProxyDecode(data)
	switch {
	case errors.Is(err, osc.ErrIsBundle):
		h.forward(data)
		return
	case err != nil:
		h.logger.Warn("dropping malformed datagram", "source", src, "err", err)
		return
	}

	if !control.IsReserved(address) {
		h.forward(data)
		return
	}

	args, err := osc.DecodeArguments(typetags, rest)
	if err != nil {
		h.logger.Warn("dropping malformed control datagram", "source", src, "address", address, "err", err)
		return
	}

	reply, err := h.dispatcher.Dispatch(ctx, address, args)
	if err != nil {
		h.logger.Warn("dropping malformed control request", "source", src, "address", address, "err", err)
		return
	}
	h.sendReply(reply, src)
}

// forward fans data out to every current subscriber, verbatim and
// unre-encoded, unless the hub is paused. Per-destination send errors are
// logged and do not abort the fanout.
func (h *Hub) forward(data []byte) {
	if h.registry.Paused() {
		return
	}
	for _, entry := range h.registry.Snapshot() {
		dst, err := udpAddrFor(entry.Key)
		if err != nil {
			h.logger.Warn("dropping forward to unreachable subscriber", "key", entry.Key, "err", err)
			continue
		}
		h.sendAll(data, dst)
	}
}

// sendReply encodes and sends a control reply to dst, logging and
// swallowing any failure — replies are always best-effort.
func (h *Hub) sendReply(pkt osc.Packet, dst *net.UDPAddr) {
	if pkt == nil {
		return
	}
	data, err := pkt.MarshalOSC()
	if err != nil {
		h.logger.Warn("encoding control reply failed", "dest", dst, "err", err)
		return
	}
	h.sendAll(data, dst)
}

// sendAll writes data to dst, looping to handle the theoretical case of a
// short UDP write. A send error is logged and the loop aborts for that
// destination only.
func (h *Hub) sendAll(data []byte, dst *net.UDPAddr) {
	for sent := 0; sent < len(data); {
		n, err := h.conn.WriteToUDP(data[sent:], dst)
		if err != nil {
			h.logger.Warn("send failed", "dest", dst, "err", err)
			return
		}
		sent += n
	}
}

// udpAddrFor turns a registry key into a concrete net.UDPAddr, resolving
// literal-fallback keys on demand. This is the rare path: a key only ends
// up literal when resolution failed at subscribe time.
func udpAddrFor(key registry.Key) (*net.UDPAddr, error) {
	if resolved, ok := key.Resolved(); ok {
		return &net.UDPAddr{IP: net.IP(resolved.IP.AsSlice()), Port: resolved.Port}, nil
	}
	return net.ResolveUDPAddr("udp", key.String())
}
