// Package control implements the hub's reserved-address state machine:
// authenticated subscribe/unsubscribe/list/save/pause handlers, one method
// per address, grounded line-for-line on chaosc.py's
// __subscription_handler, __unsubscription_handler, __list_handler,
// __save_subscriptions_handler, __toggle_pause_hander, and __authorize.
package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/oschub/chaosc/internal/persist"
	"github.com/oschub/chaosc/internal/registry"
	"github.com/oschub/chaosc/internal/resolve"
	"github.com/oschub/chaosc/osc"
)

// Fixed failure reasons, verbatim per the reserved-address contract table.
const (
	reasonNotAuthorized     = "not authorized"
	reasonAlreadySubscribed = "already subscribed"
	reasonNotSubscribed     = "not subscribed"
	reasonCouldNotSave      = "could not save to file"
)

// Reserved addresses the dispatcher handles directly; anything else is
// forwarding traffic.
const (
	AddrSubscribe   = "/subscribe"
	AddrUnsubscribe = "/unsubscribe"
	AddrList        = "/list"
	AddrSave        = "/save"
	AddrPause       = "/pause"
)

// Reply operation names. These deliberately differ from the address
// constants above: /subscribe, /unsubscribe, and /pause replies name the
// operation without its leading slash, while /save's reply names it with
// the slash — both forms straight from the contract table.
const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
	opPause       = "pause"
)

// ErrNotAuthorized is returned internally when a request's token does not
// match the configured shared secret. It never escapes Dispatch; it only
// shapes which reply is built.
var ErrNotAuthorized = errors.New("control: not authorized")

// ErrMalformedRequest is returned when a reserved-address request does not
// carry the argument shapes the contract table requires. The caller should
// log and drop; the contract table defines no reply for this case.
var ErrMalformedRequest = errors.New("control: malformed request")

// SavePathFunc returns the path Dispatcher should persist the registry to
// when /save has no explicit path configured.
type SavePathFunc func() (string, error)

// Dispatcher implements one handler per reserved address. It shares the
// Registry's mutex for the paused flag, so callers never need a separate
// lock.
type Dispatcher struct {
	Secret      string
	Registry    *registry.Registry
	Mode        resolve.Mode
	SavePath    string
	DefaultPath SavePathFunc
	Logger      *log.Logger
}

// IsReserved reports whether address is one of the five reserved control
// addresses this dispatcher handles.
func IsReserved(address string) bool {
	switch address {
	case AddrSubscribe, AddrUnsubscribe, AddrList, AddrSave, AddrPause:
		return true
	default:
		return false
	}
}

// Dispatch invokes the handler for address and returns the reply packet to
// send back to the requester's source address, or nil if no reply should be
// sent (currently never the case for a reserved address — every path
// replies, matching the contract table). ErrMalformedRequest is returned,
// not a reply, when the arguments do not match the address's expected
// shape; the forwarding engine logs and drops in that case.
func (d *Dispatcher) Dispatch(ctx context.Context, address string, args []any) (osc.Packet, error) {
	switch address {
	case AddrSubscribe:
		return d.handleSubscribe(ctx, args)
	case AddrUnsubscribe:
		return d.handleUnsubscribe(ctx, args)
	case AddrList:
		return d.handleList(), nil
	case AddrSave:
		return d.handleSave(args)
	case AddrPause:
		return d.handlePause(args)
	default:
		return nil, fmt.Errorf("control: %s is not a reserved address", address)
	}
}

func (d *Dispatcher) authorize(token string) error {
	if token != d.Secret {
		return ErrNotAuthorized
	}
	return nil
}

// handleSubscribe implements /subscribe: s i s [s] (host, port, token,
// optional label).
func (d *Dispatcher) handleSubscribe(ctx context.Context, args []any) (osc.Packet, error) {
	if len(args) != 3 && len(args) != 4 {
		return nil, ErrMalformedRequest
	}
	host, ok1 := args[0].(string)
	port, ok2 := args[1].(int32)
	token, ok3 := args[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return nil, ErrMalformedRequest
	}

	if err := d.authorize(token); err != nil {
		d.Logger.Error("subscription failed", "host", host, "port", port, "reason", reasonNotAuthorized)
		return failed(opSubscribe, reasonNotAuthorized, host, port), nil
	}

	label := ""
	if len(args) == 4 {
		label, ok3 = args[3].(string)
		if !ok3 {
			return nil, ErrMalformedRequest
		}
	}

	key, err := resolveOrLiteral(ctx, d.Logger, host, int(port), d.Mode)
	if err != nil {
		return nil, err
	}

	rec := registry.Record{Label: label, OriginalHost: host, OriginalPort: int(port)}
	if err := d.Registry.Subscribe(key, rec); err != nil {
		d.Logger.Error("subscription failed", "host", host, "port", port, "reason", reasonAlreadySubscribed)
		return failed(opSubscribe, reasonAlreadySubscribed, host, port), nil
	}

	d.Logger.Info("subscribed", "host", host, "port", port, "label", label)
	return ok(opSubscribe, host, port), nil
}

// handleUnsubscribe implements /unsubscribe: s i s (host, port, token).
func (d *Dispatcher) handleUnsubscribe(ctx context.Context, args []any) (osc.Packet, error) {
	if len(args) != 3 {
		return nil, ErrMalformedRequest
	}
	host, ok1 := args[0].(string)
	port, ok2 := args[1].(int32)
	token, ok3 := args[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return nil, ErrMalformedRequest
	}

	if err := d.authorize(token); err != nil {
		d.Logger.Error("unsubscription failed", "host", host, "port", port, "reason", reasonNotAuthorized)
		return failed(opUnsubscribe, reasonNotAuthorized, host, port), nil
	}

	key, err := resolveOrLiteral(ctx, d.Logger, host, int(port), d.Mode)
	if err != nil {
		return nil, err
	}

	if _, err := d.Registry.Unsubscribe(key); err != nil {
		d.Logger.Error("unsubscription failed", "host", host, "port", port, "reason", reasonNotSubscribed)
		return failed(opUnsubscribe, reasonNotSubscribed, host, port), nil
	}

	d.Logger.Info("unsubscribed", "host", host, "port", port)
	return ok(opUnsubscribe, host, port), nil
}

// handleList implements /list: ignores its arguments and builds a bundle of
// "/li" messages, one per current subscriber.
func (d *Dispatcher) handleList() osc.Packet {
	bundle := osc.NewBundle(osc.Immediate())
	for _, entry := range d.Registry.Snapshot() {
		resolved, ok := entry.Key.Resolved()
		host := entry.Key.String()
		port := int32(entry.Record.OriginalPort)
		if ok {
			host = resolved.IP.String()
			port = int32(resolved.Port)
		}
		bundle.Append(osc.NewMessage("/li", host, port, entry.Record.Label))
	}
	return bundle
}

// handleSave implements /save: s (token).
func (d *Dispatcher) handleSave(args []any) (osc.Packet, error) {
	if len(args) != 1 {
		return nil, ErrMalformedRequest
	}
	token, ok := args[0].(string)
	if !ok {
		return nil, ErrMalformedRequest
	}

	if err := d.authorize(token); err != nil {
		d.Logger.Error("saving subscriptions failed", "reason", reasonNotAuthorized)
		return osc.NewMessage("/Failed", AddrSave, reasonNotAuthorized), nil
	}

	path := d.SavePath
	if path == "" && d.DefaultPath != nil {
		p, err := d.DefaultPath()
		if err != nil {
			d.Logger.Error("saving subscriptions failed", "reason", reasonCouldNotSave, "err", err)
			return osc.NewMessage("/Failed", AddrSave, reasonCouldNotSave), nil
		}
		path = p
	}

	if err := persist.Save(path, d.Registry.Snapshot()); err != nil {
		d.Logger.Error("saving subscriptions failed", "reason", reasonCouldNotSave, "err", err)
		return osc.NewMessage("/Failed", AddrSave, reasonCouldNotSave), nil
	}

	d.Logger.Info("saved subscriptions", "path", path)
	return osc.NewMessage("/OK", AddrSave, path), nil
}

// handlePause implements /pause: i (0 or nonzero). It always succeeds;
// there is no authentication requirement in the contract table.
func (d *Dispatcher) handlePause(args []any) (osc.Packet, error) {
	if len(args) != 1 {
		return nil, ErrMalformedRequest
	}
	v, ok := args[0].(int32)
	if !ok {
		return nil, ErrMalformedRequest
	}

	newValue := d.Registry.SetPaused(v != 0)
	d.Logger.Info("set pause", "paused", newValue)

	pauseInt := int32(0)
	if newValue {
		pauseInt = 1
	}
	return osc.NewMessage("/OK", opPause, pauseInt), nil
}

// resolveOrLiteral resolves host:port, falling back to a literal key when
// resolution fails, matching chaosc.py's __subscribe/__unsubscribe
// behavior of logging and proceeding with the unresolved hostname.
func resolveOrLiteral(ctx context.Context, logger *log.Logger, host string, port int, mode resolve.Mode) (registry.Key, error) {
	addr, err := resolve.Resolve(ctx, host, port, mode)
	if err != nil {
		logger.Info("host resolution failed, using literal key", "host", host, "port", port, "err", err)
		return registry.LiteralKey(host, port), nil
	}
	return registry.ResolvedKey(addr), nil
}

// ok builds the "/OK op host port" reply shape shared by /subscribe and
// /unsubscribe.
func ok(op, host string, port int32) *osc.Message {
	return osc.NewMessage("/OK", op, host, port)
}

// failed builds the "/Failed op reason host port" reply shape shared by
// /subscribe and /unsubscribe.
func failed(op, reason, host string, port int32) *osc.Message {
	return osc.NewMessage("/Failed", op, reason, host, port)
}
