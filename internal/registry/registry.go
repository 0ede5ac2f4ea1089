// Package registry holds the hub's authoritative subscriber set: a mapping
// from resolved socket address to subscriber record, mutated only by the
// control dispatcher. Grounded on chaosc.py's self.targets dict and its
// __subscribe/__unsubscribe methods.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/oschub/chaosc/internal/resolve"
)

// ErrAlreadySubscribed is returned by Subscribe when the resolved key is
// already present in the registry. The registry is left unmutated.
var ErrAlreadySubscribed = errors.New("registry: already subscribed")

// ErrNotSubscribed is returned by Unsubscribe when the resolved key (or its
// literal fallback) is not present in the registry.
var ErrNotSubscribed = errors.New("registry: not subscribed")

// Key identifies a registry entry. It is either a resolved socket address
// (the common case) or, when resolution failed at subscribe time, the
// literal (host, port) pair as given by the caller — the sum type the
// design calls out as Either<ResolvedAddress, (String, u16)>.
type Key struct {
	resolved   resolve.ResolvedAddress
	literalHost string
	literalPort int
	isLiteral   bool
}

// ResolvedKey builds a Key from a successfully resolved address.
func ResolvedKey(addr resolve.ResolvedAddress) Key {
	return Key{resolved: addr}
}

// LiteralKey builds a Key from an unresolved (host, port) pair, used as a
// fallback when the OS resolver could not resolve the subscriber's host.
func LiteralKey(host string, port int) Key {
	return Key{literalHost: host, literalPort: port, isLiteral: true}
}

// IsLiteral reports whether k was built from an unresolved host/port pair.
func (k Key) IsLiteral() bool { return k.isLiteral }

// Resolved returns the underlying resolved address and true, or the zero
// value and false if k is a literal key.
func (k Key) Resolved() (resolve.ResolvedAddress, bool) {
	if k.isLiteral {
		return resolve.ResolvedAddress{}, false
	}
	return k.resolved, true
}

// String renders the key as "host:port" regardless of which variant it is.
func (k Key) String() string {
	if k.isLiteral {
		return fmt.Sprintf("%s:%d", k.literalHost, k.literalPort)
	}
	return k.resolved.String()
}

// Record is a subscriber's metadata: its display label and the host/port it
// originally subscribed with (which may differ from the resolved key, e.g.
// a hostname vs. the address it resolved to).
type Record struct {
	Label        string
	OriginalHost string
	OriginalPort int
}

// Registry is the mutex-guarded subscriber set. It also carries the hub's
// paused flag: the concurrency model specifies a single mutex around both,
// since both are mutated from the same receive loop and read on the same
// hot path.
type Registry struct {
	mu     sync.Mutex
	byKey  map[Key]Record
	paused bool
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byKey: make(map[Key]Record)}
}

// Subscribe inserts a new subscriber under key. It fails with
// ErrAlreadySubscribed, leaving the registry unmutated, if key is already
// present.
func (r *Registry) Subscribe(key Key, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byKey[key]; ok {
		return ErrAlreadySubscribed
	}
	r.byKey[key] = rec
	return nil
}

// Unsubscribe removes and returns the subscriber under key. It fails with
// ErrNotSubscribed if key is not present.
func (r *Registry) Unsubscribe(key Key) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byKey[key]
	if !ok {
		return Record{}, ErrNotSubscribed
	}
	delete(r.byKey, key)
	return rec, nil
}

// Entry pairs a Key with its Record, as returned by Snapshot.
type Entry struct {
	Key    Key
	Record Record
}

// Snapshot returns every current subscription, sorted by the string form of
// its key so that /list replies and file saves are deterministic for a
// given registry state — a presentation nicety, not a semantic guarantee
// the wire format depends on.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.byKey))
	for k, rec := range r.byKey {
		entries = append(entries, Entry{Key: k, Record: rec})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.String() < entries[j].Key.String()
	})
	return entries
}

// Len returns the number of current subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}

// Paused reports whether forwarding of non-control traffic is currently
// suspended.
func (r *Registry) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// SetPaused sets the paused flag and returns its new value.
func (r *Registry) SetPaused(paused bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = paused
	return r.paused
}
