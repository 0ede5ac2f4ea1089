package registry_test

import (
	"net/netip"
	"testing"

	"github.com/oschub/chaosc/internal/registry"
	"github.com/oschub/chaosc/internal/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(ip string, port int) resolve.ResolvedAddress {
	return resolve.ResolvedAddress{IP: netip.MustParseAddr(ip), Port: port}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	r := registry.New()
	key := registry.ResolvedKey(addr("127.0.0.1", 9001))
	rec := registry.Record{Label: "visualizer", OriginalHost: "127.0.0.1", OriginalPort: 9001}

	require.NoError(t, r.Subscribe(key, rec))
	assert.Equal(t, 1, r.Len())

	got, err := r.Unsubscribe(key)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Equal(t, 0, r.Len())
}

func TestSubscribeDuplicate(t *testing.T) {
	r := registry.New()
	key := registry.ResolvedKey(addr("127.0.0.1", 9001))
	rec := registry.Record{}

	require.NoError(t, r.Subscribe(key, rec))
	err := r.Subscribe(key, rec)
	assert.ErrorIs(t, err, registry.ErrAlreadySubscribed)
	assert.Equal(t, 1, r.Len())
}

func TestUnsubscribeNotSubscribed(t *testing.T) {
	r := registry.New()
	_, err := r.Unsubscribe(registry.ResolvedKey(addr("127.0.0.1", 9001)))
	assert.ErrorIs(t, err, registry.ErrNotSubscribed)
}

func TestLiteralKeyFallback(t *testing.T) {
	r := registry.New()
	key := registry.LiteralKey("unresolvable.example", 9001)
	rec := registry.Record{OriginalHost: "unresolvable.example", OriginalPort: 9001}

	require.NoError(t, r.Subscribe(key, rec))
	assert.True(t, key.IsLiteral())
	_, ok := key.Resolved()
	assert.False(t, ok)
	assert.Equal(t, "unresolvable.example:9001", key.String())
}

func TestSnapshotSortedDeterministic(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Subscribe(registry.ResolvedKey(addr("10.0.0.2", 9001)), registry.Record{Label: "b"}))
	require.NoError(t, r.Subscribe(registry.ResolvedKey(addr("10.0.0.1", 9001)), registry.Record{Label: "a"}))

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].Record.Label)
	assert.Equal(t, "b", snap[1].Record.Label)
}
