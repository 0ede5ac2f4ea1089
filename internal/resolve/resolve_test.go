package resolve_test

import (
	"context"
	"testing"

	"github.com/oschub/chaosc/internal/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIPv4Only(t *testing.T) {
	addr, err := resolve.Resolve(context.Background(), "127.0.0.1", 9001, resolve.IPv4Only)
	require.NoError(t, err)
	assert.True(t, addr.IP.Is4())
	assert.Equal(t, 9001, addr.Port)
	assert.Equal(t, "127.0.0.1:9001", addr.String())
}

func TestResolveDualStack(t *testing.T) {
	addr, err := resolve.Resolve(context.Background(), "localhost", 9002, resolve.DualStack)
	require.NoError(t, err)
	assert.True(t, addr.IP.IsValid())
	assert.Equal(t, 9002, addr.Port)
}

func TestResolveUnresolvable(t *testing.T) {
	_, err := resolve.Resolve(context.Background(), "this-host-does-not-resolve.invalid", 9001, resolve.IPv4Only)
	assert.ErrorIs(t, err, resolve.ErrResolutionFailed)
}

func TestFixupBindHost(t *testing.T) {
	assert.Equal(t, "0.0.0.0", resolve.FixupBindHost("::", resolve.IPv4Only))
	assert.Equal(t, "127.0.0.1", resolve.FixupBindHost("::1", resolve.IPv4Only))
	assert.Equal(t, "example.com", resolve.FixupBindHost("example.com", resolve.IPv4Only))
	assert.Equal(t, "::", resolve.FixupBindHost("::", resolve.DualStack))
}
