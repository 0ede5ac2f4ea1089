package osc_test

import (
	"testing"

	"github.com/oschub/chaosc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyDecodeMessage(t *testing.T) {
	m := osc.NewMessage("/subscribe", "secret", int32(9001))
	data, err := m.MarshalOSC()
	require.NoError(t, err)

	addr, tags, rest, err := osc.ProxyDecode(data)
	require.NoError(t, err)
	assert.Equal(t, "/subscribe", addr)
	assert.Equal(t, []byte("si"), tags)

	args, err := osc.DecodeArguments(tags, rest)
	require.NoError(t, err)
	assert.Equal(t, m.Arguments, args)
}

func TestProxyDecodeBundle(t *testing.T) {
	b := osc.NewBundle(osc.Immediate())
	b.Append(osc.NewMessage("/foo"))
	data, err := b.MarshalOSC()
	require.NoError(t, err)

	_, _, _, err = osc.ProxyDecode(data)
	assert.ErrorIs(t, err, osc.ErrIsBundle)
}

func TestProxyDecodeEmpty(t *testing.T) {
	_, _, _, err := osc.ProxyDecode(nil)
	assert.ErrorIs(t, err, osc.ErrEmpty)
}

func TestProxyDecodeMatchesFullDecode(t *testing.T) {
	m := osc.NewMessage("/list", "topsecret")
	data, err := m.MarshalOSC()
	require.NoError(t, err)

	addr, tags, rest, err := osc.ProxyDecode(data)
	require.NoError(t, err)

	args, err := osc.DecodeArguments(tags, rest)
	require.NoError(t, err)

	full, err := osc.Decode(data)
	require.NoError(t, err)
	fullMsg := full.(*osc.Message)

	assert.Equal(t, fullMsg.Address, addr)
	assert.Equal(t, fullMsg.Arguments, args)
}
