package osc_test

import (
	"testing"

	"github.com/oschub/chaosc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleRoundTrip(t *testing.T) {
	b := osc.NewBundle(osc.Immediate())
	b.Append(osc.NewMessage("/foo", int32(1)))
	b.Append(osc.NewMessage("/bar", "hi"))

	data, err := b.MarshalOSC()
	require.NoError(t, err)

	got, err := osc.Decode(data)
	require.NoError(t, err)

	decoded, ok := got.(*osc.Bundle)
	require.True(t, ok)
	require.Len(t, decoded.Elements, 2)

	m0, ok := decoded.Elements[0].(*osc.Message)
	require.True(t, ok)
	assert.Equal(t, "/foo", m0.Address)
	assert.Equal(t, []any{int32(1)}, m0.Arguments)

	m1, ok := decoded.Elements[1].(*osc.Message)
	require.True(t, ok)
	assert.Equal(t, "/bar", m1.Address)
	assert.Equal(t, []any{"hi"}, m1.Arguments)
}

func TestBundleNested(t *testing.T) {
	inner := osc.NewBundle(osc.Immediate())
	inner.Append(osc.NewMessage("/inner", int32(7)))

	outer := osc.NewBundle(osc.Immediate())
	outer.Append(inner)
	outer.Append(osc.NewMessage("/outer"))

	data, err := outer.MarshalOSC()
	require.NoError(t, err)

	got, err := osc.Decode(data)
	require.NoError(t, err)

	decoded := got.(*osc.Bundle)
	require.Len(t, decoded.Elements, 2)

	nested, ok := decoded.Elements[0].(*osc.Bundle)
	require.True(t, ok)
	require.Len(t, nested.Elements, 1)
	assert.Equal(t, "/inner", nested.Elements[0].(*osc.Message).Address)
}

func TestBundleEmpty(t *testing.T) {
	b := osc.NewBundle(osc.Immediate())
	data, err := b.MarshalOSC()
	require.NoError(t, err)

	got, err := osc.Decode(data)
	require.NoError(t, err)
	decoded := got.(*osc.Bundle)
	assert.Empty(t, decoded.Elements)
}
