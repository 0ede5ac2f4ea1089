package control_test

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oschub/chaosc/internal/control"
	"github.com/oschub/chaosc/internal/registry"
	"github.com/oschub/chaosc/internal/resolve"
	"github.com/oschub/chaosc/osc"
)

func newDispatcher(t *testing.T) *control.Dispatcher {
	t.Helper()
	return &control.Dispatcher{
		Secret:   "topsecret",
		Registry: registry.New(),
		Mode:     resolve.IPv4Only,
		Logger:   log.New(io.Discard),
	}
}

func TestSubscribeSuccess(t *testing.T) {
	d := newDispatcher(t)
	reply, err := d.Dispatch(context.Background(), control.AddrSubscribe,
		[]any{"127.0.0.1", int32(9001), "topsecret", "viz"})
	require.NoError(t, err)

	msg := reply.(*osc.Message)
	assert.Equal(t, "/OK", msg.Address)
	assert.Equal(t, []any{"subscribe", "127.0.0.1", int32(9001)}, msg.Arguments)
	assert.Equal(t, 1, d.Registry.Len())
}

func TestSubscribeNotAuthorized(t *testing.T) {
	d := newDispatcher(t)
	reply, err := d.Dispatch(context.Background(), control.AddrSubscribe,
		[]any{"127.0.0.1", int32(9001), "wrong"})
	require.NoError(t, err)

	msg := reply.(*osc.Message)
	assert.Equal(t, "/Failed", msg.Address)
	assert.Equal(t, []any{"subscribe", "not authorized", "127.0.0.1", int32(9001)}, msg.Arguments)
	assert.Equal(t, 0, d.Registry.Len())
}

func TestSubscribeAlreadySubscribed(t *testing.T) {
	d := newDispatcher(t)
	args := []any{"127.0.0.1", int32(9001), "topsecret"}
	_, err := d.Dispatch(context.Background(), control.AddrSubscribe, args)
	require.NoError(t, err)

	reply, err := d.Dispatch(context.Background(), control.AddrSubscribe, args)
	require.NoError(t, err)
	msg := reply.(*osc.Message)
	assert.Equal(t, "/Failed", msg.Address)
	assert.Equal(t, []any{"subscribe", "already subscribed", "127.0.0.1", int32(9001)}, msg.Arguments)
}

func TestUnsubscribeSuccess(t *testing.T) {
	d := newDispatcher(t)
	subArgs := []any{"127.0.0.1", int32(9001), "topsecret"}
	_, err := d.Dispatch(context.Background(), control.AddrSubscribe, subArgs)
	require.NoError(t, err)

	reply, err := d.Dispatch(context.Background(), control.AddrUnsubscribe, subArgs)
	require.NoError(t, err)
	msg := reply.(*osc.Message)
	assert.Equal(t, "/OK", msg.Address)
	assert.Equal(t, []any{"unsubscribe", "127.0.0.1", int32(9001)}, msg.Arguments)
	assert.Equal(t, 0, d.Registry.Len())
}

func TestUnsubscribeNotSubscribed(t *testing.T) {
	d := newDispatcher(t)
	reply, err := d.Dispatch(context.Background(), control.AddrUnsubscribe,
		[]any{"127.0.0.1", int32(9001), "topsecret"})
	require.NoError(t, err)
	msg := reply.(*osc.Message)
	assert.Equal(t, "/Failed", msg.Address)
	assert.Equal(t, []any{"unsubscribe", "not subscribed", "127.0.0.1", int32(9001)}, msg.Arguments)
}

func TestListBuildsBundle(t *testing.T) {
	d := newDispatcher(t)
	_, err := d.Dispatch(context.Background(), control.AddrSubscribe,
		[]any{"127.0.0.1", int32(9001), "topsecret", "viz"})
	require.NoError(t, err)

	reply, err := d.Dispatch(context.Background(), control.AddrList, nil)
	require.NoError(t, err)

	bundle := reply.(*osc.Bundle)
	require.Len(t, bundle.Elements, 1)
	msg := bundle.Elements[0].(*osc.Message)
	assert.Equal(t, "/li", msg.Address)
	assert.Equal(t, []any{"127.0.0.1", int32(9001), "viz"}, msg.Arguments)
}

func TestPauseToggle(t *testing.T) {
	d := newDispatcher(t)
	reply, err := d.Dispatch(context.Background(), control.AddrPause, []any{int32(1)})
	require.NoError(t, err)

	msg := reply.(*osc.Message)
	assert.Equal(t, "/OK", msg.Address)
	assert.Equal(t, []any{"pause", int32(1)}, msg.Arguments)
	assert.True(t, d.Registry.Paused())

	reply, err = d.Dispatch(context.Background(), control.AddrPause, []any{int32(0)})
	require.NoError(t, err)
	msg = reply.(*osc.Message)
	assert.Equal(t, []any{"pause", int32(0)}, msg.Arguments)
	assert.False(t, d.Registry.Paused())
}

func TestSaveNotAuthorized(t *testing.T) {
	d := newDispatcher(t)
	reply, err := d.Dispatch(context.Background(), control.AddrSave, []any{"wrong"})
	require.NoError(t, err)
	msg := reply.(*osc.Message)
	assert.Equal(t, "/Failed", msg.Address)
	assert.Equal(t, []any{"/save", "not authorized"}, msg.Arguments)
}

func TestSaveSuccess(t *testing.T) {
	d := newDispatcher(t)
	d.SavePath = t.TempDir() + "/targets.conf"

	reply, err := d.Dispatch(context.Background(), control.AddrSave, []any{"topsecret"})
	require.NoError(t, err)
	msg := reply.(*osc.Message)
	assert.Equal(t, "/OK", msg.Address)
	assert.Equal(t, []any{"/save", d.SavePath}, msg.Arguments)
}

func TestMalformedArgsDoNotPanic(t *testing.T) {
	d := newDispatcher(t)
	_, err := d.Dispatch(context.Background(), control.AddrSubscribe, []any{"only-one-arg"})
	assert.ErrorIs(t, err, control.ErrMalformedRequest)

	_, err = d.Dispatch(context.Background(), control.AddrPause, []any{"not-an-int"})
	assert.ErrorIs(t, err, control.ErrMalformedRequest)
}
