package osc_test

import (
	"math/rand"
	"testing"

	"github.com/oschub/chaosc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReferenceMessageEncoding pins the encoder to the exact wire bytes for
// the reference message: address "/my/osc/address" with arguments
// ("something else", "entirely", int32(1), float32(6)).
func TestReferenceMessageEncoding(t *testing.T) {
	want := []byte(
		"/my/osc/address\x00" +
			",ssif\x00\x00\x00" +
			"something else\x00\x00" +
			"entirely\x00\x00\x00\x00" +
			"\x00\x00\x00\x01" +
			"\x40\xc0\x00\x00",
	)

	m := osc.NewMessage("/my/osc/address", "something else", "entirely", int32(1), float32(6))
	got, err := m.MarshalOSC()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	decoded, err := osc.Decode(want)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestDecodeEmpty(t *testing.T) {
	_, err := osc.Decode(nil)
	assert.ErrorIs(t, err, osc.ErrEmpty)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := osc.Decode([]byte("/foo\x00\x00\x00\x00,i\x00\x00"))
	assert.ErrorIs(t, err, osc.ErrMalformed)
}

func TestDecodeMissingTypeTagComma(t *testing.T) {
	_, err := osc.Decode([]byte("/foo\x00\x00\x00\x00bogus\x00\x00\x00"))
	assert.ErrorIs(t, err, osc.ErrMalformed)
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := osc.Decode([]byte("/foo\x00\x00\x00\x00,z\x00\x00"))
	var tagErr *osc.UnknownTagError
	assert.ErrorAs(t, err, &tagErr)
	assert.Equal(t, byte('z'), tagErr.Tag)
}

func TestDecodeTrailingGarbage(t *testing.T) {
	msg := osc.NewMessage("/foo", int32(1))
	data, err := msg.MarshalOSC()
	require.NoError(t, err)
	data = append(data, 0xff, 0xff, 0xff, 0xff)

	_, err = osc.Decode(data)
	assert.ErrorIs(t, err, osc.ErrMalformed)
}

// TestRoundTripFuzz generates random messages over the supported argument
// types and checks that encode followed by decode reproduces them. Blobs come
// back zero-padded to a multiple of 4 bytes, because the blob length field
// holds the padded length, and a message without arguments comes back with
// nil Arguments; decodedForm builds the expected message accordingly.
func TestRoundTripFuzz(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	generators := []func() any{
		func() any { return r.Int31() },
		func() any { return r.Float32() * 1000 },
		func() any { return int64(r.Int63()) },
		func() any { return r.Float64() * 1000 },
		func() any { return randString(r, 12) },
		func() any { return randBlob(r, 9) },
		func() any { return osc.FromUnixSeconds(float64(r.Int63n(2_000_000_000))) },
		func() any { return r.Intn(2) == 0 },
		func() any { return nil },
	}

	for i := 0; i < 200; i++ {
		n := r.Intn(6)
		args := make([]any, n)
		for j := range args {
			args[j] = generators[r.Intn(len(generators))]()
		}
		m := osc.NewMessage("/fuzz/test", args...)

		data, err := m.MarshalOSC()
		require.NoError(t, err)
		require.Zero(t, len(data)%4)

		got, err := osc.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, osc.NewMessage("/fuzz/test", decodedForm(args)...), got)
	}
}

func randString(r *rand.Rand, maxLen int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "
	n := r.Intn(maxLen)
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(b)
}

func randBlob(r *rand.Rand, maxLen int) []byte {
	n := r.Intn(maxLen)
	b := make([]byte, n)
	r.Read(b)
	return b
}

// decodedForm returns args as Decode reproduces them: each blob zero-padded
// to a multiple of 4 bytes, and nil in place of an empty list.
func decodedForm(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		if b, ok := a.([]byte); ok {
			padded := make([]byte, (len(b)+3)/4*4)
			copy(padded, b)
			a = padded
		}
		out[i] = a
	}
	return out
}
