package osc

import (
	"bytes"
	"fmt"
	"math"
	"strings"
)

// reservedAddressChars are the characters §3 forbids in an OSC address.
const reservedAddressChars = "*?,[]{}# "

// Message is a single OSC message: an address and an ordered list of
// arguments. len(Arguments) always matches the number of tags after the
// leading ',' in the string TypeTags() would report; the type tag at
// position i is derived
// from the Go type of Arguments[i].
type Message struct {
	Address   string
	Arguments []any
}

var _ Packet = (*Message)(nil)

func (*Message) isPacket() {}

// NewMessage returns a new Message with the given address and arguments.
func NewMessage(address string, args ...any) *Message {
	return &Message{Address: address, Arguments: args}
}

// ValidAddress reports whether address is a syntactically valid OSC address:
// non-empty, starting with '/', and free of the characters §3 reserves for
// pattern matching.
func ValidAddress(address string) bool {
	if address == "" || address[0] != '/' {
		return false
	}
	return !strings.ContainsAny(address, reservedAddressChars)
}

// Append appends arguments to the message.
func (m *Message) Append(args ...any) {
	m.Arguments = append(m.Arguments, args...)
}

// AppendInt32 appends a 32-bit integer argument ('i').
func (m *Message) AppendInt32(v int32) { m.Append(v) }

// AppendFloat32 appends a 32-bit float argument ('f').
func (m *Message) AppendFloat32(v float32) { m.Append(v) }

// AppendInt64 appends a 64-bit integer argument ('h').
func (m *Message) AppendInt64(v int64) { m.Append(v) }

// AppendFloat64 appends a 64-bit float argument ('d').
func (m *Message) AppendFloat64(v float64) { m.Append(v) }

// AppendString appends a string argument ('s').
func (m *Message) AppendString(v string) { m.Append(v) }

// AppendBlob appends a blob argument ('b').
func (m *Message) AppendBlob(v []byte) { m.Append(v) }

// AppendTimetag appends a time-tag argument ('t').
func (m *Message) AppendTimetag(v Timetag) { m.Append(v) }

// AppendBool appends a boolean argument ('T' or 'F'). Booleans are not part
// of the reserved control-address contract but are accepted on decode and
// may be used by traffic-generating tools.
func (m *Message) AppendBool(v bool) { m.Append(v) }

// AppendNil appends a nil argument ('N').
func (m *Message) AppendNil() { m.Append(nil) }

// CountArguments returns the number of arguments in the message.
func (m *Message) CountArguments() int {
	return len(m.Arguments)
}

// TypeTags returns the type-tag string for the message, including the
// leading ','.
func (m *Message) TypeTags() (string, error) {
	var b strings.Builder
	b.WriteByte(',')
	for _, arg := range m.Arguments {
		tag, err := typeTag(arg)
		if err != nil {
			return "", err
		}
		b.WriteByte(tag)
	}
	return b.String(), nil
}

// String implements fmt.Stringer, formatting the message roughly as
// "/address ,tags arg1 arg2 ...".
func (m *Message) String() string {
	tags, err := m.TypeTags()
	if err != nil {
		return m.Address
	}
	parts := make([]string, 0, len(m.Arguments)+2)
	parts = append(parts, m.Address, tags)
	for _, arg := range m.Arguments {
		switch v := arg.(type) {
		case nil:
			parts = append(parts, "Nil")
		case []byte:
			parts = append(parts, fmt.Sprintf("blob(%d)", len(v)))
		case Timetag:
			parts = append(parts, fmt.Sprintf("%d", v.Seconds))
		default:
			parts = append(parts, fmt.Sprintf("%v", v))
		}
	}
	return strings.Join(parts, " ")
}

// typeTag returns the OSC type tag byte for the Go value of arg.
func typeTag(arg any) (byte, error) {
	switch v := arg.(type) {
	case nil:
		return 'N', nil
	case bool:
		if v {
			return 'T', nil
		}
		return 'F', nil
	case int32:
		return 'i', nil
	case float32:
		return 'f', nil
	case int64:
		return 'h', nil
	case float64:
		return 'd', nil
	case string:
		return 's', nil
	case []byte:
		return 'b', nil
	case Timetag:
		return 't', nil
	default:
		return 0, fmt.Errorf("osc: unsupported argument type %T", arg)
	}
}

// MarshalOSC encodes the message to its OSC wire form: the address, the
// type-tag string, and the argument payloads, each 4-byte aligned.
func (m *Message) MarshalOSC() ([]byte, error) {
	out := new(bytes.Buffer)
	writeString(out, m.Address)

	tags, err := m.TypeTags()
	if err != nil {
		return nil, err
	}

	payload := new(bytes.Buffer)
	for _, arg := range m.Arguments {
		if err := writeArgument(payload, arg); err != nil {
			return nil, err
		}
	}

	writeString(out, tags)
	out.Write(payload.Bytes())
	return out.Bytes(), nil
}

// writeString appends s to buf as a zero-padded OSC string.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.Write(make([]byte, padBytesNeeded(len(s))))
}

// writeBlob appends data to buf as a length-prefixed OSC blob. The length
// field stores the padded length, not the logical length of data — see
// DESIGN.md and spec §4.1/§9 for why this quirk is preserved on purpose.
func writeBlob(buf *bytes.Buffer, data []byte) {
	padded := blobPaddedLen(len(data))
	var lenField [4]byte
	be.PutUint32(lenField[:], uint32(padded))
	buf.Write(lenField[:])
	buf.Write(data)
	buf.Write(make([]byte, padded-len(data)))
}

// writeArgument appends the wire payload for a single argument to buf. Bool
// and nil arguments carry no payload; their value is encoded entirely in
// the type tag.
func writeArgument(buf *bytes.Buffer, arg any) error {
	switch v := arg.(type) {
	case nil, bool:
		return nil
	case int32:
		var b [4]byte
		be.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	case float32:
		var b [4]byte
		be.PutUint32(b[:], math.Float32bits(v))
		buf.Write(b[:])
	case int64:
		var b [8]byte
		be.PutUint64(b[:], uint64(v))
		buf.Write(b[:])
	case float64:
		var b [8]byte
		be.PutUint64(b[:], math.Float64bits(v))
		buf.Write(b[:])
	case string:
		writeString(buf, v)
	case []byte:
		writeBlob(buf, v)
	case Timetag:
		buf.Write(v.Bytes())
	default:
		return fmt.Errorf("osc: unsupported argument type %T", arg)
	}
	return nil
}
