package osc

import (
	"bytes"
	"math"
	"strings"
)

// Decode performs a full decode of an OSC packet, returning either a
// *Message or a *Bundle. It requires the entire input to be consumed by
// exactly one packet; any truncation or trailing garbage is ErrMalformed.
func Decode(data []byte) (Packet, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	return decodePacket(data)
}

// decodePacket decodes exactly one packet from data, which must contain no
// bytes beyond that packet.
func decodePacket(data []byte) (Packet, error) {
	addr, rest, err := readString(data, 0)
	if err != nil {
		return nil, ErrMalformed
	}

	var typetags string
	haveTypetags := false
	if strings.HasPrefix(addr, ",") {
		typetags = addr
		addr = ""
		haveTypetags = true
	}

	if addr == bundleTag {
		return decodeBundleBody(data, rest)
	}

	if !haveTypetags {
		typetags, rest, err = readString(data, rest)
		if err != nil {
			return nil, ErrMalformed
		}
	}
	if len(typetags) == 0 || typetags[0] != ',' {
		return nil, ErrMalformed
	}

	msg := &Message{Address: addr}
	for _, tag := range []byte(typetags[1:]) {
		arg, next, err := decodeArgument(tag, data, rest)
		if err != nil {
			return nil, err
		}
		msg.Arguments = append(msg.Arguments, arg)
		rest = next
	}
	if rest != len(data) {
		return nil, ErrMalformed
	}
	return msg, nil
}

// decodeBundleBody decodes a bundle's time tag and children, given that
// data[:start] was already consumed reading the "#bundle" string.
func decodeBundleBody(data []byte, start int) (*Bundle, error) {
	if len(data)-start < 8 {
		return nil, ErrMalformed
	}
	tt, err := decodeTimetag(data[start : start+8])
	if err != nil {
		return nil, err
	}
	bun := NewBundle(tt)

	rest := start + 8
	for rest < len(data) {
		if len(data)-rest < 4 {
			return nil, ErrMalformed
		}
		length := int(int32(be.Uint32(data[rest : rest+4])))
		rest += 4
		if length < 0 || rest+length > len(data) {
			return nil, ErrMalformed
		}
		child, err := decodePacket(data[rest : rest+length])
		if err != nil {
			return nil, err
		}
		bun.Append(child)
		rest += length
	}
	if rest != len(data) {
		return nil, ErrMalformed
	}
	return bun, nil
}

// readString reads a zero-terminated, zero-padded OSC string starting at
// data[start], returning the string and the offset of the next field.
func readString(data []byte, start int) (string, int, error) {
	if start > len(data) {
		return "", 0, ErrMalformed
	}
	idx := bytes.IndexByte(data[start:], 0)
	if idx < 0 {
		return "", 0, ErrMalformed
	}
	s := string(data[start : start+idx])
	total := len(s) + padBytesNeeded(len(s))
	if start+total > len(data) {
		return "", 0, ErrMalformed
	}
	return s, start + total, nil
}

// readBlob reads a length-prefixed OSC blob starting at data[start]. The
// length field stores the padded length (see writeBlob); the returned bytes
// are exactly that many bytes, including any trailing pad baked in by the
// encoder.
func readBlob(data []byte, start int) ([]byte, int, error) {
	if len(data)-start < 4 {
		return nil, 0, ErrMalformed
	}
	length := int(int32(be.Uint32(data[start : start+4])))
	if length < 0 || start+4+length > len(data) {
		return nil, 0, ErrMalformed
	}
	blob := make([]byte, length)
	copy(blob, data[start+4:start+4+length])
	return blob, start + 4 + length, nil
}

// decodeArgument decodes a single argument of the given type tag starting
// at data[start].
func decodeArgument(tag byte, data []byte, start int) (any, int, error) {
	switch tag {
	case 'i':
		if len(data)-start < 4 {
			return nil, 0, ErrMalformed
		}
		return int32(be.Uint32(data[start : start+4])), start + 4, nil
	case 'f':
		if len(data)-start < 4 {
			return nil, 0, ErrMalformed
		}
		return math.Float32frombits(be.Uint32(data[start : start+4])), start + 4, nil
	case 'h':
		if len(data)-start < 8 {
			return nil, 0, ErrMalformed
		}
		return int64(be.Uint64(data[start : start+8])), start + 8, nil
	case 'd':
		if len(data)-start < 8 {
			return nil, 0, ErrMalformed
		}
		return math.Float64frombits(be.Uint64(data[start : start+8])), start + 8, nil
	case 's':
		s, next, err := readString(data, start)
		if err != nil {
			return nil, 0, err
		}
		return s, next, nil
	case 'b':
		blob, next, err := readBlob(data, start)
		if err != nil {
			return nil, 0, err
		}
		return blob, next, nil
	case 't':
		if len(data)-start < 8 {
			return nil, 0, ErrMalformed
		}
		tt, err := decodeTimetag(data[start : start+8])
		if err != nil {
			return nil, 0, err
		}
		return tt, start + 8, nil
	case 'T':
		return true, start, nil
	case 'F':
		return false, start, nil
	case 'N':
		return nil, start, nil
	default:
		return nil, 0, &UnknownTagError{Tag: tag}
	}
}
