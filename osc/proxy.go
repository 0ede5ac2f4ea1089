package osc

import "strings"

// ProxyDecode is the fast path used by the forwarding engine's hot path: it
// extracts only the address and the raw type-tag bytes (without the leading
// ',') plus the residual slice pointing at the not-yet-decoded argument
// payload, without allocating per-argument. If the packet is a bundle it
// returns ErrIsBundle — a sentinel, not a real failure — so the caller can
// forward the datagram untouched without looking inside it.
func ProxyDecode(data []byte) (address string, typetags []byte, rest []byte, err error) {
	if len(data) == 0 {
		return "", nil, nil, ErrEmpty
	}

	addr, next, err := readString(data, 0)
	if err != nil {
		return "", nil, nil, ErrMalformed
	}

	var tags string
	haveTags := false
	if strings.HasPrefix(addr, ",") {
		tags = addr
		addr = ""
		haveTags = true
	}

	if addr == bundleTag {
		return "", nil, nil, ErrIsBundle
	}

	if !haveTags {
		tags, next, err = readString(data, next)
		if err != nil {
			return "", nil, nil, ErrMalformed
		}
	}
	if len(tags) == 0 || tags[0] != ',' {
		return "", nil, nil, ErrMalformed
	}

	return addr, []byte(tags[1:]), data[next:], nil
}

// DecodeArguments decodes the argument payload in rest according to
// typetags (as returned by ProxyDecode, without the leading ','). It is the
// second half of a full decode once the caller has already classified the
// datagram via ProxyDecode and decided it needs the arguments after all.
func DecodeArguments(typetags []byte, rest []byte) ([]any, error) {
	args := make([]any, 0, len(typetags))
	pos := 0
	for _, tag := range typetags {
		arg, next, err := decodeArgument(tag, rest, pos)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		pos = next
	}
	if pos != len(rest) {
		return nil, ErrMalformed
	}
	return args, nil
}
