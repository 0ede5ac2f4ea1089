package osc

import (
	"errors"
	"fmt"
)

// ErrEmpty is returned when Decode or ProxyDecode is given zero-length input.
var ErrEmpty = errors.New("osc: empty packet")

// ErrMalformed is returned for a short read, a misaligned field, or a
// missing leading ',' on the type-tag string.
var ErrMalformed = errors.New("osc: malformed packet")

// ErrIsBundle is the sentinel ProxyDecode returns when the packet it was
// given is a bundle. It is not a real decode failure: the forwarding engine
// uses it as a cheap "not for us, forward verbatim" tag.
var ErrIsBundle = errors.New("osc: packet is a bundle")

// UnknownTagError reports a type tag the codec does not understand.
type UnknownTagError struct {
	Tag byte
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("osc: unknown type tag %q", e.Tag)
}

func (e *UnknownTagError) Is(target error) bool {
	_, ok := target.(*UnknownTagError)
	return ok
}
