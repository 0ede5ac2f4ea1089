// Package osc implements a bit-exact encoder/decoder for OSC 1.1 messages and
// bundles: type-tagged argument payloads, 64-bit NTP time tags, and a
// fast-path "proxy decode" that extracts only the address and type tags
// without materializing arguments. It has no I/O and no shared state.
package osc

import "encoding/binary"

var be = binary.BigEndian

// bundleTag is the fixed OSC-string that opens every bundle.
const bundleTag = "#bundle"

// Packet is implemented by Message and Bundle, the two kinds of OSC packet.
type Packet interface {
	// MarshalOSC encodes the packet to its OSC wire form.
	MarshalOSC() ([]byte, error)

	isPacket()
}

// padBytesNeeded returns how many zero bytes must follow a field of length n
// so that the field's total on-the-wire length is a multiple of 4. Unlike
// blob padding, this always returns a value in [1,4]: every OSC string ends
// with at least one zero byte, even when n is already 4-aligned.
func padBytesNeeded(n int) int {
	return 4*(n/4+1) - n
}

// blobPaddedLen returns the number of bytes a blob of length n occupies on
// the wire once padded to a 4-byte boundary. Unlike padBytesNeeded, a blob
// whose length is already a multiple of 4 (including zero) gets no padding
// at all.
func blobPaddedLen(n int) int {
	return (n + 3) / 4 * 4
}
