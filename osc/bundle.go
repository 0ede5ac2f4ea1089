package osc

import "bytes"

// Bundle is an OSC bundle: a time tag and an ordered list of child elements,
// each itself a Message or a Bundle. Bundles never appear inside a Message.
type Bundle struct {
	Timetag  Timetag
	Elements []Packet
}

var _ Packet = (*Bundle)(nil)

func (*Bundle) isPacket() {}

// NewBundle returns a new, empty Bundle with the given time tag.
func NewBundle(tt Timetag) *Bundle {
	return &Bundle{Timetag: tt}
}

// Append adds a child Message or Bundle to b, preserving order.
func (b *Bundle) Append(p Packet) {
	b.Elements = append(b.Elements, p)
}

// MarshalOSC encodes the bundle to its OSC wire form: the literal string
// "#bundle", the time tag, then each child length-prefixed by its own
// encoded size (always 4-byte aligned already, so the padded-length/
// logical-length distinction spec §9 calls out never actually differs here).
func (b *Bundle) MarshalOSC() ([]byte, error) {
	out := new(bytes.Buffer)
	writeString(out, bundleTag)
	out.Write(b.Timetag.Bytes())

	for _, el := range b.Elements {
		data, err := el.MarshalOSC()
		if err != nil {
			return nil, err
		}
		var lenField [4]byte
		be.PutUint32(lenField[:], uint32(len(data)))
		out.Write(lenField[:])
		out.Write(data)
	}
	return out.Bytes(), nil
}
