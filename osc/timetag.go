package osc

import (
	"math"
	"time"
)

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01 00:00:00 UTC) and the Unix epoch (1970-01-01 00:00:00 UTC).
const ntpEpochOffset = 2208988800

// twoPow32 scales a fractional-second value into the low 32 bits of an NTP
// time tag.
const twoPow32 = 4294967296.0

// Timetag is a 64-bit NTP time tag: whole seconds since the NTP epoch in the
// high 32 bits, a binary fraction of a second in the low 32 bits. The value
// (0, 1) is the canonical "immediate" time tag.
type Timetag struct {
	Seconds  uint32
	Fraction uint32
}

// Immediate returns the canonical OSC time tag meaning "execute immediately".
func Immediate() Timetag {
	return Timetag{Seconds: 0, Fraction: 1}
}

// IsImmediate reports whether t means "immediately": the canonical (0, 1)
// time tag or the all-zero one.
func (t Timetag) IsImmediate() bool {
	return t.Seconds == 0 && t.Fraction <= 1
}

// FromUnixSeconds converts a Unix timestamp, expressed as floating-point
// seconds, to a Timetag. A non-positive value produces the immediate time
// tag, matching the reference encoder's behavior for "no time tag given".
func FromUnixSeconds(seconds float64) Timetag {
	if seconds <= 0 {
		return Immediate()
	}
	secs, frac := math.Modf(seconds)
	return Timetag{
		Seconds:  uint32(int64(secs) + ntpEpochOffset),
		Fraction: uint32(frac * twoPow32),
	}
}

// NewTimetag converts a time.Time to a Timetag.
func NewTimetag(t time.Time) Timetag {
	return FromUnixSeconds(float64(t.UnixNano()) / 1e9)
}

// UnixSeconds converts t back to floating-point seconds since the Unix
// epoch. The immediate time tag converts to 0.
func (t Timetag) UnixSeconds() float64 {
	if t.IsImmediate() {
		return 0
	}
	return float64(int64(t.Seconds)-ntpEpochOffset) + float64(t.Fraction)/twoPow32
}

// Time converts t to a time.Time. The immediate time tag converts to the
// Unix epoch.
func (t Timetag) Time() time.Time {
	secs := t.UnixSeconds()
	whole := math.Floor(secs)
	return time.Unix(int64(whole), int64((secs-whole)*1e9)).UTC()
}

// Bytes encodes t as its 8-byte big-endian wire form.
func (t Timetag) Bytes() []byte {
	b := make([]byte, 8)
	be.PutUint32(b[0:4], t.Seconds)
	be.PutUint32(b[4:8], t.Fraction)
	return b
}

// decodeTimetag reads a Timetag from the front of b.
func decodeTimetag(b []byte) (Timetag, error) {
	if len(b) < 8 {
		return Timetag{}, ErrMalformed
	}
	return Timetag{Seconds: be.Uint32(b[0:4]), Fraction: be.Uint32(b[4:8])}, nil
}
