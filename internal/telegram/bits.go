// Package telegram decodes the 59-bit DCF77 minute telegram into a civil
// date/time tuple and the transmitter status flags.
//
// A telegram is normalised into a fixed-size Bits array first; Decode then
// checks the framing bits and the three even-parity groups, extracts the BCD
// fields from a single layout table and finally applies the plausibility
// bounds. Decoding is pure: the package holds no shared mutable state.
package telegram

import (
	"fmt"
	"strings"
)

// Length is the number of bits in one telegram. Second 59 carries no pulse
// and is not part of the telegram.
const Length = 59

// Bits is one normalised telegram. Index 0 is the start-of-minute bit.
type Bits [Length]bool

// FromBools copies a boolean slice into Bits. The slice must hold exactly
// Length values.
func FromBools(v []bool) (Bits, error) {
	var b Bits
	if len(v) != Length {
		return b, lengthError(len(v))
	}
	copy(b[:], v)
	return b, nil
}

// FromInts converts 0/1 integers into Bits. A value of 1 is a set bit, any
// other value is a cleared bit.
func FromInts(v []int) (Bits, error) {
	var b Bits
	if len(v) != Length {
		return b, lengthError(len(v))
	}
	for i, x := range v {
		b[i] = x == 1
	}
	return b, nil
}

// Parse converts a string of '0'/'1' characters into Bits. A 58-character
// string is accepted and gets the always-zero start-of-minute bit prepended.
// '1' is a set bit; every other character is a cleared bit.
func Parse(s string) (Bits, error) {
	var b Bits
	switch len(s) {
	case Length:
	case Length - 1:
		s = "0" + s
	default:
		return b, lengthError(len(s))
	}
	for i := 0; i < Length; i++ {
		b[i] = s[i] == '1'
	}
	return b, nil
}

// String renders the telegram as 59 '0'/'1' characters.
func (b Bits) String() string {
	var sb strings.Builder
	sb.Grow(Length)
	for _, v := range b {
		if v {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Ints returns the telegram as 0/1 integers.
func (b Bits) Ints() []int {
	out := make([]int, Length)
	for i, v := range b {
		out[i] = btoi(v)
	}
	return out
}

func lengthError(n int) error {
	return &DecodeError{
		Kind:   ErrInvalidLength,
		Field:  "telegram",
		Bit:    -1,
		Detail: fmt.Sprintf("got %d bits, want %d", n, Length),
	}
}

func btoi(v bool) int {
	if v {
		return 1
	}
	return 0
}
