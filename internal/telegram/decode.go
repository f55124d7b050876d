package telegram

import "fmt"

// Decode validates a telegram and extracts its fields. Checks run in
// transmission order and stop at the first failure: start-of-minute bit,
// start-of-time bit, minute parity, hour parity, date parity, then the
// plausibility bounds. On error the returned Result is the zero value.
func Decode(b Bits) (Result, error) {
	var r Result

	if b[bitStartOfMinute] {
		return Result{}, &DecodeError{Kind: ErrFraming, Field: "start of minute", Bit: bitStartOfMinute, Detail: "must be 0"}
	}

	r.Antenna = btoi(b[bitAntenna])
	r.TimeChange = btoi(b[bitTimeChange])
	r.SummerTime = bcd(false, false, b[bitWinter], b[bitSummer]) - 1

	if !b[bitStartOfTime] {
		return Result{}, &DecodeError{Kind: ErrFraming, Field: "start of time", Bit: bitStartOfTime, Detail: "must be 1"}
	}

	for _, seg := range layout {
		for _, f := range seg.fields {
			*f.ref(&r.Time) = f.extract(&b)
		}
		p := seg.parity
		if b.parity(p.from, p.to) != b[p.bit] {
			return Result{}, &DecodeError{
				Kind:   ErrParity,
				Field:  p.name,
				Bit:    p.bit,
				Detail: fmt.Sprintf("bits %d-%d", p.from, p.to),
			}
		}
	}

	for _, seg := range layout {
		for _, f := range seg.fields {
			if v := *f.ref(&r.Time); f.limit > 0 && v > f.limit {
				return Result{}, &DecodeError{
					Kind:   ErrRange,
					Field:  f.name,
					Bit:    -1,
					Detail: fmt.Sprintf("%d exceeds %d", v, f.limit),
				}
			}
		}
	}

	return r, nil
}

// DecodeBools decodes a telegram given as 59 booleans.
func DecodeBools(v []bool) (Result, error) {
	b, err := FromBools(v)
	if err != nil {
		return Result{}, err
	}
	return Decode(b)
}

// DecodeInts decodes a telegram given as 59 integers, 1 meaning a set bit.
func DecodeInts(v []int) (Result, error) {
	b, err := FromInts(v)
	if err != nil {
		return Result{}, err
	}
	return Decode(b)
}

// DecodeString decodes a telegram given as 58 or 59 '0'/'1' characters.
func DecodeString(s string) (Result, error) {
	b, err := Parse(s)
	if err != nil {
		return Result{}, err
	}
	return Decode(b)
}

// Encode builds the telegram that decodes to r. The start-of-time bit and
// the three parity bits are set; the start-of-minute and meteo bits stay 0.
// Field values are written digit by digit and truncated to the width of
// their bit span.
func Encode(r Result) Bits {
	var b Bits

	b[bitAntenna] = r.Antenna != 0
	b[bitTimeChange] = r.TimeChange != 0
	z := r.SummerTime + 1
	b[bitSummer] = z&1 == 1
	b[bitWinter] = z&2 == 2
	b[bitStartOfTime] = true

	t := r.Time
	for _, seg := range layout {
		for _, f := range seg.fields {
			f.put(&b, *f.ref(&t))
		}
		p := seg.parity
		b[p.bit] = b.parity(p.from, p.to)
	}
	return b
}

// Decoder wraps Decode with a last-result slot for callers that read the
// result separately from the decode call. A Decoder must not be shared
// between goroutines; use one per receiver.
type Decoder struct {
	last Result
}

// NewDecoder returns a Decoder with an empty last result.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes b and, on success, stores the result as the last result.
// A rejected telegram leaves the last result untouched.
func (d *Decoder) Decode(b Bits) (Result, error) {
	r, err := Decode(b)
	if err != nil {
		return r, err
	}
	d.last = r
	return r, nil
}

// DecodeBools is the boolean-slice form of Decode.
func (d *Decoder) DecodeBools(v []bool) (Result, error) {
	b, err := FromBools(v)
	if err != nil {
		return Result{}, err
	}
	return d.Decode(b)
}

// DecodeInts is the integer-slice form of Decode.
func (d *Decoder) DecodeInts(v []int) (Result, error) {
	b, err := FromInts(v)
	if err != nil {
		return Result{}, err
	}
	return d.Decode(b)
}

// DecodeString is the text form of Decode.
func (d *Decoder) DecodeString(s string) (Result, error) {
	b, err := Parse(s)
	if err != nil {
		return Result{}, err
	}
	return d.Decode(b)
}

// LastResult returns the most recent successful result, or the zero Result
// if nothing has been decoded yet.
func (d *Decoder) LastResult() Result {
	return d.last
}
