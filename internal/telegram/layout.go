package telegram

// Fixed bit positions.
const (
	bitStartOfMinute = 0
	bitAntenna       = 15
	bitTimeChange    = 16
	bitSummer        = 17 // CEST announced
	bitWinter        = 18 // CET announced
	bitStartOfTime   = 20
)

// span is an inclusive bit range holding one BCD digit, least significant
// bit first. It is at most four bits wide.
type span struct {
	from, to int
}

func (s span) width() int {
	return s.to - s.from + 1
}

// field is one BCD-coded value. digits[0] holds the ones, digits[1] the tens.
// limit is the inclusive plausibility bound; 0 means unchecked.
type field struct {
	name   string
	digits []span
	limit  int
	ref    func(*Time) *int
}

// parityGroup is an even-parity check: bit must equal the parity of
// [from, to].
type parityGroup struct {
	name     string
	from, to int
	bit      int
}

// segment is a run of fields protected by one parity bit.
type segment struct {
	fields []field
	parity parityGroup
}

// layout is the complete time-coding part of the telegram, in transmission
// order. The minute bound is 60 and the hour bound 24: receivers in the wild
// accept those values, so the bounds stay loose.
var layout = [...]segment{
	{
		fields: []field{
			{name: "minute", digits: []span{{21, 24}, {25, 27}}, limit: 60, ref: func(t *Time) *int { return &t.Minute }},
		},
		parity: parityGroup{name: "minute", from: 21, to: 27, bit: 28},
	},
	{
		fields: []field{
			{name: "hour", digits: []span{{29, 32}, {33, 34}}, limit: 24, ref: func(t *Time) *int { return &t.Hour }},
		},
		parity: parityGroup{name: "hour", from: 29, to: 34, bit: 35},
	},
	{
		fields: []field{
			{name: "day", digits: []span{{36, 39}, {40, 41}}, limit: 31, ref: func(t *Time) *int { return &t.Day }},
			{name: "weekday", digits: []span{{42, 44}}, limit: 7, ref: func(t *Time) *int { return &t.Weekday }},
			{name: "month", digits: []span{{45, 48}, {49, 49}}, limit: 12, ref: func(t *Time) *int { return &t.Month }},
			{name: "year", digits: []span{{50, 53}, {54, 57}}, ref: func(t *Time) *int { return &t.Year }},
		},
		parity: parityGroup{name: "date", from: 36, to: 57, bit: 58},
	},
}

// bcd weights four bits given most significant first: b0*8 + b1*4 + b2*2 + b3.
// There is no clamping; 1010..1111 yield 10..15.
func bcd(b0, b1, b2, b3 bool) int {
	return btoi(b0)*8 + btoi(b1)*4 + btoi(b2)*2 + btoi(b3)
}

// nibble reads one digit. Bits above the span's width are zero.
func (b *Bits) nibble(s span) int {
	var w [4]bool
	for i := s.from; i <= s.to; i++ {
		w[3-(i-s.from)] = b[i]
	}
	return bcd(w[0], w[1], w[2], w[3])
}

// parity reports whether [from, to] holds an odd number of set bits.
// An empty range (from > to) has even parity.
func (b *Bits) parity(from, to int) bool {
	if from > to {
		return false
	}
	n := 0
	for i := from; i <= to; i++ {
		if b[i] {
			n++
		}
	}
	return n%2 == 1
}

func (f field) extract(b *Bits) int {
	v, scale := 0, 1
	for _, s := range f.digits {
		v += b.nibble(s) * scale
		scale *= 10
	}
	return v
}

func (f field) put(b *Bits, v int) {
	for i, s := range f.digits {
		d := v % 10
		if i == len(f.digits)-1 {
			d = v
		}
		for j := 0; j < s.width(); j++ {
			b[s.from+j] = (d>>j)&1 == 1
		}
		v /= 10
	}
}
