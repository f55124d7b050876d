package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBCD(t *testing.T) {
	t.Parallel()

	tests := []struct {
		b    [4]bool
		want int
	}{
		{[4]bool{false, false, false, false}, 0},
		{[4]bool{false, false, false, true}, 1},
		{[4]bool{false, true, false, true}, 5},
		{[4]bool{true, false, false, true}, 9},
		{[4]bool{true, false, true, false}, 10},
		{[4]bool{true, true, true, true}, 15},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, bcd(tt.b[0], tt.b[1], tt.b[2], tt.b[3]), "bits %v", tt.b)
	}
}

func TestParity(t *testing.T) {
	t.Parallel()

	var b Bits
	b[3], b[4], b[7] = true, true, true

	assert.False(t, b.parity(0, 2), "no set bits")
	assert.True(t, b.parity(0, 3))
	assert.False(t, b.parity(3, 4))
	assert.True(t, b.parity(3, 7))
	assert.True(t, b.parity(7, 7), "single bit range")
	assert.False(t, b.parity(7, 3), "start after end")
}

func TestNibbleShortSpans(t *testing.T) {
	t.Parallel()

	var b Bits
	b[10], b[11] = true, true

	assert.Equal(t, 3, b.nibble(span{10, 11}))
	assert.Equal(t, 1, b.nibble(span{11, 11}))
	assert.Equal(t, 6, b.nibble(span{9, 11}))
	assert.Equal(t, 12, b.nibble(span{8, 11}))
}

func TestLayoutTable(t *testing.T) {
	t.Parallel()

	covered := make(map[int]string)
	for _, seg := range layout {
		p := seg.parity
		require.Equal(t, p.to+1, p.bit, "parity bit for %s follows its group", p.name)

		for _, f := range seg.fields {
			require.NotEmpty(t, f.digits, f.name)
			for _, s := range f.digits {
				require.LessOrEqual(t, s.width(), 4, f.name)
				require.GreaterOrEqual(t, s.from, p.from, f.name)
				require.LessOrEqual(t, s.to, p.to, f.name)
				for i := s.from; i <= s.to; i++ {
					prev, dup := covered[i]
					require.False(t, dup, "bit %d used by %s and %s", i, prev, f.name)
					covered[i] = f.name
				}
			}
		}
	}

	// Bits 21-57 minus the two inner parity bits.
	assert.Len(t, covered, 37-2)
}
