package fec

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestViterbiRoundTripProperty checks the encode/decode round trip for
// arbitrary bit sequences up to a few hundred bits, the noiseless case of
// the decoder's round-trip invariant.
func TestViterbiRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 300).Draw(t, "n")
		bits := make([]byte, n)
		for i := range bits {
			bits[i] = byte(rapid.IntRange(0, 1).Draw(t, "bit"))
		}

		syms := Encode(polys, bits)
		v := NewViterbi(polys, n)
		require.NoError(t, v.Update(syms))

		decoded, err := v.Chainback(n, 0)
		require.NoError(t, err)
		require.Equal(t, bits, decoded)
	})
}

// TestViterbiToleratesBoundedErrorsProperty flips a small, bounded number
// of soft symbols (well inside the code's correction radius for this rate
// and constraint length) and checks the payload still recovers exactly.
func TestViterbiToleratesBoundedErrorsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(20, 200).Draw(t, "n")
		bits := make([]byte, n)
		for i := range bits {
			bits[i] = byte(rapid.IntRange(0, 1).Draw(t, "bit"))
		}
		syms := Encode(polys, bits)

		nFlips := rapid.IntRange(0, 2).Draw(t, "nFlips")
		for i := 0; i < nFlips; i++ {
			idx := rapid.IntRange(0, len(syms)-1).Draw(t, "idx")
			syms[idx] = 255 - syms[idx]
		}

		v := NewViterbi(polys, n)
		require.NoError(t, v.Update(syms))
		decoded, err := v.Chainback(n, 0)
		require.NoError(t, err)
		require.Equal(t, bits, decoded)
	})
}
