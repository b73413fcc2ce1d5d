// {{{ Copyright (c) Paul R. Tagliamonte <paul@k3xec.com>, 2020
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE. }}}

package pss

// sssMSequence generates the 31-chip +-1 m-sequence for one of the three
// generator polynomials 36.211 6.11.2 defines, from the shared seed
// [0,0,0,0,1] and the given feedback taps (the two register positions
// that are XORed back into the shift register each step).
func sssMSequence(tap1, tap2 int) [31]int {
	var x [31]int
	x[0], x[1], x[2], x[3], x[4] = 0, 0, 0, 0, 1
	for i := 0; i < 26; i++ {
		x[i+5] = (x[i+tap1] + x[i+tap2]) % 2
	}
	return x
}

// bpsk maps a bit sequence to +-1 values.
func bpsk(x [31]int) [31]int {
	out := x
	for i, b := range x {
		out[i] = 1 - 2*b
	}
	return out
}

var (
	sTilde = bpsk(sssMSequence(2, 0)) // x^5 + x^2 + 1
	cTilde = bpsk(sssMSequence(3, 0)) // x^5 + x^3 + 1
	zTilde = bpsk(sssMSequenceZ())    // x^5 + x^4 + x^2 + x + 1
)

// sssMSequenceZ generates the z sequence's 5-tap feedback polynomial,
// which (unlike s and c) XORs four earlier positions rather than two, so
// it does not fit the two-tap helper above.
func sssMSequenceZ() [31]int {
	var x [31]int
	x[0], x[1], x[2], x[3], x[4] = 0, 0, 0, 0, 1
	for i := 0; i < 26; i++ {
		x[i+5] = (x[i+4] + x[i+2] + x[i+1] + x[i]) % 2
	}
	return x
}

// sssIndices computes the (m0, m1) index pair 36.211 6.11.2.1 derives from
// a cell identity group N_id_1 in [0,167].
func sssIndices(nid1 int) (m0, m1 int) {
	qPrime := nid1 / 30
	q := (nid1 + qPrime*(qPrime+1)/2) / 30
	mPrime := nid1 + q*(q+1)/2
	m0 = mPrime % 31
	m1 = (m0 + mPrime/31 + 1) % 31
	return m0, m1
}

// sssSequence synthesizes the 62 real BPSK symbols SSS carries for the
// given cell identity group (nid1), physical-layer identity within the
// group (nid2), and which of the two SSS-bearing subframes (0 or 5) this
// is -- the two subframes swap the roles of the two base sequences, which
// is how a receiver tells subframe 0 from subframe 5 apart from SSS alone.
func sssSequence(nid1, nid2, subframeIdx int) [62]complex128 {
	m0, m1 := sssIndices(nid1)

	s0 := shift(sTilde, m0)
	s1 := shift(sTilde, m1)
	c0 := shift(cTilde, nid2)
	c1 := shift(cTilde, nid2+3)
	z1 := shift(zTilde, m0%8)
	z2 := shift(zTilde, m1%8)

	var out [62]complex128
	for n := 0; n < 31; n++ {
		var even, odd int
		if subframeIdx == 0 {
			even = s0[n] * c0[n]
			odd = s1[n] * c1[n] * z1[n]
		} else {
			even = s1[n] * c0[n]
			odd = s0[n] * c1[n] * z2[n]
		}
		out[2*n] = complex(float64(even), 0)
		out[2*n+1] = complex(float64(odd), 0)
	}
	return out
}

// shift returns seq cyclically rotated so that shift(seq, k)[n] == seq[(n+k)%31].
func shift(seq [31]int, k int) [31]int {
	var out [31]int
	for n := 0; n < 31; n++ {
		out[n] = seq[(n+k)%31]
	}
	return out
}

// generateSSSTimeDomain synthesizes the time-domain reference waveform for
// one (N_id_1, N_id_2, subframe) hypothesis, mapped onto the same centered
// subcarriers PSS uses.
func generateSSSTimeDomain(nid1, nid2, subframeIdx, fftSize int) []complex64 {
	return mapCenteredSubcarriers(sssSequence(nid1, nid2, subframeIdx), fftSize)
}

// vim: foldmethod=marker
