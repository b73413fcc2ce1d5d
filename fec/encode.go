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

package fec

import "math/bits"

// Encode runs bits through a rate-1/3 K=7 convolutional encoder using the
// same generator polynomials and shift register convention Viterbi's branch
// table is built from, terminating the block with 6 zero tail bits so a
// decoder can chainback to the all-zero state.
//
// The register convention mirrors the decoder's branch table: at each step
// the pre-transition 6 bits of state are shifted up by one position and the
// new bit is placed at bit 0 before tapping each polynomial, so a state
// computed here lines up exactly with the states Viterbi.Update walks.
func Encode(polys Polynomials, payload []byte) []byte {
	out := make([]byte, 0, (len(payload)+6)*3)
	reg := 0

	step := func(bit byte) {
		full := ((reg << 1) | int(bit)) & 0x7f
		for _, p := range polys {
			neg := p < 0
			if neg {
				p = -p
			}
			on := bits.OnesCount(uint(full)&uint(p))&1 == 1
			if neg {
				on = !on
			}
			if on {
				out = append(out, 255)
			} else {
				out = append(out, 0)
			}
		}
		reg = full & 0x3f
	}

	for _, b := range payload {
		step(b)
	}
	for i := 0; i < 6; i++ {
		step(0)
	}
	return out
}

// vim: foldmethod=marker
