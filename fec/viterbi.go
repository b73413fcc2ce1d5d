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

// Package fec implements a rate-1/3, constraint-length K=7 (64 state)
// convolutional encoder and a hard/soft-decision Viterbi decoder with
// traceback, the kind of inner loop a control channel decoder needs to
// run once per transport block without normalizing path metrics.
package fec

import (
	"fmt"
	"math/bits"
)

const (
	// numStates is the number of encoder states for a K=7 code (2^6).
	numStates = 64

	// maxMetric is 3*255, the largest possible branch metric across the
	// three rate-1/3 outputs, chosen so that the complementary metric
	// (maxMetric - metric) keeps accumulated path metrics from needing
	// periodic renormalization over any block length this package is
	// meant to decode.
	maxMetric = 765

	// metricBias seeds every path metric at init so that an unknown
	// starting state competes fairly with a known one (which is biased
	// to zero).
	metricBias = 63
)

// ErrTooManyBits is returned when a caller asks for more payload bits than
// the Viterbi instance was constructed to hold.
var ErrTooManyBits = fmt.Errorf("fec: more bits requested than the decoder was sized for")

// Polynomials holds the three generator polynomials (g0, g1, g2) that
// define a rate-1/3 K=7 code, each holding the low 7 bits that tap the
// encoder's shift register.
type Polynomials [3]int

// decision packs one hard decision per trellis state (64 states, 2 words
// of 32 bits) for a single decoded bit.
type decision struct {
	w [2]uint32
}

// Viterbi is a rate-1/3 K=7 convolutional decoder instance. It holds the
// branch metric table for a fixed set of generator polynomials plus the
// path-metric and decision state for one in-flight block.
type Viterbi struct {
	branch [3][32]uint8

	metricsA, metricsB [numStates]uint32
	oldMetrics         *[numStates]uint32
	newMetrics         *[numStates]uint32

	decisions []decision
	step      int
}

// NewViterbi creates a Viterbi decoder for the given generator polynomials,
// sized to decode at most maxBits payload bits per block (plus the 6-bit
// tail every block carries).
func NewViterbi(polys Polynomials, maxBits int) *Viterbi {
	v := &Viterbi{
		decisions: make([]decision, maxBits+6),
	}
	v.setPolynomials(polys)
	v.Reset(-1)
	return v
}

func (v *Viterbi) setPolynomials(polys Polynomials) {
	for state := 0; state < 32; state++ {
		for k, p := range polys {
			neg := p < 0
			if neg {
				p = -p
			}
			bit := bits.OnesCount32(uint32(2*state)&uint32(p)) & 1
			on := bit == 1
			if neg {
				on = !on
			}
			if on {
				v.branch[k][state] = 255
			} else {
				v.branch[k][state] = 0
			}
		}
	}
}

// Reset prepares the decoder for a new block. If startingState is
// non-negative, that state is biased to a zero path metric; otherwise all
// states start from the same bias and the decoder is agnostic to the true
// starting state.
func (v *Viterbi) Reset(startingState int) {
	for i := range v.metricsA {
		v.metricsA[i] = metricBias
	}
	v.oldMetrics = &v.metricsA
	v.newMetrics = &v.metricsB
	v.step = 0
	if startingState >= 0 {
		v.oldMetrics[startingState&(numStates-1)] = 0
	}
}

// Update feeds a block of soft-decision symbols into the decoder. len(syms)
// must be a multiple of 3 (one symbol per rate-1/3 output); each group of
// three symbols advances the trellis by one bit.
func (v *Viterbi) Update(syms []byte) error {
	if len(syms)%3 != 0 {
		return fmt.Errorf("fec: symbol block length %d is not a multiple of 3", len(syms))
	}
	if v.step+len(syms)/3 > len(v.decisions) {
		return ErrTooManyBits
	}

	for i := 0; i+3 <= len(syms); i += 3 {
		sym0, sym1, sym2 := syms[i], syms[i+1], syms[i+2]
		d := &v.decisions[v.step]
		d.w[0], d.w[1] = 0, 0

		for s := 0; s < 32; s++ {
			metric := uint32(v.branch[0][s]^sym0) +
				uint32(v.branch[1][s]^sym1) +
				uint32(v.branch[2][s]^sym2)

			a0 := v.oldMetrics[s] + metric
			a1 := v.oldMetrics[s+32] + (maxMetric - metric)
			dec0 := int32(a0-a1) > 0
			if dec0 {
				v.newMetrics[2*s] = a1
				d.w[s/16] |= 1 << uint((2*s)&31)
			} else {
				v.newMetrics[2*s] = a0
			}

			// The complementary branch swaps which half of the metric
			// the current symbol agrees with (metric <-> maxMetric-metric).
			b0 := a0 - (2*metric - maxMetric)
			b1 := a1 + (2*metric - maxMetric)
			dec1 := int32(b0-b1) > 0
			if dec1 {
				v.newMetrics[2*s+1] = b1
				d.w[s/16] |= 1 << uint((2*s+1)&31)
			} else {
				v.newMetrics[2*s+1] = b0
			}
		}

		v.oldMetrics, v.newMetrics = v.newMetrics, v.oldMetrics
		v.step++
	}
	return nil
}

// BestState scans the current path metrics for the minimum, returning the
// surviving state and its accumulated metric. Call after feeding a full
// block (including its tail) to find the maximum-likelihood terminal state.
func (v *Viterbi) BestState() (state int, metric uint32) {
	metric = v.oldMetrics[0]
	for i := 1; i < numStates; i++ {
		if v.oldMetrics[i] <= metric {
			state = i
			metric = v.oldMetrics[i]
		}
	}
	return state, metric
}

// Chainback walks the decision trellis backwards from endState, extracting
// nbits hard-decision bits in original (not reversed) order. endState is
// usually 0 for a code whose encoder tail forces the register back to all
// zeros.
func (v *Viterbi) Chainback(nbits int, endState int) ([]byte, error) {
	if nbits+6 > len(v.decisions) {
		return nil, ErrTooManyBits
	}
	out := make([]byte, nbits)

	state := (endState % numStates) << 2
	for n := nbits - 1; n >= 0; n-- {
		d := v.decisions[n+6]
		k := (d.w[(state>>2)/32] >> uint((state>>2)%32)) & 1
		state = (state >> 1) | int(k<<7)
		out[n] = byte(k)
	}
	return out, nil
}

// vim: foldmethod=marker
