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

// Package cfo rotates a residual carrier frequency offset out of a complex
// baseband stream, one subframe at a time, with a sample counter that
// carries over (modulo the FFT size) from one call to the next.
package cfo

import "math"

// Corrector applies y[n] = x[n]*exp(-j*2*pi*(freq/fftSize)*n) in place,
// where freq is the current frequency estimate in subcarrier-spacing units
// and fftSize is the cell's FFT size (the N in the subcarrier-spacing
// normalization).
//
// n advances modulo fftSize across calls to Correct rather than resetting
// to zero each time. The phase ramp is therefore continuous across calls
// only when freq is a whole number of subcarriers: with a fractional freq
// the phase steps by 2*pi*freq each time n wraps, and a call whose length
// is a multiple of fftSize (a whole subframe) leaves n where it started,
// so the next call's ramp starts from the same phase.
type Corrector struct {
	fftSize int
	freq    float64
	n       int
}

// New creates a Corrector for a cell with the given FFT size.
func New(fftSize int) *Corrector {
	return &Corrector{fftSize: fftSize}
}

// SetFreq updates the frequency estimate, in subcarrier-spacing units,
// used by subsequent calls to Correct. It does not reset the phase
// counter. Because Correct computes the phase as freq times the counter
// rather than accumulating it, changing the estimate while the counter is
// non-zero also shifts the phase at that sample by
// 2*pi*(new-old)*n/fftSize.
func (c *Corrector) SetFreq(freq float64) {
	c.freq = freq
}

// Freq returns the frequency estimate currently in use, in subcarrier
// spacing units.
func (c *Corrector) Freq() float64 {
	return c.freq
}

// Reset zeroes the phase counter without touching the frequency estimate,
// for use when the buffer position it tracks is being re-aligned (e.g. at
// a FIND-to-TRACK transition) rather than merely continuing.
func (c *Corrector) Reset() {
	c.n = 0
}

// Correct rotates buf in place by the accumulated phase ramp, advancing
// the internal sample counter by len(buf).
func (c *Corrector) Correct(buf []complex64) {
	if c.freq == 0 {
		c.n = (c.n + len(buf)) % c.fftSize
		return
	}

	step := -2 * math.Pi * c.freq / float64(c.fftSize)
	for i := range buf {
		phase := step * float64(c.n+i)
		rot := complex64(complex(math.Cos(phase), math.Sin(phase)))
		buf[i] *= rot
	}
	c.n = (c.n + len(buf)) % c.fftSize
}

// vim: foldmethod=marker
