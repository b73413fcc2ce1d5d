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

// Package testutils holds small signal generators shared by this module's
// test suites: synthetic tones and CFO-rotated buffers that stand in for a
// captured downlink signal without needing a recorded IQ file on disk.
package testutils

import (
	"math"

	"hz.tools/rf"

	"lte.tools/cellsync"
)

// CW fills buf with a complex carrier wave at freq, sampled at sampleRate,
// starting at the given phase in radians.
func CW(buf cellsync.IQ, freq rf.Hz, sampleRate int, phase float64) {
	var (
		carrierFreq = float64(freq)
		tau         = math.Pi * 2
	)

	for i := range buf {
		now := float64(i) / float64(sampleRate)
		buf[i] = complex64(complex(
			math.Cos(tau*carrierFreq*now+phase),
			math.Sin(tau*carrierFreq*now+phase),
		))
	}
}

// ApplyCFO rotates every sample in buf by a phase ramp corresponding to a
// constant frequency offset cfo at the given sample rate, simulating the
// effect of an uncorrected local oscillator mismatch on a clean signal.
func ApplyCFO(buf cellsync.IQ, cfo rf.Hz, sampleRate int) {
	tau := math.Pi * 2
	for i := range buf {
		now := float64(i) / float64(sampleRate)
		rot := complex64(complex(math.Cos(tau*float64(cfo)*now), math.Sin(tau*float64(cfo)*now)))
		buf[i] *= rot
	}
}

// vim: foldmethod=marker
