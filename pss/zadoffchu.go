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

import "math"

// pssRoots holds the three Zadoff-Chu root indices 36.211 assigns to
// N_id_2 = 0, 1, 2.
var pssRoots = [RootCount]int{25, 29, 34}

// zadoffChu returns the 62-sample frequency-domain PSS root sequence for
// the given root index, per 36.211 6.11.1: a single Zadoff-Chu sequence of
// length 63 with the middle sample (n=31) punctured.
func zadoffChu(root int) [62]complex128 {
	var out [62]complex128
	const nzc = 63
	for n := 0; n <= 30; n++ {
		angle := -math.Pi * float64(root) * float64(n) * float64(n+1) / float64(nzc)
		out[n] = complex(math.Cos(angle), math.Sin(angle))
	}
	for n := 31; n <= 61; n++ {
		angle := -math.Pi * float64(root) * float64(n+1) * float64(n+2) / float64(nzc)
		out[n] = complex(math.Cos(angle), math.Sin(angle))
	}
	return out
}

// mapCenteredSubcarriers maps a 62-element sequence onto the 62 active
// subcarriers immediately surrounding (but excluding) DC -- subcarriers
// -31..-1 and +1..+31 -- within an FFT of size fftSize, and evaluates the
// corresponding time-domain OFDM symbol by direct synthesis.
//
// A full module would do this mapping once per symbol with a shared FFT
// engine; this module has no FFT engine of its own, and this synthesis
// only runs once per reference waveform per Sync (the three PSS roots at
// construction, each SSS hypothesis on its first use, then cached) to
// build the fixed waveforms the correlator matches against, so a direct
// O(fftSize*62) sum is cheap enough not to need one.
func mapCenteredSubcarriers(bins [62]complex128, fftSize int) []complex64 {
	offsets := make([]int, 62)
	idx := 0
	for k := -31; k <= 31; k++ {
		if k == 0 {
			continue
		}
		bin := k
		if bin < 0 {
			bin += fftSize
		}
		offsets[idx] = bin
		idx++
	}

	out := make([]complex64, fftSize)
	norm := 1 / math.Sqrt(float64(fftSize))
	for n := 0; n < fftSize; n++ {
		var acc complex128
		for i, bin := range offsets {
			angle := 2 * math.Pi * float64(bin) * float64(n) / float64(fftSize)
			acc += bins[i] * complex(math.Cos(angle), math.Sin(angle))
		}
		out[n] = complex64(acc * complex(norm, 0))
	}
	return out
}

// generatePSSTimeDomain synthesizes the time-domain reference waveform for
// PSS root sequence index nid2 (0, 1 or 2) at the given FFT size.
func generatePSSTimeDomain(nid2, fftSize int) []complex64 {
	return mapCenteredSubcarriers(zadoffChu(pssRoots[nid2]), fftSize)
}

// vim: foldmethod=marker
