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

// Package correlate implements the sliding time-domain cross-correlation
// search that sits in the PSS detector's hot loop: for every candidate
// start offset in a search window, compute the normalized correlation
// against a reference sequence and keep the best-scoring offset.
//
// This is the one place in the module worth feature-gating by CPU: the
// search window is walked once per candidate root sequence, per subframe,
// under a one-millisecond budget. There's no assembly here (nothing in
// this module is built with cgo), so the "fast path" is a wider Go loop
// rather than a vector instruction -- cpuid only decides which loop shape
// runs.
package correlate

import "github.com/klauspost/cpuid/v2"

// Result holds one sliding-window correlation peak: the start index in the
// searched buffer (absolute, not relative to the search window's start),
// the complex correlation value at that index, and the local energy the
// peak was normalized against.
type Result struct {
	Index  int
	Value  complex128
	Energy float64
}

// Score returns the normalized peak score |Value|^2 / Energy, the
// quantity PSS/SSS acceptance thresholds are compared against.
func (r Result) Score() float64 {
	if r.Energy <= 0 {
		return 0
	}
	mag2 := real(r.Value)*real(r.Value) + imag(r.Value)*imag(r.Value)
	return mag2 / r.Energy
}

// hasWideLoop reports whether this CPU is worth dispatching to the
// unrolled accumulation loop. AVX2 and NEON both widen the practical SIMD
// lane count enough that the compiler's auto-vectorizer tends to do
// better with a 4-wide unrolled reduction than a tight scalar one.
func hasWideLoop() bool {
	return cpuid.CPU.Supports(cpuid.AVX2) || cpuid.CPU.Has(cpuid.ASIMD)
}

// Search slides seq across buf over start offsets in [start, start+maxOffset)
// (clipped to keep the full seq window inside buf), returning the offset
// with the highest normalized score. Ties are broken in favor of the
// smaller offset.
func Search(buf, seq []complex64, start, maxOffset int) Result {
	wide := hasWideLoop()

	end := start + maxOffset
	if end > len(buf)-len(seq)+1 {
		end = len(buf) - len(seq) + 1
	}

	best := Result{Index: start}
	bestScore := -1.0
	for i := start; i < end; i++ {
		var corr complex128
		var energy float64
		if wide {
			corr, energy = dotUnrolled(buf[i:i+len(seq)], seq)
		} else {
			corr, energy = dot(buf[i:i+len(seq)], seq)
		}
		r := Result{Index: i, Value: corr, Energy: energy}
		score := r.Score()
		if score > bestScore {
			bestScore = score
			best = r
		}
	}
	return best
}

func dot(x, y []complex64) (complex128, float64) {
	var corr complex128
	var energy float64
	for i := range y {
		xi := complex128(x[i])
		corr += xi * conj(complex128(y[i]))
		energy += real(xi)*real(xi) + imag(xi)*imag(xi)
	}
	return corr, energy
}

func dotUnrolled(x, y []complex64) (complex128, float64) {
	var corr complex128
	var energy float64
	n := len(y)
	i := 0
	for ; i+4 <= n; i += 4 {
		for k := 0; k < 4; k++ {
			xi := complex128(x[i+k])
			corr += xi * conj(complex128(y[i+k]))
			energy += real(xi)*real(xi) + imag(xi)*imag(xi)
		}
	}
	for ; i < n; i++ {
		xi := complex128(x[i])
		corr += xi * conj(complex128(y[i]))
		energy += real(xi)*real(xi) + imag(xi)*imag(xi)
	}
	return corr, energy
}

func conj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

// vim: foldmethod=marker
