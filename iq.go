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

package cellsync

import (
	"fmt"
)

var (
	// ErrShortBuffer is returned when a destination buffer is smaller than
	// the number of samples an operation needs to write into it.
	ErrShortBuffer = fmt.Errorf("cellsync: short buffer")

	// ErrUnexpectedEOF is returned when a producer's stream ends before a
	// requested number of samples could be delivered.
	ErrUnexpectedEOF = fmt.Errorf("cellsync: unexpected EOF")
)

// IQ is a vector of complex baseband samples, interleaved real/imaginary
// float32 pairs in memory (Go's native complex64 layout).
//
// This is the only sample representation this package understands: unlike
// a general purpose SDR I/O library, a cell sync core only ever operates on
// demodulator-ready complex baseband, so there's no SampleFormat tag to
// switch on here.
type IQ []complex64

// Length returns the number of IQ samples in the vector.
func (s IQ) Length() int {
	return len(s)
}

// Size returns the size of the vector in bytes.
func (s IQ) Size() int {
	return len(s) * 8
}

// Slice returns a slice of the sample buffer from start until end. As with
// a native Go slice, the result aliases the same backing array.
func (s IQ) Slice(start, end int) IQ {
	return s[start:end]
}

// vim: foldmethod=marker
