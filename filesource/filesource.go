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

// Package filesource replays a raw IQ capture from disk as a deterministic
// Producer, standing in for a live radio when a Session is driven from a
// recorded file instead.
package filesource

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"lte.tools/cellsync"
)

// ErrInvalidLength is returned when a capture file's length is not an exact
// multiple of one complex sample (8 bytes: two little-endian float32s).
var ErrInvalidLength = fmt.Errorf("filesource: file length is not a multiple of the sample size")

// Source reads a capture file of interleaved little-endian float32 (I, Q)
// pairs with no header. It never applies CFO, STO or AGC correction -- a
// recorded file is assumed pre-corrected, and a Session driven from one
// skips its closed loops entirely (see cellsync.NewFileSession).
//
// Unlike a live radio Producer, Source does not wrap on end of file by
// itself: Produce reports a clean n=0 at EOF, and the caller (normally a
// Session in file mode, replicating the wraparound bookkeeping of its
// subframe counter) decides when to Seek back to the start.
type Source struct {
	r      io.ReadSeeker
	sample [8]byte
}

// New wraps r as a Source.
func New(r io.ReadSeeker) *Source {
	return &Source{r: r}
}

// Seek rewinds the replay file back to its first sample.
func (s *Source) Seek() error {
	_, err := s.r.Seek(0, io.SeekStart)
	return err
}

// Produce implements cellsync.Producer. It fills dest with up to count
// samples read from the file, returning fewer than count (possibly zero)
// at a clean end of file rather than an error.
func (s *Source) Produce(dest cellsync.IQ, count int) (int, time.Time, error) {
	if dest.Length() < count {
		return 0, time.Time{}, cellsync.ErrShortBuffer
	}

	var n int
	for n < count {
		v, err := s.readOne()
		if err == io.EOF {
			return n, time.Time{}, nil
		}
		if err != nil {
			return n, time.Time{}, err
		}
		dest[n] = v
		n++
	}
	return n, time.Time{}, nil
}

// readOne decodes the next complex64 sample off the wire, or returns io.EOF
// if the stream is exactly at its end.
func (s *Source) readOne() (complex64, error) {
	if _, err := io.ReadFull(s.r, s.sample[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, ErrInvalidLength
		}
		return 0, err
	}
	re := math.Float32frombits(binary.LittleEndian.Uint32(s.sample[0:4]))
	im := math.Float32frombits(binary.LittleEndian.Uint32(s.sample[4:8]))
	return complex(re, im), nil
}

// vim: foldmethod=marker
