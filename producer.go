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
	"time"
)

// ErrProducer names the "producer failure" branch of the error taxonomy.
// Nothing in this package returns it: a Session propagates a Producer's
// own error to the caller unwrapped.
var ErrProducer = fmt.Errorf("cellsync: producer failure")

// Producer pulls IQ samples from a radio or a file, tagged with the
// monotonic capture timestamp of the first delivered sample.
//
// Produce must deliver exactly count samples into dest in stream order,
// and must not reorder or drop samples, or return early with a partial
// fill unless the stream has genuinely ended. It returns the number of
// samples delivered (count on success), 0 on a clean end of stream, and
// a non-nil error on fatal failure. Timestamps returned across calls must
// be monotonically non-decreasing.
type Producer interface {
	Produce(dest IQ, count int) (n int, timestamp time.Time, err error)
}

// ProducerFunc adapts a plain function to the Producer interface, in the
// same spirit as http.HandlerFunc: it lets tests and small tools supply a
// Producer without declaring a named type.
type ProducerFunc func(dest IQ, count int) (int, time.Time, error)

// Produce implements the Producer interface.
func (f ProducerFunc) Produce(dest IQ, count int) (int, time.Time, error) {
	return f(dest, count)
}

// produceFull calls p.Produce repeatedly until count samples have landed in
// dest, or the stream ends or fails. This tolerates producers (e.g. a
// chunked network source) that return fewer samples than requested without
// that being an end-of-stream condition -- the fatal producer-failure and
// clean-EOF cases still return immediately.
func produceFull(p Producer, dest IQ, count int) (int, time.Time, error) {
	if dest.Length() < count {
		return 0, time.Time{}, ErrShortBuffer
	}
	var (
		n   int
		ts  time.Time
		err error
	)
	for n < count {
		var (
			nn   int
			tsnn time.Time
		)
		nn, tsnn, err = p.Produce(dest.Slice(n, count), count-n)
		if n == 0 {
			ts = tsnn
		}
		n += nn
		if err != nil {
			return n, ts, err
		}
		if nn == 0 {
			if n < count {
				return n, ts, ErrUnexpectedEOF
			}
			break
		}
	}
	return n, ts, nil
}

// vim: foldmethod=marker
