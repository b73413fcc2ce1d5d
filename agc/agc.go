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

// Package agc implements a peak-amplitude automatic gain controller: it
// watches a window of complex samples and nudges an externally applied
// gain so the signal's peak magnitude tracks a target envelope.
package agc

import "math"

// SetGainFunc applies a requested gain, in dB, to the external radio or
// scaling stage, and reports back the gain that was actually applied (a
// real gain stage may quantize or clamp the request).
type SetGainFunc func(gainDB float32) (appliedDB float32, err error)

// DefaultTarget is the peak-amplitude target used when a Controller is
// constructed without an explicit one.
const DefaultTarget float32 = 1.0

// Controller is a peak-amplitude AGC loop. It is invoked once per frame (or
// less often, per SetPeriod) by the caller; it does not run on its own
// schedule.
type Controller struct {
	sink   SetGainFunc
	target float32
	gainDB float32

	startupDelay int
	framesSeen   int

	period    int
	sincePrev int
}

// New creates a Controller with the given initial gain (dB) and
// peak-amplitude target. nofRecvSF selects the start-up delay: an
// unknown-cell session (nofRecvSF=5) engages the loop immediately, since
// it has no prior timing reference to lose; a known-cell session
// (nofRecvSF=1) waits 10 frames for timing to settle first.
func New(sink SetGainFunc, initialGainDB, target float32, nofRecvSF int) *Controller {
	delay := 0
	if nofRecvSF == 1 {
		delay = 10
	}
	return &Controller{
		sink:         sink,
		target:       target,
		gainDB:       initialGainDB,
		startupDelay: delay,
	}
}

// SetPeriod sets the number of frames between adjustments. A period of 0
// runs the loop on every call to Process.
func (c *Controller) SetPeriod(frames int) {
	c.period = frames
	c.sincePrev = 0
}

// GainDB returns the gain currently believed to be applied.
func (c *Controller) GainDB() float32 {
	return c.gainDB
}

// Process measures the peak amplitude of buf and, if this call falls on a
// scheduled adjustment, requests a new gain through the sink. It is a
// no-op during the start-up delay and on frames the configured period
// skips.
func (c *Controller) Process(buf []complex64) error {
	c.framesSeen++
	if c.framesSeen <= c.startupDelay {
		return nil
	}

	if c.period > 0 {
		if c.sincePrev < c.period-1 {
			c.sincePrev++
			return nil
		}
		c.sincePrev = 0
	}

	peak := peakAmplitude(buf)
	if peak <= 0 {
		return nil
	}

	errDB := float32(20 * math.Log10(float64(c.target/peak)))
	applied, err := c.sink(c.gainDB + errDB)
	if err != nil {
		return err
	}
	c.gainDB = applied
	return nil
}

// peakAmplitude returns the largest sample magnitude in buf.
func peakAmplitude(buf []complex64) float32 {
	var peak float32
	for _, s := range buf {
		m := float32(math.Hypot(float64(real(s)), float64(imag(s))))
		if m > peak {
			peak = m
		}
	}
	return peak
}

// vim: foldmethod=marker
