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

// Package cellsync drives a downlink IQ stream from an unsynchronized radio
// (or a recorded capture) into subframe-aligned, frequency-corrected
// baseband suitable for demodulation.
//
// Given a stream of complex baseband samples, a Session finds an LTE cell's
// primary and secondary synchronization signals, locks onto the 10ms radio
// frame timing, and continuously tracks carrier-frequency offset and
// sample-timing offset, delivering one subframe of aligned samples per
// GetBuffer call.
//
// Sub-packages hold the individual closed-loop pieces: pss (the PSS/SSS
// correlator), cfo (the phase-continuous CFO rotator), agc (the peak-
// amplitude gain loop), filesource (deterministic file replay), and fec
// (a standalone K=7 r=1/3 Viterbi decoder used downstream of this core).
package cellsync

// vim: foldmethod=marker
