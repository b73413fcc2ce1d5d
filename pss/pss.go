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

// Package pss cross-correlates a subframe buffer against the three LTE PSS
// root sequences, decides whether a peak is strong enough to accept, and
// decodes the accompanying SSS symbol to resolve the cell's full identity
// and which of the two PSS-bearing subframes was seen. The cyclic prefix is
// not detected: a decoded SSS always reports CPNormal.
package pss

import (
	"fmt"
	"math"

	"lte.tools/cellsync/internal/correlate"
)

// RootCount is the number of PSS root sequences (one per N_id_2).
const RootCount = 3

// CPMode mirrors the cell's cyclic prefix length, duplicated locally so
// this package has no dependency on the root module (which depends on
// this package).
type CPMode uint8

const (
	CPNormal CPMode = iota
	CPExtended
)

// Role selects which acceptance threshold and CFO smoothing a Sync
// instance is being used for, matching the three operating points the
// cell sync state machine drives a detector at.
type Role uint8

const (
	// RoleUnknownFind is the coarse search used when the cell identity is
	// not yet known: lowest threshold, since any one of 504 candidate
	// cells may be present and early evidence should not be discarded.
	RoleUnknownFind Role = iota
	// RoleKnownFind is a single-shot coarse search for an already-known
	// cell identity: a strict threshold, since a false accept here seeds
	// a track loop against the wrong timing.
	RoleKnownFind
	// RoleTrack is the fine search run once per 10ms frame once locked.
	RoleTrack
)

// Default acceptance thresholds (normalized peak power over local
// energy) and CFO smoothing factors for each Role.
const (
	ThresholdUnknownFind = 1.5
	ThresholdKnownFind   = 4.0
	ThresholdTrackMin    = 1.0
	ThresholdTrackMax    = 1.3

	CFOAlphaFind  = 0.9
	CFOAlphaTrack = 0.2
)

// NID2Any tells a Sync to search all three PSS root sequences rather than
// a single fixed hypothesis.
const NID2Any = -1

// ErrInvalidNID2 is returned by SetNID2 for anything outside {0,1,2} or
// NID2Any.
var ErrInvalidNID2 = fmt.Errorf("pss: invalid N_id_2")

// SSSResult is a successfully decoded SSS symbol.
type SSSResult struct {
	NID1        int
	CellID      int
	CP          CPMode
	SubframeIdx int // 0 or 5
}

// Result is the outcome of one Find call.
type Result struct {
	Found       bool
	PeakIdx     int
	NID2        int
	Score       float64
	FracCFOHz   float64 // in subcarrier-spacing units, not yet scaled to Hz
	IntCFOShift int     // integer subcarrier shift, if integer-CFO search is enabled
	SSS         *SSSResult
}

// Sync is one PSS/SSS detector instance. A cell sync session holds two:
// a coarse one used during FIND and a fine one used during TRACK: see
// package cellsync's Session.
type Sync struct {
	fftSize   int
	maxOffset int
	nid2      int // fixed hypothesis, or NID2Any

	roots [RootCount][]complex64

	cfoEMA   float64
	cfoAlpha float64
	intCFO   bool
	cpDetect bool
	threshold float64

	sssCache map[[3]int][]complex64

	lastPeakIdx int
	lastSSS     *SSSResult
}

// New creates a Sync for cells with the given FFT size, searching up to
// maxOffset samples per Find call.
func New(fftSize, maxOffset int) *Sync {
	s := &Sync{
		fftSize:   fftSize,
		maxOffset: maxOffset,
		nid2:      NID2Any,
		cfoAlpha:  CFOAlphaFind,
		threshold: ThresholdUnknownFind,
		sssCache:  make(map[[3]int][]complex64),
	}
	for i := 0; i < RootCount; i++ {
		s.roots[i] = generatePSSTimeDomain(i, fftSize)
	}
	return s
}

// SetNID2 fixes the PSS hypothesis this Sync searches for, or NID2Any to
// search all three.
func (s *Sync) SetNID2(nid2 int) error {
	if nid2 != NID2Any && (nid2 < 0 || nid2 >= RootCount) {
		return ErrInvalidNID2
	}
	s.nid2 = nid2
	return nil
}

// SetCFOEMAAlpha sets the smoothing factor for the fractional CFO
// estimate's exponential moving average.
func (s *Sync) SetCFOEMAAlpha(alpha float64) {
	s.cfoAlpha = alpha
}

// SetThreshold sets the normalized peak-power acceptance threshold.
func (s *Sync) SetThreshold(t float64) {
	s.threshold = t
}

// SetIntegerCFODetection enables or disables the +-1 subcarrier integer
// CFO search performed on an accepted peak.
func (s *Sync) SetIntegerCFODetection(enabled bool) {
	s.intCFO = enabled
}

// SetCPDetection records whether cyclic-prefix-length detection is wanted.
// The setting is stored only: SSS decoding does not consult it and always
// reports CPNormal.
func (s *Sync) SetCPDetection(enabled bool) {
	s.cpDetect = enabled
}

// CFO returns the current fractional CFO EMA estimate, in subcarrier
// spacing units.
func (s *Sync) CFO() float64 {
	return s.cfoEMA
}

// SetCFO seeds the EMA directly, used to copy a coarse estimate from one
// Sync instance into another at a FIND-to-TRACK transition.
func (s *Sync) SetCFO(freq float64) {
	s.cfoEMA = freq
}

// Reset clears the peak, SSS decision and any frame counters, but leaves
// the CFO EMA in place: the frequency estimate remains useful evidence
// even after a fresh acquisition attempt starts.
func (s *Sync) Reset() {
	s.lastPeakIdx = 0
	s.lastSSS = nil
}

// Find cross-correlates buf[start:start+maxOffset] against the active PSS
// root sequence hypotheses, accepting the strongest peak that clears the
// configured threshold. If decodeSSS is true and a peak was accepted, it
// additionally attempts to decode the SSS symbol located one symbol
// before the PSS peak to resolve the full cell identity.
func (s *Sync) Find(buf []complex64, start int, decodeSSS bool) Result {
	candidates := []int{0, 1, 2}
	if s.nid2 != NID2Any {
		candidates = []int{s.nid2}
	}

	var best correlate.Result
	bestScore := -1.0
	bestNID2 := candidates[0]

	for _, n := range candidates {
		r := correlate.Search(buf, s.roots[n], start, s.maxOffset)
		score := r.Score()
		if score > bestScore || (score == bestScore && (r.Index < best.Index || n < bestNID2)) {
			bestScore = score
			best = r
			bestNID2 = n
		}
	}

	result := Result{PeakIdx: best.Index, NID2: bestNID2, Score: bestScore}
	if bestScore < s.threshold {
		return result
	}
	result.Found = true
	s.lastPeakIdx = best.Index

	frac := math.Atan2(imag(best.Value), real(best.Value)) / (2 * math.Pi)
	s.cfoEMA += s.cfoAlpha * (frac - s.cfoEMA)
	result.FracCFOHz = s.cfoEMA

	if s.intCFO {
		result.IntCFOShift = s.searchIntegerCFO(buf, best.Index, bestNID2)
	}

	if decodeSSS {
		if sss := s.decodeSSS(buf, best.Index, bestNID2); sss != nil {
			result.SSS = sss
			s.lastSSS = sss
		}
	}

	return result
}

// searchIntegerCFO checks whether shifting the candidate root sequence by
// one subcarrier up or down produces a stronger correlation, which
// indicates the residual CFO has spilled past the fractional estimator's
// +-0.5 subcarrier range.
func (s *Sync) searchIntegerCFO(buf []complex64, peakIdx, nid2 int) int {
	best := 0
	bestScore := correlate.Search(buf[peakIdx:], s.roots[nid2], 0, 1).Score()
	for _, shift := range []int{-1, 1} {
		shifted := rotateFreq(s.roots[nid2], shift, s.fftSize)
		r := correlate.Search(buf[peakIdx:], shifted, 0, 1)
		if sc := r.Score(); sc > bestScore {
			bestScore = sc
			best = shift
		}
	}
	return best
}

// rotateFreq applies a k-subcarrier frequency shift to a time-domain
// sequence by multiplying it with a complex exponential ramp, used to
// build the +-1 subcarrier hypotheses the integer CFO search compares
// against without regenerating the reference sequence in the frequency
// domain.
func rotateFreq(seq []complex64, k, fftSize int) []complex64 {
	out := make([]complex64, len(seq))
	for n, s := range seq {
		angle := 2 * math.Pi * float64(k) * float64(n) / float64(fftSize)
		rot := complex(math.Cos(angle), math.Sin(angle))
		out[n] = complex64(complex128(s) * rot)
	}
	return out
}

// decodeSSS searches every (N_id_1, subframe) hypothesis for the given
// N_id_2 against the symbol immediately preceding the PSS peak, returning
// the best match if it's a clean winner.
//
// A production decoder would demodulate the SSS subcarriers directly via
// an FFT and read off the BPSK symbols; since this module has no FFT
// engine of its own, SSS hypotheses are instead matched directly in the time domain
// against precomputed reference waveforms, the same technique PSS uses.
func (s *Sync) decodeSSS(buf []complex64, peakIdx, nid2 int) *SSSResult {
	sssStart := peakIdx - s.fftSize
	if sssStart < 0 || sssStart+s.fftSize > len(buf) {
		return nil
	}
	window := buf[sssStart : sssStart+s.fftSize]

	bestScore := -1.0
	var bestNID1, bestSF int
	for nid1 := 0; nid1 < 168; nid1++ {
		for _, sf := range []int{0, 5} {
			ref := s.sssReference(nid1, nid2, sf)
			r := correlate.Search(window, ref, 0, 1)
			if sc := r.Score(); sc > bestScore {
				bestScore = sc
				bestNID1 = nid1
				bestSF = sf
			}
		}
	}
	if bestScore < ThresholdTrackMin {
		return nil
	}

	cp := CPNormal
	return &SSSResult{
		NID1:        bestNID1,
		CellID:      3*bestNID1 + nid2,
		CP:          cp,
		SubframeIdx: bestSF,
	}
}

// sssReference returns the cached (generating on first use) time-domain
// SSS reference waveform for one hypothesis.
func (s *Sync) sssReference(nid1, nid2, subframeIdx int) []complex64 {
	key := [3]int{nid1, nid2, subframeIdx}
	if ref, ok := s.sssCache[key]; ok {
		return ref
	}
	ref := generateSSSTimeDomain(nid1, nid2, subframeIdx, s.fftSize)
	s.sssCache[key] = ref
	return ref
}

// GeneratePSSWaveform returns the time-domain PSS reference waveform this
// package correlates against for the given N_id_2 and FFT size, exported
// so test suites outside this package can synthesize signals carrying a
// real, correlatable PSS symbol instead of hand-rolled stand-ins.
func GeneratePSSWaveform(nid2, fftSize int) []complex64 {
	return generatePSSTimeDomain(nid2, fftSize)
}

// GenerateSSSWaveform returns the time-domain SSS reference waveform for
// one (N_id_1, N_id_2, subframe) hypothesis, exported for the same reason
// as GeneratePSSWaveform.
func GenerateSSSWaveform(nid1, nid2, subframeIdx, fftSize int) []complex64 {
	return generateSSSTimeDomain(nid1, nid2, subframeIdx, fftSize)
}

// vim: foldmethod=marker
