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
	"log"
	"time"

	"hz.tools/rf"

	"lte.tools/cellsync/agc"
	"lte.tools/cellsync/cfo"
	"lte.tools/cellsync/pss"
)

// Tuning constants carried over from the reference state machine this
// package's FIND/TRACK loop is modeled on.
const (
	// MaxTimeOffset bounds the per-subframe sample-timing correction: a
	// track-accept whose offset exceeds this is treated as a loss of lock
	// rather than a correctable drift.
	MaxTimeOffset = 128

	// TrackMaxLost is the number of consecutive rejected track searches
	// that demote a session back to FIND.
	TrackMaxLost = 4

	// TrackFrameSize is the half-width, in samples, of the fine search
	// window TRACK centers on the expected PSS location.
	TrackFrameSize = 32

	// FindNofAvgFrames is the number of successful FIND detections
	// required (in unknown-cell mode) before committing to TRACK.
	FindNofAvgFrames = 2
)

// State is the cell sync state machine's current phase.
type State uint8

const (
	// StateFind is coarse acquisition: searching for a PSS peak with no
	// assumed subframe timing.
	StateFind State = iota
	// StateTrack is fine tracking: subframe timing is known and each
	// PSS/SSS-bearing subframe refines it.
	StateTrack
)

// String returns a short human readable name for the State.
func (st State) String() string {
	switch st {
	case StateFind:
		return "find"
	case StateTrack:
		return "track"
	default:
		return "unknown"
	}
}

// Mode selects whether a Session is driven by a live producer or replays
// a file deterministically.
type Mode uint8

const (
	ModeLive Mode = iota
	ModeFile
)

var (
	// ErrInvalidArgument is returned for null handles or out-of-range
	// configuration; the session is left unchanged.
	ErrInvalidArgument = fmt.Errorf("cellsync: invalid argument")

	// ErrClosed is returned by any operation on a Session after Close.
	ErrClosed = fmt.Errorf("cellsync: session closed")
)

// FileProducer is a Producer that can additionally rewind its underlying
// stream back to the start. *filesource.Source implements it; this
// package declares the interface locally (rather than importing
// filesource) so that filesource can import cellsync's exported types
// without creating an import cycle.
type FileProducer interface {
	Producer
	Seek() error
}

// Session drives a downlink IQ stream through PSS/SSS acquisition and
// tracking, delivering one subframe of aligned, frequency-corrected
// samples per call to GetBuffer or Zerocopy.
//
// A Session owns its sample buffer, its two detector instances (a coarse
// one for FIND and a fine one for TRACK), and its CFO/AGC loops. It is not
// safe for concurrent use: exactly one goroutine should drive it, matching
// the single blocking producer call each step makes.
type Session struct {
	cell Cell
	mode Mode

	producer     Producer
	fileProducer FileProducer

	state State
	sfIdx int

	findCnt, okCnt, noCnt, totalCnt int

	// timeOffset is the scratch register described in the module's
	// design notes: positive means "discard this many samples before the
	// next read", negative means "this many samples of the next
	// subframe are already sitting at the buffer's head".
	timeOffset     int
	meanTimeOffset float64
	meanCount      int

	peakIdx int

	sfind  *pss.Sync
	strack *pss.Sync

	correctCFO       bool
	decodeSSSOnTrack bool
	nofRecvSF        int

	agcCtrl *agc.Controller
	cfoCorr *cfo.Corrector

	frameLen int
	buffer   IQ
	scratch  IQ

	lastTimestamp time.Time
	closed        bool
}

// NewSession creates a live Session for the given cell, pulling samples
// from producer. If cell.ID is CellIDUnknown, the session searches for
// the cell identity as part of FIND; otherwise it searches only for the
// given cell's PSS root sequence.
func NewSession(cell Cell, producer Producer) (*Session, error) {
	if err := cell.Validate(); err != nil {
		return nil, err
	}
	if producer == nil {
		return nil, ErrInvalidArgument
	}
	s := newSession(cell)
	s.mode = ModeLive
	s.producer = producer
	s.Reset()
	return s, nil
}

// NewFileSession creates a Session that replays a deterministic capture
// through src instead of a live producer. In FILE mode the FIND/TRACK
// state machine and all CFO/STO/AGC processing are bypassed entirely --
// see Zerocopy.
func NewFileSession(cell Cell, src FileProducer) (*Session, error) {
	if err := cell.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, ErrInvalidArgument
	}
	s := newSession(cell)
	s.mode = ModeFile
	s.fileProducer = src
	s.sfIdx = 9
	return s, nil
}

func newSession(cell Cell) *Session {
	nofRecvSF := 1
	if cell.IsUnknown() {
		nofRecvSF = 5
	}
	frameLen := nofRecvSF * cell.SFLen()

	s := &Session{
		cell:      cell,
		nofRecvSF: nofRecvSF,
		frameLen:  frameLen,
		buffer:    make(IQ, 2*frameLen),
		scratch:   make(IQ, 2*cell.SFLen()),
		cfoCorr:   cfo.New(cell.FFTSize()),
	}

	s.sfind = pss.New(cell.FFTSize(), frameLen-cell.FFTSize())
	s.strack = pss.New(cell.FFTSize(), 2*TrackFrameSize)

	if cell.IsUnknown() {
		s.sfind.SetThreshold(pss.ThresholdUnknownFind)
	} else {
		s.sfind.SetThreshold(pss.ThresholdKnownFind)
		_ = s.sfind.SetNID2(int(cell.NID2()))
		_ = s.strack.SetNID2(int(cell.NID2()))
	}
	s.sfind.SetCFOEMAAlpha(pss.CFOAlphaFind)
	s.strack.SetCFOEMAAlpha(pss.CFOAlphaTrack)
	s.strack.SetThreshold(pss.ThresholdTrackMax)
	s.correctCFO = true

	return s
}

// Close releases the Session. Further calls return ErrClosed.
func (s *Session) Close() error {
	s.closed = true
	return nil
}

// Reset returns the Session to a fully valid FIND state with zero
// counters. In FILE mode it additionally sets sf_idx=9, so the next read
// reports sf_idx=0; the file position is left where it is (the source is
// rewound only when a read hits end of file).
func (s *Session) Reset() {
	s.state = StateFind
	s.findCnt, s.okCnt, s.noCnt, s.totalCnt = 0, 0, 0, 0
	s.timeOffset = 0
	s.meanTimeOffset, s.meanCount = 0, 0
	s.peakIdx = 0
	s.sfind.Reset()
	s.strack.Reset()
	s.cfoCorr.Reset()
	if s.mode == ModeFile {
		s.sfIdx = 9
	} else {
		s.sfIdx = 0
	}
}

// SFIdx returns the expected subframe index, 0-9.
func (s *Session) SFIdx() int {
	return s.sfIdx
}

// State returns the current FIND/TRACK phase.
func (s *Session) State() State {
	return s.state
}

// PeakIdx returns the most recently accepted PSS peak's sample index.
func (s *Session) PeakIdx() int {
	return s.peakIdx
}

// LastTimestamp returns the capture timestamp of the first sample in the
// most recently produced buffer.
func (s *Session) LastTimestamp() time.Time {
	return s.lastTimestamp
}

// CFO returns the currently tracked carrier frequency offset, converting
// from the internal subcarrier-spacing-fraction representation to Hz
// (internal units times the 15kHz LTE subcarrier spacing).
func (s *Session) CFO() rf.Hz {
	return rf.Hz(s.strack.CFO() * 15000)
}

// SetCFO seeds both detectors' CFO estimate directly.
func (s *Session) SetCFO(freq rf.Hz) {
	frac := float64(freq) / 15000
	s.sfind.SetCFO(frac)
	s.strack.SetCFO(frac)
}

// SFO returns the estimated sample-clock offset, derived from the mean
// tracked time offset (internal units times 5000, matching the scale the
// external interface specifies).
func (s *Session) SFO() rf.Hz {
	return rf.Hz(s.meanTimeOffset * 5000)
}

// SetDecodeSSSOnTrack enables SSS decoding on every PSS/SSS-bearing
// subframe during TRACK, not only during FIND.
func (s *Session) SetDecodeSSSOnTrack(enabled bool) {
	s.decodeSSSOnTrack = enabled
}

// SetNID2 fixes the PSS root sequence hypothesis both detectors search
// for, or pss.NID2Any to search all three.
func (s *Session) SetNID2(nid2 int) error {
	if err := s.sfind.SetNID2(nid2); err != nil {
		return err
	}
	return s.strack.SetNID2(nid2)
}

// StartAGC enables the AGC loop, invoked once per PSS/SSS-bearing
// subframe (or less often, see SetAGCPeriod), applying gain adjustments
// through sink starting from initialGainDB.
func (s *Session) StartAGC(sink agc.SetGainFunc, initialGainDB float32) error {
	if sink == nil {
		return ErrInvalidArgument
	}
	s.agcCtrl = agc.New(sink, initialGainDB, agc.DefaultTarget, s.nofRecvSF)
	return nil
}

// SetAGCPeriod sets the number of PSS/SSS-bearing subframes between AGC
// adjustments. Has no effect if AGC has not been started.
func (s *Session) SetAGCPeriod(frames int) {
	if s.agcCtrl != nil {
		s.agcCtrl.SetPeriod(frames)
	}
}

// GetBuffer advances the session by one step, returning a slice into the
// session's owned buffer holding exactly one subframe of samples on
// success. The slice aliases Session-owned memory and is only valid until
// the next call.
func (s *Session) GetBuffer() (IQ, int, error) {
	return s.nextSubframe()
}

// Zerocopy behaves like GetBuffer but copies the ready subframe into the
// caller-supplied dest instead of returning a session-owned slice.
func (s *Session) Zerocopy(dest IQ) (int, error) {
	buf, status, err := s.nextSubframe()
	if status != 1 {
		return status, err
	}
	if dest.Length() < buf.Length() {
		return -1, ErrShortBuffer
	}
	copy(dest, buf)
	return status, nil
}

func (s *Session) nextSubframe() (IQ, int, error) {
	if s.closed {
		return nil, -1, ErrClosed
	}
	if s.mode == ModeFile {
		return s.nextSubframeFile()
	}
	if s.state == StateFind {
		return s.find()
	}
	return s.track()
}

// nextSubframeFile replicates the file-mode zerocopy branch: a raw
// sf_len read every call, wrapping to the start of the file on EOF and
// forcing sf_idx back to 0 on the read that follows the wrap.
func (s *Session) nextSubframeFile() (IQ, int, error) {
	sfLen := s.cell.SFLen()
	dest := s.buffer[:sfLen]

	n, _, err := s.fileProducer.Produce(dest, sfLen)
	if err != nil {
		return nil, -1, err
	}
	if n == 0 {
		if err := s.fileProducer.Seek(); err != nil {
			return nil, -1, err
		}
		s.sfIdx = 9
		if _, _, err := s.fileProducer.Produce(dest, sfLen); err != nil {
			return nil, -1, err
		}
	}

	s.sfIdx++
	if s.sfIdx == 10 {
		s.sfIdx = 0
	}
	return dest, 1, nil
}

// receiveSamples fills the session buffer with one fresh frame, honoring
// the time_offset scratch register: a negative value means that many
// samples of the next frame are already sitting at the buffer's head
// (copied there by the previous call), so only the remainder needs
// reading from the producer.
func (s *Session) receiveSamples() error {
	n := s.timeOffset
	if n < 0 {
		n = -n
	}
	s.timeOffset = 0

	dest := s.buffer[n:s.frameLen]
	_, ts, err := produceFull(s.producer, dest, dest.Length())
	if err != nil {
		return err
	}
	if !ts.IsZero() {
		s.lastTimestamp = ts
	}
	return nil
}

// discardSamples reads and drops exactly n samples from the producer,
// using the session's owned scratch buffer rather than a process-wide
// global (see the module's design notes on dummy/kk).
func (s *Session) discardSamples(n int) error {
	for n > 0 {
		chunk := n
		if chunk > s.scratch.Length() {
			chunk = s.scratch.Length()
		}
		_, _, err := produceFull(s.producer, s.scratch[:chunk], chunk)
		if err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

func (s *Session) find() (IQ, int, error) {
	if err := s.receiveSamples(); err != nil {
		return nil, -1, err
	}
	buf := s.buffer[:s.frameLen]

	r := s.sfind.Find(buf, 0, true)
	if !r.Found {
		return nil, 0, nil
	}

	s.peakIdx = r.PeakIdx
	s.findCnt++

	needFinds := FindNofAvgFrames
	if !s.cell.IsUnknown() {
		needFinds = 1
	}
	realign := s.findCnt >= needFinds || r.PeakIdx < 2*s.cell.FFTSize()
	if !realign {
		return nil, 0, nil
	}

	discard := r.PeakIdx + s.cell.SFLen()/2
	if err := s.discardSamples(discard); err != nil {
		return nil, -1, err
	}

	s.strack.SetCFO(s.sfind.CFO())

	s.okCnt, s.noCnt, s.totalCnt, s.findCnt = 0, 0, 0, 0
	s.meanTimeOffset, s.meanCount = 0, 0

	sfIdx := 0
	if r.SSS != nil {
		sfIdx = r.SSS.SubframeIdx
	}
	s.sfIdx = (sfIdx + s.nofRecvSF) % 10

	s.state = StateTrack
	s.cfoCorr.Reset()
	return nil, 0, nil
}

func (s *Session) track() (IQ, int, error) {
	if err := s.receiveSamples(); err != nil {
		return nil, -1, err
	}
	buf := s.buffer[:s.frameLen]
	sfLen := s.cell.SFLen()

	s.sfIdx = (s.sfIdx + s.nofRecvSF) % 10

	if s.sfIdx == 0 || s.sfIdx == 5 {
		if s.agcCtrl != nil {
			if err := s.agcCtrl.Process(buf); err != nil {
				return nil, -1, err
			}
		}

		start := s.frameLen - sfLen/2 - TrackFrameSize
		if start < 0 {
			start = 0
		}
		r := s.strack.Find(buf, start, s.decodeSSSOnTrack)
		s.totalCnt++

		if r.Found {
			if err := s.trackPeakOK(r); err != nil {
				return nil, -1, err
			}
		} else {
			s.trackPeakNo()
		}

		if s.state == StateFind {
			return nil, 0, nil
		}
	} else if s.correctCFO {
		s.cfoCorr.SetFreq(s.strack.CFO())
		s.cfoCorr.Correct(buf[:sfLen])
	}

	return buf[:sfLen], 1, nil
}

// trackPeakOK processes an accepted fine-search peak: it resolves the
// SSS-vs-expected subframe mismatch (trusting the detector, per the
// module's preserved-but-flagged SSS mismatch policy), computes the
// sample-timing offset, and either discards the drift immediately
// (positive offset: we're sampling too slowly) or stages it to be
// retained at the head of the next buffer (negative offset: we're
// sampling too fast). An offset of MaxTimeOffset or more in either
// direction drops the session back to FIND instead.
func (s *Session) trackPeakOK(r pss.Result) error {
	if r.SSS != nil && r.SSS.SubframeIdx != s.sfIdx {
		log.Printf("cellsync: sf_idx mismatch, expected %d got %d from SSS, adopting detector value", s.sfIdx, r.SSS.SubframeIdx)
		s.sfIdx = r.SSS.SubframeIdx
	}

	timeOffset := r.PeakIdx - (s.frameLen - s.cell.SFLen()/2)

	s.meanCount++
	s.meanTimeOffset += (float64(timeOffset) - s.meanTimeOffset) / float64(s.meanCount)

	switch {
	case timeOffset >= MaxTimeOffset || timeOffset <= -MaxTimeOffset:
		s.timeOffset = 0
		s.state = StateFind
		s.sfind.Reset()
		s.strack.Reset()
		return nil
	case timeOffset > 0 && timeOffset < MaxTimeOffset:
		if err := s.discardSamples(timeOffset); err != nil {
			return err
		}
		s.timeOffset = 0
	case timeOffset < 0:
		retain := -timeOffset
		if retain < MaxTimeOffset {
			copy(s.buffer[0:retain], s.buffer[s.frameLen-retain:s.frameLen])
		}
		s.timeOffset = timeOffset
	default:
		s.timeOffset = 0
	}

	s.peakIdx = s.cell.SFLen()/2 + timeOffset
	s.okCnt++
	s.noCnt = 0
	return nil
}

// trackPeakNo processes a rejected fine-search peak, demoting the session
// back to FIND once TrackMaxLost consecutive rejections accumulate.
func (s *Session) trackPeakNo() {
	s.noCnt++
	if s.noCnt >= TrackMaxLost {
		s.state = StateFind
		s.sfind.Reset()
		s.strack.Reset()
	}
}

// vim: foldmethod=marker
