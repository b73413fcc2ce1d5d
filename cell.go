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

// CellIDUnknown is the sentinel cell identity used when the caller has not
// yet determined the physical cell ID and wants the Session to search for
// it (see Session in unknown-cell mode).
const CellIDUnknown = 1000

// CPMode selects the OFDM cyclic prefix length in use by a cell.
type CPMode uint8

const (
	// CPNormal is the normal cyclic prefix, 7 OFDM symbols per slot.
	CPNormal CPMode = iota

	// CPExtended is the extended cyclic prefix, 6 OFDM symbols per slot.
	CPExtended
)

// String returns a short human readable name for the CPMode.
func (cp CPMode) String() string {
	switch cp {
	case CPNormal:
		return "normal"
	case CPExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// PHICHLength is the duration of the PHICH, in OFDM symbols.
type PHICHLength uint8

const (
	// PHICHNormal occupies the first OFDM symbol of a subframe.
	PHICHNormal PHICHLength = iota

	// PHICHExtended occupies the first one to three OFDM symbols,
	// depending on subframe type.
	PHICHExtended
)

// PHICHResources is the Ng parameter controlling the number of PHICH
// groups per cell, expressed as a ratio of resource blocks.
type PHICHResources uint8

const (
	// PHICHResourcesOneSixth corresponds to Ng = 1/6.
	PHICHResourcesOneSixth PHICHResources = iota
	// PHICHResourcesOneHalf corresponds to Ng = 1/2.
	PHICHResourcesOneHalf
	// PHICHResourcesOne corresponds to Ng = 1.
	PHICHResourcesOne
	// PHICHResourcesTwo corresponds to Ng = 2.
	PHICHResourcesTwo
)

// Cell describes the physical parameters of an LTE cell. It is immutable
// for the lifetime of a sync Session.
//
// PHICHLength and PHICHResources are carried through as descriptor fields
// only -- nothing in this package consumes them, since decoding the PHICH
// itself is a higher layer concern. They exist here because a real cell
// descriptor always carries them (see phy_common.h's srslte_cell_t).
type Cell struct {
	// NofPRB is the number of resource blocks the cell is configured to
	// use. Must be one of 6, 15, 25, 50, 75, 100.
	NofPRB uint32

	// NofPorts is the number of antenna ports in use, one of 1, 2 or 4.
	NofPorts uint32

	// ID is the physical cell identity, 0-503, or CellIDUnknown if the
	// Session should search for it.
	ID uint32

	// CP is the cyclic prefix length in use.
	CP CPMode

	PHICHLength    PHICHLength
	PHICHResources PHICHResources
}

// ErrInvalidNofPRB is returned when a Cell's NofPRB is not one of the
// valid LTE resource block counts.
var ErrInvalidNofPRB = fmt.Errorf("cellsync: invalid nof_prb")

// ErrInvalidNofPorts is returned when a Cell's NofPorts is not 1, 2 or 4.
var ErrInvalidNofPorts = fmt.Errorf("cellsync: invalid antenna port count")

// ErrInvalidCellID is returned when a Cell's ID is out of the [0, 503]
// range and is not the CellIDUnknown sentinel.
var ErrInvalidCellID = fmt.Errorf("cellsync: invalid cell id")

// validNofPRB is the set of resource-block counts LTE defines.
var validNofPRB = map[uint32]bool{
	6: true, 15: true, 25: true, 50: true, 75: true, 100: true,
}

// NofPRBIsValid reports whether nofPRB is a valid LTE resource block count.
func NofPRBIsValid(nofPRB uint32) bool {
	return validNofPRB[nofPRB]
}

// Validate checks that the Cell's fields are within the ranges the rest of
// this package assumes. It returns the first invalid-argument error found.
func (c Cell) Validate() error {
	if !NofPRBIsValid(c.NofPRB) {
		return ErrInvalidNofPRB
	}
	switch c.NofPorts {
	case 1, 2, 4:
	default:
		return ErrInvalidNofPorts
	}
	if c.ID != CellIDUnknown && c.ID > 503 {
		return ErrInvalidCellID
	}
	return nil
}

// IsUnknown reports whether the cell's identity has not yet been resolved.
func (c Cell) IsUnknown() bool {
	return c.ID == CellIDUnknown
}

// NID2 returns the PSS root sequence index (0, 1 or 2) for a resolved cell
// identity. The caller must not call this with an unknown cell ID.
func (c Cell) NID2() uint32 {
	return c.ID % 3
}

// NID1 returns the SSS cell-identity-group index (0-167) for a resolved
// cell identity.
func (c Cell) NID1() uint32 {
	return c.ID / 3
}

// FFTSize returns the smallest power-of-two symbol size covering the
// cell's nof_prb * 12 subcarriers.
func (c Cell) FFTSize() int {
	return fftSizeForNofPRB(c.NofPRB)
}

// SFLen returns the number of complex samples in one 1ms subframe at this
// cell's FFT size (fft_size * 15, the number of OFDM-symbol-periods worth
// of samples LTE packs into a subframe at 15kHz subcarrier spacing).
func (c Cell) SFLen() int {
	return c.FFTSize() * 15
}

// fftSizeForNofPRB returns the smallest power of two that is >= nofPRB*12.
func fftSizeForNofPRB(nofPRB uint32) int {
	subcarriers := int(nofPRB) * 12
	size := 64
	for size < subcarriers {
		size *= 2
	}
	return size
}

// vim: foldmethod=marker
