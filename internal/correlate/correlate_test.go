package correlate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func toneAt(n, offset int, seq []complex64) []complex64 {
	buf := make([]complex64, n)
	copy(buf[offset:], seq)
	return buf
}

func TestSearchFindsExactOffset(t *testing.T) {
	seq := []complex64{1, 1i, -1, -1i}
	buf := toneAt(64, 20, seq)

	r := Search(buf, seq, 0, 40)
	assert.Equal(t, 20, r.Index)
	assert.Greater(t, r.Score(), 0.9)
}

func TestSearchBreaksTiesTowardSmallerIndex(t *testing.T) {
	// An all-zero buffer gives every offset the same (zero) score; the
	// search must still return the first candidate it saw.
	seq := []complex64{1, 1, 1}
	buf := make([]complex64, 16)

	r := Search(buf, seq, 2, 10)
	assert.Equal(t, 2, r.Index)
}

func TestScoreIsZeroWithoutEnergy(t *testing.T) {
	r := Result{Index: 0, Value: complex(3, 4), Energy: 0}
	assert.Equal(t, 0.0, r.Score())
}

func TestSearchClipsWindowToBufferLength(t *testing.T) {
	seq := []complex64{1, 1, 1}
	buf := make([]complex64, 10)
	copy(buf[7:], seq)

	r := Search(buf, seq, 0, 100)
	assert.Equal(t, 7, r.Index)
	assert.True(t, math.Abs(r.Score()-1) < 1e-9 || r.Score() > 0.9)
}
