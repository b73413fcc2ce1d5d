package agc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constSignal(n int, amp float32) []complex64 {
	out := make([]complex64, n)
	for i := range out {
		out[i] = complex(amp, 0)
	}
	return out
}

func TestProcessAdjustsGainTowardTarget(t *testing.T) {
	var applied float32
	sink := func(gainDB float32) (float32, error) {
		applied = gainDB
		return gainDB, nil
	}

	c := New(sink, 0, 1.0, 5) // nofRecvSF=5: no startup delay
	err := c.Process(constSignal(16, 0.5))
	require.NoError(t, err)

	assert.Greater(t, applied, float32(0))
}

func TestStartupDelayForKnownCell(t *testing.T) {
	calls := 0
	sink := func(gainDB float32) (float32, error) {
		calls++
		return gainDB, nil
	}

	c := New(sink, 0, 1.0, 1) // nofRecvSF=1: 10-frame startup delay
	for i := 0; i < 10; i++ {
		require.NoError(t, c.Process(constSignal(8, 0.5)))
	}
	assert.Equal(t, 0, calls, "no adjustment during the startup window")

	require.NoError(t, c.Process(constSignal(8, 0.5)))
	assert.Equal(t, 1, calls, "adjustment fires once the startup window elapses")
}

func TestNoStartupDelayForUnknownCell(t *testing.T) {
	calls := 0
	sink := func(gainDB float32) (float32, error) {
		calls++
		return gainDB, nil
	}

	c := New(sink, 0, 1.0, 5)
	require.NoError(t, c.Process(constSignal(8, 0.5)))
	assert.Equal(t, 1, calls)
}

func TestPeriodSkipsIntermediateFrames(t *testing.T) {
	calls := 0
	sink := func(gainDB float32) (float32, error) {
		calls++
		return gainDB, nil
	}

	c := New(sink, 0, 1.0, 5)
	c.SetPeriod(4)

	for i := 0; i < 8; i++ {
		require.NoError(t, c.Process(constSignal(8, 0.5)))
	}
	assert.Equal(t, 2, calls)
}

func TestProcessSkipsSilentBuffer(t *testing.T) {
	calls := 0
	sink := func(gainDB float32) (float32, error) {
		calls++
		return gainDB, nil
	}

	c := New(sink, 0, 1.0, 5)
	require.NoError(t, c.Process(make([]complex64, 8)))
	assert.Equal(t, 0, calls)
}

func TestGainDBReflectsSinkClamping(t *testing.T) {
	sink := func(gainDB float32) (float32, error) {
		return 10, nil // pretend the radio clamps every request to 10dB
	}

	c := New(sink, 0, 1.0, 5)
	require.NoError(t, c.Process(constSignal(8, 0.5)))
	assert.Equal(t, float32(10), c.GainDB())
}
