package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uartad/pkg/logic"
)

func testSource() *Source {
	s := &Source{
		samplerate: 1000000,
		ts0:        -1,
		evC:        make(chan rawEvent, 16),
		quit:       make(chan struct{}),
	}
	s.present[logic.RX] = true
	s.value[logic.RX] = true
	return s
}

func TestWaitEdge(t *testing.T) {
	s := testSource()
	s.evC <- rawEvent{line: logic.RX, edge: logic.Falling, ts: 5 * time.Microsecond}

	snap, err := s.Wait([]logic.Cond{{Line: logic.RX, Edge: logic.Falling}})
	require.NoError(t, err)

	// the first event anchors the sample clock
	assert.Equal(t, int64(0), snap.SampleNum)
	assert.Equal(t, []bool{true}, snap.Matched)
	assert.False(t, snap.Values[logic.RX])
}

func TestWaitSkip(t *testing.T) {
	s := testSource()

	snap, err := s.Wait([]logic.Cond{{Line: logic.RX, Skip: 50}})
	require.NoError(t, err)

	assert.Equal(t, int64(50), snap.SampleNum)
	assert.Equal(t, []bool{true}, snap.Matched)
	assert.True(t, snap.Values[logic.RX])
}

func TestWaitSkipMatchesOwnTarget(t *testing.T) {
	s := testSource()
	s.present[logic.TX] = true
	s.value[logic.TX] = true

	// both lines mid-frame with different pending sample points: only the
	// earlier skip is satisfied, the later line must not be fed a sample
	snap, err := s.Wait([]logic.Cond{
		{Line: logic.RX, Skip: 10},
		{Line: logic.TX, Skip: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), snap.SampleNum)
	assert.Equal(t, []bool{true, false}, snap.Matched)

	// coinciding targets are both matched
	snap, err = s.Wait([]logic.Cond{
		{Line: logic.RX, Skip: 40},
		{Line: logic.TX, Skip: 40},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), snap.SampleNum)
	assert.Equal(t, []bool{true, true}, snap.Matched)
}

func TestWaitEdgeBeforeSkip(t *testing.T) {
	s := testSource()
	s.value[logic.RX] = false
	// the rising edge anchors sample 0, the falling edge lands at sample 10
	s.evC <- rawEvent{line: logic.RX, edge: logic.Rising, ts: 0}
	s.evC <- rawEvent{line: logic.RX, edge: logic.Falling, ts: 10 * time.Microsecond}

	snap, err := s.Wait([]logic.Cond{
		{Line: logic.RX, Edge: logic.Falling},
		{Line: logic.RX, Skip: 5000},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), snap.SampleNum)
	assert.Equal(t, []bool{true, false}, snap.Matched)
	assert.False(t, snap.Values[logic.RX])
}

func TestWaitNonMatchingEventsUpdateValues(t *testing.T) {
	s := testSource()
	s.present[logic.TX] = true
	s.value[logic.TX] = true
	// a TX transition before the skip target must not satisfy the wait but
	// must be reflected in the returned values
	s.evC <- rawEvent{line: logic.TX, edge: logic.Falling, ts: 0}

	snap, err := s.Wait([]logic.Cond{{Line: logic.RX, Skip: 20}})
	require.NoError(t, err)

	assert.Equal(t, int64(20), snap.SampleNum)
	assert.False(t, snap.Values[logic.TX])
	assert.True(t, snap.Values[logic.RX])
}
