package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func replay(retryCount int, outcomes ...bool) (downs, ups int) {
	st := &runtimeState{}
	for _, ok := range outcomes {
		switch st.record(ok, retryCount) {
		case transitionDown:
			downs++
		case transitionUp:
			ups++
		}
	}
	return downs, ups
}

func TestRuntimeState_Debounce(t *testing.T) {
	downs, ups := replay(0, false, false, false, true)
	assert.Equal(t, 1, downs)
	assert.Equal(t, 1, ups)

	downs, ups = replay(0, false, true, false, true)
	assert.Equal(t, 2, downs)
	assert.Equal(t, 2, ups)
}

func TestRuntimeState_RetryThreshold(t *testing.T) {
	st := &runtimeState{}
	got := []transition{
		st.record(false, 2),
		st.record(false, 2),
		st.record(false, 2),
		st.record(false, 2),
	}
	assert.Equal(t, []transition{transitionNone, transitionNone, transitionDown, transitionNone}, got)

	downs, ups := replay(2, false, false, true)
	assert.Zero(t, downs)
	assert.Zero(t, ups)
}

func TestRuntimeState_SuccessResetsCounter(t *testing.T) {
	st := &runtimeState{}
	st.record(false, 1)
	st.record(true, 1)
	assert.Equal(t, 0, st.consecutiveFailures)
	assert.Equal(t, transitionNone, st.record(false, 1))
	assert.Equal(t, transitionDown, st.record(false, 1))
	assert.True(t, st.notifiedDown)
	assert.False(t, *st.lastSuccess)
}

func TestRuntimeState_NoUpWithoutDown(t *testing.T) {
	downs, ups := replay(3, true, false, true, true)
	assert.Zero(t, downs)
	assert.Zero(t, ups)
}
