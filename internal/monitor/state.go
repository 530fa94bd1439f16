package monitor

// transition is the notification episode produced by one check.
type transition int

const (
	transitionNone transition = iota
	transitionDown
	transitionUp
)

func (t transition) String() string {
	switch t {
	case transitionDown:
		return "down"
	case transitionUp:
		return "up"
	default:
		return "none"
	}
}

// runtimeState is the in-memory bookkeeping for one service.
type runtimeState struct {
	lastSuccess         *bool
	consecutiveFailures int
	notifiedDown        bool
}

// record applies one check outcome. A down episode starts when the failure
// streak first exceeds retryCount; an up episode ends it on the next success.
func (st *runtimeState) record(success bool, retryCount int) transition {
	st.lastSuccess = &success

	if success {
		st.consecutiveFailures = 0
		if st.notifiedDown {
			st.notifiedDown = false
			return transitionUp
		}
		return transitionNone
	}

	st.consecutiveFailures++
	if st.consecutiveFailures > retryCount && !st.notifiedDown {
		st.notifiedDown = true
		return transitionDown
	}
	return transitionNone
}
