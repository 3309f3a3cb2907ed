package responder

// State is the position of one request in its handling lifecycle.
//
//	DISCOVERED -> VALIDATING -> REJECTED
//	                         -> IN_PROGRESS -> RESPONDED
//	                                        -> FAILED
//
// FAILED is also reached from VALIDATING when the request cannot be read.
type State int

const (
	StateDiscovered State = iota
	StateValidating
	StateRejected
	StateInProgress
	StateResponded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateValidating:
		return "validating"
	case StateRejected:
		return "rejected"
	case StateInProgress:
		return "in_progress"
	case StateResponded:
		return "responded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateRejected || s == StateResponded || s == StateFailed
}
