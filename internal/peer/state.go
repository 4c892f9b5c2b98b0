package peer

type State int

const (
	StateIdle State = iota
	StateOffering
	StateAnswerPending
	StateConnecting
	StateConnected
	StateRenegotiating
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateAnswerPending:
		return "answer-pending"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRenegotiating:
		return "renegotiating"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Established reports whether the transport is up.
func (s State) Established() bool {
	return s == StateConnected || s == StateRenegotiating
}
