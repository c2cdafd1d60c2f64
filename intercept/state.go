package intercept

// State tracks one interception pass through the approval machine.
type State int

const (
	StateIdle State = iota
	StateAnalyzing
	StateAllowed
	StateBlocked
	StateAwaitingApproval
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnalyzing:
		return "analyzing"
	case StateAllowed:
		return "allowed"
	case StateBlocked:
		return "blocked"
	case StateAwaitingApproval:
		return "awaiting_approval"
	case StateResolved:
		return "resolved"
	}
	return "unknown"
}
