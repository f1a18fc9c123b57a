// internal/harness/state.go
package harness

// State is the position of a Session in the scenario lifecycle.
//
//	Initial -> Navigated -> Settled -> Asserting -> (Interacting -> Settled -> Asserting)* -> Done
//
// Any error moves the session to Failed, which is terminal.
type State int

const (
	StateInitial State = iota
	StateNavigated
	StateSettled
	StateAsserting
	StateInteracting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateNavigated:
		return "navigated"
	case StateSettled:
		return "settled"
	case StateAsserting:
		return "asserting"
	case StateInteracting:
		return "interacting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further operation can run from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// hasPage reports whether a document has been loaded in state s.
func (s State) hasPage() bool {
	return s != StateInitial && !s.Terminal()
}
