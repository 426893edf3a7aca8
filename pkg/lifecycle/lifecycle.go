package lifecycle

// State represents the phase of a session.
type State int

const (
	StateConfiguring State = iota
	StateStreaming
	StateDraining
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "Configuring"
	case StateStreaming:
		return "Streaming"
	case StateDraining:
		return "Draining"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// EventEmitter is called when the session phase changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Manager is the session state machine driven by a Controller.
type Manager interface {
	// State returns the current session phase.
	State() State

	// TransitionTo attempts to transition to a new state.
	// Returns an error if the transition is not valid.
	TransitionTo(newState State, reason string) error
}
