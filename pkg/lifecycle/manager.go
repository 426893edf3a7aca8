package lifecycle

import (
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/dlclient/pkg/log"
)

// ErrInvalidTransition is returned for a transition the state machine forbids.
var ErrInvalidTransition = errors.New("invalid state transition")

// ShutdownTimeout is the default maximum time to wait for graceful shutdown.
const ShutdownTimeout = 30 * time.Second

var _ Manager = (*DefaultManager)(nil)

// DefaultManager implements Manager with a state machine for session phases.
type DefaultManager struct {
	mu           sync.RWMutex
	state        State
	logger       log.Logger
	eventEmitter EventEmitter
}

// NewManager creates a new manager in StateConfiguring.
func NewManager(logger log.Logger, emitter EventEmitter) *DefaultManager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &DefaultManager{
		state:        StateConfiguring,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current session phase.
func (l *DefaultManager) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo attempts to transition to a new state.
// Returns ErrInvalidTransition if the transition is not valid.
func (l *DefaultManager) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	valid := false
	switch oldState {
	case StateConfiguring:
		valid = newState == StateStreaming || newState == StateDraining
	case StateStreaming:
		valid = newState == StateDraining
	case StateDraining:
		valid = newState == StateTerminated
	}
	if !valid {
		l.mu.Unlock()
		return ErrInvalidTransition
	}

	l.state = newState
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Debug("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	return nil
}
