package client

import (
	"github.com/bft-labs/dlclient/pkg/lifecycle"
	"github.com/bft-labs/dlclient/pkg/packet"
	"github.com/bft-labs/dlclient/pkg/session"
)

// State is the phase of a session.
type State = lifecycle.State

// Session phases.
const (
	StateConfiguring = lifecycle.StateConfiguring
	StateStreaming   = lifecycle.StateStreaming
	StateDraining    = lifecycle.StateDraining
	StateTerminated  = lifecycle.StateTerminated
)

// StateChangeEvent is emitted on every phase change.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// CheckpointEvent is emitted after every state file recover or save.
type CheckpointEvent struct {
	// Op is lifecycle.CheckpointRecover, CheckpointPeriodic or CheckpointFinal.
	Op       string
	Position session.Position
	Err      error
}

// EventHandler receives session events. Calls are made synchronously from
// the session goroutine and should return quickly.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnCheckpoint(event CheckpointEvent)
}

// BaseEventHandler implements EventHandler with no-ops, for embedding.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnCheckpoint(CheckpointEvent)   {}

// eventEmitterWrapper adapts an EventHandler to the lifecycle emitter and
// observer interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
	desc    *session.Descriptor
}

func (e *eventEmitterWrapper) OnStateChange(previous, current lifecycle.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: previous,
		Current:  current,
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnPacket(packet.Packet)               {}
func (e *eventEmitterWrapper) OnDispatchError(packet.Packet, error) {}

func (e *eventEmitterWrapper) OnCheckpoint(op string, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnCheckpoint(CheckpointEvent{
		Op:       op,
		Position: e.desc.Position(),
		Err:      err,
	})
}

// observers fans lifecycle notifications out to several observers.
type observers []lifecycle.Observer

func (o observers) OnPacket(p packet.Packet) {
	for _, obs := range o {
		obs.OnPacket(p)
	}
}

func (o observers) OnDispatchError(p packet.Packet, err error) {
	for _, obs := range o {
		obs.OnDispatchError(p, err)
	}
}

func (o observers) OnCheckpoint(op string, err error) {
	for _, obs := range o {
		obs.OnCheckpoint(op, err)
	}
}
