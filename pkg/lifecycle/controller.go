package lifecycle

import (
	"context"
	"errors"
	"io"

	"github.com/bft-labs/dlclient/pkg/log"
	"github.com/bft-labs/dlclient/pkg/packet"
	"github.com/bft-labs/dlclient/pkg/session"
	"github.com/bft-labs/dlclient/pkg/state"
)

// Transport collects packets from the server.
type Transport interface {
	// Collect blocks until the next packet arrives. It returns an error
	// wrapping io.EOF when the stream ends, including after Terminate.
	Collect(ctx context.Context) (packet.Packet, error)

	// Disconnect closes the connection in an orderly way.
	Disconnect() error

	// Terminate asks Collect to stop at the next packet boundary. It must
	// only set a flag.
	Terminate()

	// Connected reports whether a connection is currently open.
	Connected() bool
}

// Dispatcher handles one collected packet.
type Dispatcher interface {
	Dispatch(ctx context.Context, p packet.Packet) error
}

// Checkpoint operations reported to an Observer.
const (
	CheckpointRecover  = "recover"
	CheckpointPeriodic = "periodic"
	CheckpointFinal    = "final"
)

// Observer is notified of session progress.
type Observer interface {
	OnPacket(p packet.Packet)
	OnDispatchError(p packet.Packet, err error)
	OnCheckpoint(op string, err error)
}

// ControllerConfig contains configuration for the session loop.
type ControllerConfig struct {
	// StateInterval saves the checkpoint after this many position updates.
	// Zero saves only when the session ends.
	StateInterval int
}

// Controller orchestrates the collect/dispatch loop of one session.
type Controller struct {
	config     ControllerConfig
	desc       *session.Descriptor
	transport  Transport
	dispatcher Dispatcher
	repo       state.Repository
	logger     log.Logger
	observer   Observer
	manager    Manager

	sinceSave int
}

// NewController creates a controller. repo and observer may be nil; without
// a repository nothing is recovered or saved.
func NewController(
	config ControllerConfig,
	desc *session.Descriptor,
	transport Transport,
	dispatcher Dispatcher,
	repo state.Repository,
	logger log.Logger,
	observer Observer,
	emitter EventEmitter,
) *Controller {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Controller{
		config:     config,
		desc:       desc,
		transport:  transport,
		dispatcher: dispatcher,
		repo:       repo,
		logger:     logger,
		observer:   observer,
		manager:    NewManager(logger, emitter),
	}
}

// State returns the current session phase.
func (c *Controller) State() State {
	return c.manager.State()
}

// Terminate requests a graceful stop after the packet in flight.
// It performs atomic stores only and is safe from any goroutine.
func (c *Controller) Terminate() {
	c.desc.RequestTermination()
	c.transport.Terminate()
}

// Configure recovers the checkpoint, if a repository is set. Recovery
// errors are logged and the session keeps its default position.
func (c *Controller) Configure(ctx context.Context) {
	if c.repo == nil {
		return
	}
	res, err := c.repo.Recover(ctx, c.desc)
	if err != nil {
		c.logger.Error("state recovery failed", log.Err(err))
	} else {
		c.logger.Debug("state recovery finished", log.String("result", res.String()))
	}
	c.notifyCheckpoint(CheckpointRecover, err)
}

// Run configures the session, streams until the transport ends or
// termination is requested, disconnects, and saves the checkpoint once.
// It returns the transport error that ended the stream, if any.
func (c *Controller) Run(ctx context.Context) error {
	c.Configure(ctx)

	if err := c.manager.TransitionTo(StateStreaming, "configured"); err != nil {
		return err
	}

	reason, runErr := c.stream(ctx)

	_ = c.manager.TransitionTo(StateDraining, reason)
	if c.transport.Connected() {
		if err := c.transport.Disconnect(); err != nil {
			c.logger.Warn("disconnect failed", log.Err(err))
		}
	}

	_ = c.manager.TransitionTo(StateTerminated, "disconnected")
	if c.repo != nil {
		c.save(ctx, CheckpointFinal)
	}
	return runErr
}

// stream runs the collect/dispatch loop and returns why it stopped.
func (c *Controller) stream(ctx context.Context) (string, error) {
	for !c.desc.TerminationRequested() {
		p, err := c.transport.Collect(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return "end of stream", nil
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return "context done", nil
			default:
				c.logger.Error("collect failed", log.Err(err))
				return "transport failure", err
			}
		}

		if err := c.dispatcher.Dispatch(ctx, p); err != nil {
			c.logger.Warn("dispatch failed",
				log.String("type", p.Type.String()),
				log.Int("seq", p.Sequence),
				log.Err(err),
			)
			if c.observer != nil {
				c.observer.OnDispatchError(p, err)
			}
			continue
		}
		if c.observer != nil {
			c.observer.OnPacket(p)
		}

		if p.HasPosition() {
			c.desc.Advance(p.ID, p.Time)
			c.maybeSave(ctx)
		}
	}
	return "termination requested", nil
}

func (c *Controller) maybeSave(ctx context.Context) {
	if c.repo == nil || c.config.StateInterval <= 0 {
		return
	}
	c.sinceSave++
	if c.sinceSave < c.config.StateInterval {
		return
	}
	c.sinceSave = 0
	c.save(ctx, CheckpointPeriodic)
}

func (c *Controller) save(ctx context.Context, op string) {
	err := c.repo.Save(ctx, c.desc)
	if err != nil {
		c.logger.Error("state save failed", log.String("op", op), log.Err(err))
	}
	c.notifyCheckpoint(op, err)
}

func (c *Controller) notifyCheckpoint(op string, err error) {
	if c.observer != nil {
		c.observer.OnCheckpoint(op, err)
	}
}
