package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/dlclient/internal/metrics"
	"github.com/bft-labs/dlclient/pkg/datalink"
	"github.com/bft-labs/dlclient/pkg/lifecycle"
	"github.com/bft-labs/dlclient/pkg/log"
	"github.com/bft-labs/dlclient/pkg/packet"
	"github.com/bft-labs/dlclient/pkg/session"
	"github.com/bft-labs/dlclient/pkg/state"
)

// Client is a resumable DataLink session that can be embedded in other
// applications. Use New to create one, then Run or Start.
type Client struct {
	config     Config
	opts       options
	desc       *session.Descriptor
	transport  lifecycle.Transport
	dispatcher *packet.Dispatcher
	controller *lifecycle.Controller
	metrics    *metrics.Metrics
	logger     log.Logger

	started atomic.Bool
	done    chan struct{}

	mu     sync.Mutex
	runErr error
}

// New creates a client for cfg. Nothing is connected until Run or Start.
// Returns an error wrapping ErrInvalidConfig if the configuration or the
// stream selection is invalid.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	match, err := cfg.MatchPattern()
	if err != nil {
		return nil, err
	}

	desc := session.NewDescriptor(cfg.Address)
	desc.NetTimeout = cfg.NetTimeout
	desc.ReconnectDelay = cfg.ReconnectDelay
	desc.Keepalive = cfg.Keepalive
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	transport := o.transport
	if transport == nil {
		transport = datalink.NewClient(desc, datalink.Config{
			ClientID: cfg.ClientID,
			Match:    match,
			InfoType: cfg.InfoType,
		}, logger)
	}

	repo := o.repository
	if repo == nil && cfg.StateFile != "" {
		repo = state.NewFileRepository(cfg.StateFile, logger)
	}

	dispatcher := packet.NewDispatcher(packet.DispatcherConfig{
		Verbosity:    cfg.Verbosity,
		PrintPackets: cfg.PrintPackets,
	}, nil, logger)

	c := &Client{
		config:     cfg,
		opts:       o,
		desc:       desc,
		transport:  transport,
		dispatcher: dispatcher,
		logger:     logger,
		done:       make(chan struct{}),
	}

	obs := observers(o.observers)
	if cfg.MetricsAddr != "" {
		c.metrics = metrics.New()
		obs = append(obs, c.metrics)
	}
	var emitter *eventEmitterWrapper
	if o.eventHandler != nil {
		emitter = &eventEmitterWrapper{handler: o.eventHandler, desc: desc}
		obs = append(obs, emitter)
	}

	var observer lifecycle.Observer
	if len(obs) > 0 {
		observer = obs
	}
	var stateEmitter lifecycle.EventEmitter
	if emitter != nil {
		stateEmitter = emitter
	}

	c.controller = lifecycle.NewController(
		lifecycle.ControllerConfig{StateInterval: cfg.StateInterval},
		desc, transport, dispatcher, repo, logger, observer, stateEmitter,
	)

	if match != "" {
		logger.Debug("stream selection", log.String("match", match))
	}
	return c, nil
}

// Run streams until the server ends the stream, Terminate is called, or ctx
// is canceled, then saves the position. It returns the error that ended the
// session, if any. Run may only be called once.
func (c *Client) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	return c.finish(c.run(ctx))
}

func (c *Client) finish(err error) error {
	c.mu.Lock()
	c.runErr = err
	c.mu.Unlock()
	close(c.done)
	return err
}

func (c *Client) run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	initialized, err := c.initPlugins(runCtx)
	defer c.shutdownPlugins(initialized)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(runCtx)
	if c.metrics != nil {
		srv := metrics.NewServer(c.config.MetricsAddr, metrics.DefaultPath, c.metrics.Registry(), c.logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	g.Go(func() error {
		defer cancel()
		return c.controller.Run(gctx)
	})
	return g.Wait()
}

func (c *Client) initPlugins(ctx context.Context) ([]Plugin, error) {
	cfg := PluginConfig{
		ConfigPath:   c.opts.configPath,
		Logger:       c.logger,
		SetVerbosity: c.SetVerbosity,
	}
	var initialized []Plugin
	for _, p := range c.opts.plugins {
		if err := p.Initialize(ctx, cfg); err != nil {
			c.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			return initialized, fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		initialized = append(initialized, p)
		c.logger.Debug("plugin initialized", log.String("plugin", p.Name()))
	}
	return initialized, nil
}

func (c *Client) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			c.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
		} else {
			c.logger.Debug("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
}

// Start runs the session in the background and returns immediately.
// Use Stop, or Terminate and Done, to end it.
func (c *Client) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	go func() {
		err := c.finish(c.run(ctx))
		if err != nil {
			c.logger.Error("session ended with error", log.Err(err))
		}
	}()
	return nil
}

// Stop terminates a session started with Start and waits for it to finish.
// It returns the session error, or ErrShutdownTimeout if the session did
// not finish within lifecycle.ShutdownTimeout.
func (c *Client) Stop() error {
	if !c.started.Load() {
		return ErrNotRunning
	}
	c.Terminate()

	select {
	case <-c.done:
		return c.Err()
	case <-time.After(lifecycle.ShutdownTimeout):
		return ErrShutdownTimeout
	}
}

// Err returns the error the session ended with, once it has ended.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

// Done is closed when the session has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Terminate asks the session to stop after the packet in flight. It only
// sets flags and is safe to call from a signal handler goroutine.
func (c *Client) Terminate() {
	c.controller.Terminate()
}

// Status returns the current session phase.
func (c *Client) Status() State {
	return c.controller.State()
}

// Position returns the resume position. It is only stable after the session
// has ended.
func (c *Client) Position() session.Position {
	return c.desc.Position()
}

// SetVerbosity changes the log level and packet rendering at runtime.
func (c *Client) SetVerbosity(v int) {
	log.SetVerbosity(v)
	c.dispatcher.SetVerbosity(v)
	c.logger.Info("verbosity changed", log.Int("verbosity", v))
}

// Verbosity returns the current verbosity.
func (c *Client) Verbosity() int {
	return c.dispatcher.Verbosity()
}
