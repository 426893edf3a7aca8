package client

import (
	"github.com/bft-labs/dlclient/pkg/lifecycle"
	"github.com/bft-labs/dlclient/pkg/log"
	"github.com/bft-labs/dlclient/pkg/state"
)

// Option configures optional behavior of a Client.
type Option func(*options)

// options holds the optional configuration for a Client.
type options struct {
	logger       log.Logger
	eventHandler EventHandler
	plugins      []Plugin
	transport    lifecycle.Transport
	repository   state.Repository
	observers    []lifecycle.Observer
	configPath   string
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventHandler sets a handler for session events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the client runs.
// Plugins are initialized in registration order and shut down in reverse.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithTransport replaces the DataLink connection, mostly for testing.
func WithTransport(t lifecycle.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithRepository replaces the state file repository.
func WithRepository(repo state.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithObserver adds an observer of packet and checkpoint progress.
func WithObserver(obs lifecycle.Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, obs)
	}
}

// WithConfigPath records the configuration file the client was built from.
// It is handed to plugins.
func WithConfigPath(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}
