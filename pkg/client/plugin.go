package client

import (
	"context"

	"github.com/bft-labs/dlclient/pkg/log"
)

// Plugin extends a Client with optional behavior.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize is called before streaming starts. ctx is canceled when
	// the session ends. An error aborts the run.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called after the session ends, in reverse registration
	// order.
	Shutdown(ctx context.Context) error
}

// PluginConfig is what a plugin gets from the client.
type PluginConfig struct {
	// ConfigPath is the configuration file the client was loaded from,
	// if any.
	ConfigPath string

	Logger log.Logger

	// SetVerbosity changes logging and packet rendering verbosity at
	// runtime.
	SetVerbosity func(v int)
}
