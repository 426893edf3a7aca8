// Package dlclient provides a resumable DataLink streaming client.
//
// Example usage:
//
//	cfg := dlclient.DefaultConfig()
//	cfg.Address = "ring.example.org:16000"
//	cfg.StateFile = "dlclient.state"
//	if err := dlclient.Run(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// For signal handling, plugins and events use package client directly.
package dlclient

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bft-labs/dlclient/internal/cliconfig"
	"github.com/bft-labs/dlclient/pkg/client"
	"github.com/bft-labs/dlclient/pkg/datalink"
	"github.com/bft-labs/dlclient/pkg/log"
	"github.com/bft-labs/dlclient/pkg/session"
)

// Config holds the settings of one session.
type Config = client.Config

// DefaultPort is used when the address has no port.
const DefaultPort = datalink.DefaultPort

// DefaultConfig returns a Config with the default network timing.
// At minimum, Address must be set before calling Run.
func DefaultConfig() Config {
	return Config{
		NetTimeout:     session.DefaultNetTimeout,
		ReconnectDelay: session.DefaultReconnectDelay,
	}
}

// Run streams with the given configuration, logging to stderr.
// It blocks until the server ends the stream or ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	log.SetVerbosity(cfg.Verbosity)
	c, err := client.New(cfg, client.WithLogger(log.NewZerologAdapterWithLogger(Logger())))
	if err != nil {
		return err
	}
	return c.Run(ctx)
}

// Logger returns the console logger used by the command line client.
func Logger() zerolog.Logger {
	return cliconfig.Logger()
}
