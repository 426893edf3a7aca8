package cliconfig

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/bft-labs/dlclient/pkg/log"
)

var logger = log.NewConsoleLogger(os.Stderr)

// Logger returns the command line logger.
func Logger() zerolog.Logger {
	return logger
}
