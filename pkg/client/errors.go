package client

import "errors"

// Client errors. They can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Run or Start is called on a client
	// that has already been started. A client runs once.
	ErrAlreadyRunning = errors.New("dlclient: already running")

	// ErrNotRunning is returned when Stop is called before Start.
	ErrNotRunning = errors.New("dlclient: not running")

	// ErrShutdownTimeout is returned when Stop gives up waiting.
	ErrShutdownTimeout = errors.New("dlclient: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("dlclient: invalid configuration")
)
