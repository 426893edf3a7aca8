package client

import (
	"fmt"
	"time"

	"github.com/bft-labs/dlclient/pkg/datalink"
	"github.com/bft-labs/dlclient/pkg/session"
)

// Config holds the settings of one session.
type Config struct {
	// Address is the server as given by the user, e.g. "host:16000" or
	// ":16000". It is also the key of the state file record.
	Address string

	// StateFile is where the resume position is kept. Empty disables
	// recovery and saving.
	StateFile string

	// StateInterval saves the position every this many packets in
	// addition to the save at shutdown. Zero saves only at shutdown.
	StateInterval int

	// NetTimeout reconnects after this long without traffic. Zero disables.
	NetTimeout time.Duration

	// ReconnectDelay is the first pause between connection attempts.
	ReconnectDelay time.Duration

	// Keepalive sends a keepalive after this long idle. Zero disables.
	Keepalive time.Duration

	Verbosity    int
	PrintPackets bool

	// Stream selection. StreamFile and Streams are mutually exclusive;
	// Selectors are the defaults for entries without their own, or apply
	// to all stations when neither is set.
	StreamFile string
	Streams    string
	Selectors  string

	// InfoType requests server information of this type before streaming.
	InfoType string

	// ClientID overrides the identification sent to the server.
	ClientID string

	// MetricsAddr serves Prometheus metrics on this address when set.
	MetricsAddr string
}

// SetDefaults fills in zero values that have a default.
func (c *Config) SetDefaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = session.DefaultReconnectDelay
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: server address is required", ErrInvalidConfig)
	}
	if c.StateInterval < 0 {
		return fmt.Errorf("%w: state interval must not be negative", ErrInvalidConfig)
	}
	if c.NetTimeout < 0 || c.ReconnectDelay < 0 || c.Keepalive < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	if c.Verbosity < 0 {
		return fmt.Errorf("%w: verbosity must not be negative", ErrInvalidConfig)
	}
	if c.StreamFile != "" && c.Streams != "" {
		return fmt.Errorf("%w: stream file and stream list are mutually exclusive", ErrInvalidConfig)
	}
	return nil
}

// MatchPattern compiles the stream selection into a MATCH expression.
// An empty result selects every stream.
func (c *Config) MatchPattern() (string, error) {
	var (
		streams []datalink.Stream
		err     error
	)
	switch {
	case c.StreamFile != "":
		streams, err = datalink.ReadStreamList(c.StreamFile, c.Selectors)
	case c.Streams != "":
		streams, err = datalink.ParseStreamList(c.Streams, c.Selectors)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	pattern, err := datalink.MatchPattern(streams, c.Selectors)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return pattern, nil
}
