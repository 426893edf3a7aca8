package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/dlclient/pkg/client"
	"github.com/bft-labs/dlclient/pkg/session"
)

// Config holds CLI configuration for dlclient.
type Config struct {
	Address string

	StateFile     string
	StateInterval int

	NetTimeout     time.Duration
	ReconnectDelay time.Duration
	Keepalive      time.Duration

	Verbosity    int
	PrintPackets bool

	StreamFile string
	Selectors  string
	Streams    string

	InfoType    string
	MetricsAddr string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		NetTimeout:     session.DefaultNetTimeout,
		ReconnectDelay: session.DefaultReconnectDelay,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server address is required")
	}
	if c.StateInterval < 0 {
		return fmt.Errorf("state interval must not be negative")
	}
	if c.NetTimeout < 0 || c.ReconnectDelay < 0 || c.Keepalive < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Verbosity < 0 {
		return fmt.Errorf("verbosity must not be negative")
	}
	if c.StreamFile != "" && c.Streams != "" {
		return fmt.Errorf("stream-file and streams are mutually exclusive")
	}
	return nil
}

// ClientConfig converts the CLI configuration to the library configuration.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		Address:        c.Address,
		StateFile:      c.StateFile,
		StateInterval:  c.StateInterval,
		NetTimeout:     c.NetTimeout,
		ReconnectDelay: c.ReconnectDelay,
		Keepalive:      c.Keepalive,
		Verbosity:      c.Verbosity,
		PrintPackets:   c.PrintPackets,
		StreamFile:     c.StreamFile,
		Streams:        c.Streams,
		Selectors:      c.Selectors,
		InfoType:       c.InfoType,
		MetricsAddr:    c.MetricsAddr,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int value from a pointer, zero included, if the flag
// is not changed.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
// "0" is accepted and disables the corresponding timer.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
