package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Address        string `toml:"address"`
	StateFile      string `toml:"state_file"`
	StateInterval  int    `toml:"state_interval"`
	NetTimeout     string `toml:"net_timeout"`
	ReconnectDelay string `toml:"reconnect_delay"`
	Keepalive      string `toml:"keepalive"`
	Verbosity      *int   `toml:"verbosity"`
	PrintPackets   *bool  `toml:"print_packets"`
	StreamFile     string `toml:"stream_file"`
	Selectors      string `toml:"selectors"`
	Streams        string `toml:"streams"`
	InfoType       string `toml:"info"`
	MetricsAddr    string `toml:"metrics_addr"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.dlclient/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".dlclient", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("address", fc.Address, &cfg.Address)
	s.setString("state-file", fc.StateFile, &cfg.StateFile)
	s.setString("stream-file", fc.StreamFile, &cfg.StreamFile)
	s.setString("selectors", fc.Selectors, &cfg.Selectors)
	s.setString("streams", fc.Streams, &cfg.Streams)
	s.setString("info", fc.InfoType, &cfg.InfoType)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	if err := s.setDuration("net-timeout", fc.NetTimeout, &cfg.NetTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-delay", fc.ReconnectDelay, &cfg.ReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("keepalive", fc.Keepalive, &cfg.Keepalive); err != nil {
		return err
	}

	s.setInt("state-interval", fc.StateInterval, &cfg.StateInterval)
	s.setIntPtr("verbose", fc.Verbosity, &cfg.Verbosity)
	s.setBool("print-packets", fc.PrintPackets, &cfg.PrintPackets)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
