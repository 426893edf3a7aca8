package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (DLCLIENT_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("address", os.Getenv("DLCLIENT_ADDRESS"), &cfg.Address)
	s.setString("state-file", os.Getenv("DLCLIENT_STATE_FILE"), &cfg.StateFile)
	s.setString("stream-file", os.Getenv("DLCLIENT_STREAM_FILE"), &cfg.StreamFile)
	s.setString("selectors", os.Getenv("DLCLIENT_SELECTORS"), &cfg.Selectors)
	s.setString("streams", os.Getenv("DLCLIENT_STREAMS"), &cfg.Streams)
	s.setString("info", os.Getenv("DLCLIENT_INFO"), &cfg.InfoType)
	s.setString("metrics-addr", os.Getenv("DLCLIENT_METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setDuration("net-timeout", os.Getenv("DLCLIENT_NET_TIMEOUT"), &cfg.NetTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-delay", os.Getenv("DLCLIENT_RECONNECT_DELAY"), &cfg.ReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("keepalive", os.Getenv("DLCLIENT_KEEPALIVE"), &cfg.Keepalive); err != nil {
		return err
	}

	if err := s.setIntFromString("state-interval", os.Getenv("DLCLIENT_STATE_INTERVAL"), &cfg.StateInterval); err != nil {
		return err
	}
	if err := s.setIntFromString("verbose", os.Getenv("DLCLIENT_VERBOSITY"), &cfg.Verbosity); err != nil {
		return err
	}

	s.setBoolFromString("print-packets", os.Getenv("DLCLIENT_PRINT_PACKETS"), &cfg.PrintPackets)

	return nil
}
