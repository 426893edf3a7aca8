// Package log provides a logging abstraction for dlclient components.
//
// This package defines a Logger interface that can be implemented by
// any logging library. Default implementations are provided for zerolog
// and a no-op logger for testing.
//
// # Usage
//
// Use the provided zerolog adapter:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Or use the no-op logger for testing:
//
//	logger := log.NewNoopLogger()
//
// # Verbosity
//
// The session tools count verbosity flags (-v, -vv). [LevelForVerbosity]
// maps a count onto a zerolog level: 0 is Info, 1 is Debug, 2 or more is
// Trace. Packet receipts are logged at Debug and keepalives at Trace.
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package log
