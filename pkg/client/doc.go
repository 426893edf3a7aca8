// Package client provides an embeddable, resumable DataLink client.
//
// A Client streams packets from a ring server, routes each one through the
// packet dispatcher, and remembers the position of the last packet it
// processed in a state file so that the next run resumes where this one
// stopped.
//
// # Basic Usage
//
//	cfg := client.Config{
//	    Address:   "ring.example.org:16000",
//	    StateFile: "/var/lib/dlclient/state",
//	    Streams:   "IU_KONO:BHZ,GE_WLF",
//	}
//
//	c, err := client.New(cfg, client.WithLogger(log.NewZerologAdapter()))
//	if err != nil {
//	    return err
//	}
//
//	go func() {
//	    <-sigCh
//	    c.Terminate()
//	}()
//
//	return c.Run(ctx)
//
// Terminate only sets flags. The packet in flight is finished, the connection
// is closed, and the final position is written before Run returns.
//
// # Background Operation
//
// Start runs the session in a goroutine; Stop terminates it and waits up to
// lifecycle.ShutdownTimeout for the final save.
//
// # Plugins
//
// Plugins registered with WithPlugin are initialized before streaming starts
// and shut down in reverse order after the session ends. They receive a
// PluginConfig with the logger, the config file path and a hook to change
// verbosity at runtime.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package client
