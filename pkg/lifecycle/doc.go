// Package lifecycle drives a resumable session: it recovers the checkpoint,
// runs the collect/dispatch loop, and persists the final position on the way
// out.
//
// # Usage
//
//	ctrl := lifecycle.NewController(lifecycle.ControllerConfig{StateInterval: 100},
//	    desc, transport, dispatcher, repo, logger, observer, nil)
//
//	go func() {
//	    <-sigCh
//	    ctrl.Terminate() // atomic stores only
//	}()
//
//	if err := ctrl.Run(ctx); err != nil {
//	    logger.Error("session ended", log.Err(err))
//	}
//
// # State Machine
//
// Valid state transitions:
//   - Configuring -> Streaming, Draining
//   - Streaming -> Draining
//   - Draining -> Terminated
//
// Terminated is final. A controller runs once.
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
//
// See version.go for version constants that can be used programmatically.
package lifecycle
