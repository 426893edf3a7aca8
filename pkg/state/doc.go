// Package state provides checkpoint persistence for resumable sessions.
//
// A checkpoint file is a flat text ledger with one record per line:
//
//	<address> <packetID> <packetTime>
//
// Saving writes exactly one line for the session being saved, replacing any
// previous content. Recovery scans the file line by line and takes the first
// record whose address equals the session address; later duplicates are never
// inspected. Lines that do not carry three parseable fields are logged and
// skipped, so one corrupt line never hides the records after it.
//
// # Usage
//
//	repo := state.NewFileRepository("/var/lib/dlclient/state", logger)
//
//	res, err := repo.Recover(ctx, desc)
//	if err != nil {
//	    logger.Error("state recovery failed", log.Err(err))
//	}
//
//	// ... stream ...
//
//	if err := repo.Save(ctx, desc); err != nil {
//	    logger.Error("state save failed", log.Err(err))
//	}
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
//
// See version.go for version constants that can be used programmatically.
package state
