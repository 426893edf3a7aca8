// Package session holds the in-memory description of one DataLink client
// session: the endpoint it talks to, the transport timing parameters, and the
// live resumption position (packet ID and packet time) that is checkpointed
// on shutdown.
//
// A Descriptor is owned by the session controller. The only field that may
// be touched from another goroutine is the termination flag, which is an
// atomic boolean written by RequestTermination and polled by the controller
// between packets.
package session
