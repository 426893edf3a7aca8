// Package datalink implements the collecting side of the DataLink protocol
// used by ring servers: handshake, stream selection, positioning, streaming,
// keepalives and reconnection.
//
// Every message is framed as
//
//	"DL" <header length byte> <ASCII header> [payload]
//
// where the payload length, when present, is the last field of the header.
//
// A Client is driven by a single goroutine calling Collect. Terminate may be
// called from anywhere; it only sets a flag that Collect checks between
// packets, so a packet that is partly read is always completed first.
package datalink
