// Package packet defines the packets a session collects and the dispatcher
// that classifies, logs and renders them.
//
// Packet types form a closed set. Values outside the set can still reach the
// dispatcher if a transport misbehaves; they are logged as unknown and never
// stop the session.
package packet
