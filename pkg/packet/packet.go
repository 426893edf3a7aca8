package packet

import "github.com/bft-labs/dlclient/pkg/session"

// Packet is one unit delivered by a transport.
type Packet struct {
	Type Type

	// StreamID names the stream, e.g. "IU_KONO_00_BHZ/MSEED".
	StreamID string

	// Sequence is the per-connection sequence number assigned by the transport.
	Sequence int

	// ID and Time are the server's packet identity and time. ID is
	// session.UnsetPacketID for packets that carry no position, such as
	// keepalives and info responses.
	ID   int64
	Time int64

	Payload []byte
	Size    int
}

// HasPosition reports whether the packet can advance a resumption position.
func (p Packet) HasPosition() bool {
	return p.ID != session.UnsetPacketID
}
