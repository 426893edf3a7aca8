package session

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
)

// UnsetPacketID marks a descriptor that has no resumption position yet.
const UnsetPacketID int64 = -1

// MaxAddressLength is the longest address a checkpoint record can hold.
const MaxAddressLength = 99

// ErrInvalidAddress is returned for addresses that cannot be used as a
// checkpoint key.
var ErrInvalidAddress = errors.New("session: invalid address")

// Default transport timing.
const (
	DefaultNetTimeout     = 600 * time.Second
	DefaultReconnectDelay = 30 * time.Second
)

// Position is a resumption point: the last packet known to be processed.
type Position struct {
	PacketID   int64
	PacketTime int64
}

// IsSet reports whether the position refers to a real packet.
func (p Position) IsSet() bool {
	return p.PacketID != UnsetPacketID
}

// Descriptor is the configuration and live position of a single session.
type Descriptor struct {
	// Address identifies the remote endpoint exactly as configured.
	// It is the checkpoint key and must not change after the session starts.
	Address string

	// PacketID is the resumption cursor.
	PacketID int64

	// PacketTime is the timestamp paired with PacketID, in microseconds
	// since the epoch. It is diagnostic only.
	PacketTime int64

	// NetTimeout is how long the transport waits for any traffic before
	// re-establishing the connection. Zero disables the timeout.
	NetTimeout time.Duration

	// ReconnectDelay is the pause between connection attempts.
	ReconnectDelay time.Duration

	// Keepalive is the idle interval after which a keepalive is sent.
	// Zero disables keepalives.
	Keepalive time.Duration

	terminate atomic.Bool
}

// NewDescriptor returns a descriptor for address with default timing and no
// resumption position.
func NewDescriptor(address string) *Descriptor {
	return &Descriptor{
		Address:        address,
		PacketID:       UnsetPacketID,
		NetTimeout:     DefaultNetTimeout,
		ReconnectDelay: DefaultReconnectDelay,
	}
}

// Position returns the current resumption position.
func (d *Descriptor) Position() Position {
	return Position{PacketID: d.PacketID, PacketTime: d.PacketTime}
}

// Advance moves the resumption position to the given packet.
func (d *Descriptor) Advance(packetID, packetTime int64) {
	d.PacketID = packetID
	d.PacketTime = packetTime
}

// RequestTermination asks the session to stop after the packet in flight.
// It only performs an atomic store and is safe to call from any goroutine.
func (d *Descriptor) RequestTermination() {
	d.terminate.Store(true)
}

// TerminationRequested reports whether RequestTermination has been called.
func (d *Descriptor) TerminationRequested() bool {
	return d.terminate.Load()
}

// Validate checks the fields that must hold before a session starts.
func (d *Descriptor) Validate() error {
	if d.Address == "" {
		return fmt.Errorf("session: address is required")
	}
	if err := ValidateAddress(d.Address); err != nil {
		return err
	}
	if d.NetTimeout < 0 || d.ReconnectDelay < 0 || d.Keepalive < 0 {
		return fmt.Errorf("session: timing values must not be negative")
	}
	return nil
}

// ValidateAddress checks that addr survives a checkpoint round trip: records
// are whitespace separated and the address field is bounded.
func ValidateAddress(addr string) error {
	if len(addr) > MaxAddressLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidAddress, len(addr), MaxAddressLength)
	}
	if strings.IndexFunc(addr, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidAddress, addr)
	}
	return nil
}

// String formats the descriptor the way it is written to a checkpoint.
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s %d %d", d.Address, d.PacketID, d.PacketTime)
}
