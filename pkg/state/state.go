package state

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bft-labs/dlclient/pkg/session"
)

// Historic line limit of the checkpoint format. Addresses are bounded by
// session.MaxAddressLength.
const maxLineLength = 200

// RecoverResult describes how a recovery attempt ended.
type RecoverResult int

const (
	// FileNotFound means the checkpoint file does not exist yet.
	FileNotFound RecoverResult = iota
	// AddressNotFound means the file was read but holds no record for the address.
	AddressNotFound
	// Found means a record was found and copied into the descriptor.
	Found
)

// String returns a human-readable representation of the result.
func (r RecoverResult) String() string {
	switch r {
	case FileNotFound:
		return "file not found"
	case AddressNotFound:
		return "address not found"
	case Found:
		return "found"
	default:
		return "unknown"
	}
}

// Record is one line of the checkpoint file.
type Record struct {
	Address    string
	PacketID   int64
	PacketTime int64
}

// Format returns the record as a newline terminated checkpoint line.
func (r Record) Format() string {
	return fmt.Sprintf("%s %d %d\n", r.Address, r.PacketID, r.PacketTime)
}

// ParseRecord parses one checkpoint line. Fields beyond the third are ignored.
func ParseRecord(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Record{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	if len(fields[0]) > session.MaxAddressLength {
		return Record{}, fmt.Errorf("address longer than %d bytes", session.MaxAddressLength)
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("packet id: %w", err)
	}
	ts, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("packet time: %w", err)
	}
	return Record{Address: fields[0], PacketID: id, PacketTime: ts}, nil
}
