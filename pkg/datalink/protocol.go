package datalink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the conventional DataLink port.
const DefaultPort = "16000"

const maxHeaderLength = 255

const (
	// DefaultMaxPacketSize bounds PACKET payloads when the server does not
	// announce PACKETSIZE in its identification.
	DefaultMaxPacketSize = 16384

	// maxMessageSize bounds every other payload, such as INFO XML.
	maxMessageSize = 16 << 20
)

// ErrProtocol is returned for frames that violate the DataLink framing.
var ErrProtocol = errors.New("datalink: protocol error")

// frame is one DataLink message.
type frame struct {
	header string
	data   []byte
}

func (f frame) command() string {
	if i := strings.IndexByte(f.header, ' '); i >= 0 {
		return f.header[:i]
	}
	return f.header
}

// writeFrame writes one framed message.
func writeFrame(w io.Writer, header string, data []byte) error {
	if len(header) > maxHeaderLength {
		return fmt.Errorf("%w: header of %d bytes", ErrProtocol, len(header))
	}
	buf := make([]byte, 0, 3+len(header)+len(data))
	buf = append(buf, 'D', 'L', byte(len(header)))
	buf = append(buf, header...)
	buf = append(buf, data...)
	_, err := w.Write(buf)
	return err
}

// readFrame reads one framed message including its payload. PACKET payloads
// larger than maxPacket are rejected before anything is allocated.
func readFrame(r *bufio.Reader, maxPacket int) (frame, error) {
	var pre [3]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return frame{}, err
	}
	if pre[0] != 'D' || pre[1] != 'L' {
		return frame{}, fmt.Errorf("%w: bad preheader %q", ErrProtocol, pre[:2])
	}
	hdr := make([]byte, int(pre[2]))
	if _, err := io.ReadFull(r, hdr); err != nil {
		return frame{}, err
	}
	f := frame{header: string(hdr)}

	size, err := payloadSize(f.header)
	if err != nil {
		return frame{}, err
	}
	limit := maxMessageSize
	if f.command() == "PACKET" {
		limit = maxPacket
	}
	if size > limit {
		return frame{}, fmt.Errorf("%w: payload of %d bytes exceeds %d in %q", ErrProtocol, size, limit, f.header)
	}
	if size > 0 {
		f.data = make([]byte, size)
		if _, err := io.ReadFull(r, f.data); err != nil {
			return frame{}, err
		}
	}
	return f, nil
}

// payloadSize extracts the payload length announced by a header.
func payloadSize(header string) (int, error) {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty header", ErrProtocol)
	}
	var sizeField string
	switch fields[0] {
	case "PACKET":
		if len(fields) != 7 {
			return 0, fmt.Errorf("%w: PACKET header has %d fields", ErrProtocol, len(fields))
		}
		sizeField = fields[6]
	case "MATCH", "REJECT":
		if len(fields) < 2 {
			return 0, nil
		}
		sizeField = fields[1]
	case "OK", "ERROR", "INFO":
		if len(fields) < 3 {
			return 0, nil
		}
		sizeField = fields[2]
	default:
		return 0, nil
	}
	n, err := strconv.Atoi(sizeField)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad size %q in %q", ErrProtocol, sizeField, header)
	}
	return n, nil
}

// packetHeader is a parsed PACKET header.
type packetHeader struct {
	streamID   string
	id         int64
	packetTime int64
	dataStart  int64
	dataEnd    int64
	size       int
}

func parsePacketHeader(header string) (packetHeader, error) {
	fields := strings.Fields(header)
	if len(fields) != 7 || fields[0] != "PACKET" {
		return packetHeader{}, fmt.Errorf("%w: bad PACKET header %q", ErrProtocol, header)
	}
	var (
		h   = packetHeader{streamID: fields[1]}
		err error
	)
	nums := []*int64{&h.id, &h.packetTime, &h.dataStart, &h.dataEnd}
	for i, dst := range nums {
		if *dst, err = strconv.ParseInt(fields[2+i], 10, 64); err != nil {
			return packetHeader{}, fmt.Errorf("%w: bad PACKET header %q", ErrProtocol, header)
		}
	}
	if h.size, err = strconv.Atoi(fields[6]); err != nil {
		return packetHeader{}, fmt.Errorf("%w: bad PACKET header %q", ErrProtocol, header)
	}
	return h, nil
}

// serverPacketSize returns the PACKETSIZE capability of an ID reply such as
// "ID DataLink 2018.078 :: DLPROTO:1.0 PACKETSIZE:512 WRITE".
func serverPacketSize(header string) (int, bool) {
	for _, field := range strings.Fields(header) {
		v, ok := strings.CutPrefix(field, "PACKETSIZE:")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// NormalizeAddress fills in the conventions of the address argument:
// ":port" means localhost and a bare host uses DefaultPort.
func NormalizeAddress(addr string) string {
	if addr == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(strings.Trim(addr, "[]"), DefaultPort)
	}
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = DefaultPort
	}
	return net.JoinHostPort(host, port)
}
