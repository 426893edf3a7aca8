package datalink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bft-labs/dlclient/pkg/log"
	"github.com/bft-labs/dlclient/pkg/packet"
	"github.com/bft-labs/dlclient/pkg/session"
)

var (
	// ErrTerminated is returned by Collect once Terminate has been called.
	ErrTerminated = fmt.Errorf("datalink: terminated: %w", io.EOF)

	// ErrEndOfStream is returned by Collect when the server ends the stream.
	ErrEndOfStream = fmt.Errorf("datalink: server ended stream: %w", io.EOF)

	// ErrServer is returned when the server rejects a request that a
	// reconnect would not fix.
	ErrServer = errors.New("datalink: server error")
)

const (
	pollInterval       = 250 * time.Millisecond
	frameTimeout       = 30 * time.Second
	defaultDialTimeout = 10 * time.Second

	// Reconnect delays grow up to this multiple of the configured delay.
	maxReconnectFactor = 8
)

// Config contains the protocol options of a Client. Timing and the resume
// position come from the session descriptor.
type Config struct {
	// ClientID is sent with the ID command. Defaults to DefaultClientID().
	ClientID string

	// Match is a stream ID regular expression sent with MATCH.
	Match string

	// InfoType, when set, is requested once with INFO before streaming.
	// The response is delivered as a packet.TypeInfoTerminated packet.
	InfoType string

	DialTimeout time.Duration
}

// Client is a DataLink streaming client bound to one session descriptor.
type Client struct {
	cfg     Config
	desc    *session.Descriptor
	addr    string
	logger  log.Logger
	backoff *Backoff

	conn      net.Conn
	rd        *bufio.Reader
	connected atomic.Bool
	terminate atomic.Bool

	maxPacket     int
	seq           int
	infoDone      bool
	pending       []packet.Packet
	lastRecv      time.Time
	lastKeepalive time.Time
	serverID      string
}

// NewClient creates a client for desc. It does not connect until the first
// call to Collect.
func NewClient(desc *session.Descriptor, cfg Config, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Client{
		cfg:     cfg,
		desc:    desc,
		addr:    NormalizeAddress(desc.Address),
		logger:  logger,
		backoff: NewBackoff(desc.ReconnectDelay, maxReconnectFactor*desc.ReconnectDelay),
	}
}

// DefaultClientID identifies this program, user, process and platform.
func DefaultClientID() string {
	name := "unknown"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	return fmt.Sprintf("dlclient:%s:%d:%s-%s", name, os.Getpid(), runtime.GOOS, runtime.GOARCH)
}

// Connected reports whether the client is streaming from the server.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Terminate makes Collect return ErrTerminated at the next packet boundary.
func (c *Client) Terminate() {
	c.terminate.Store(true)
}

// ServerID returns the identification of the last server connected to.
func (c *Client) ServerID() string {
	return c.serverID
}

// Collect returns the next packet, connecting and reconnecting as needed.
// Keepalive replies are returned as packet.TypeKeepalive packets.
func (c *Client) Collect(ctx context.Context) (packet.Packet, error) {
	for {
		if len(c.pending) > 0 {
			p := c.pending[0]
			c.pending = c.pending[1:]
			return p, nil
		}
		if c.terminate.Load() {
			return packet.Packet{}, ErrTerminated
		}
		if err := ctx.Err(); err != nil {
			return packet.Packet{}, err
		}

		if c.conn == nil {
			if err := c.connect(ctx); err != nil {
				if errors.Is(err, ErrServer) || errors.Is(err, ErrProtocol) {
					return packet.Packet{}, err
				}
				delay := c.backoff.Next()
				c.logger.Warn("connection failed",
					log.String("address", c.addr),
					log.Err(err),
					log.Duration("retry_in", delay),
				)
				c.sleep(ctx, delay)
			}
			continue
		}

		p, ok, err := c.poll()
		switch {
		case errors.Is(err, ErrEndOfStream), errors.Is(err, ErrServer), errors.Is(err, ErrProtocol):
			c.closeConn()
			return packet.Packet{}, err
		case err != nil:
			c.logger.Warn("connection lost, reconnecting",
				log.String("address", c.addr),
				log.Err(err),
			)
			c.closeConn()
			continue
		case ok:
			return p, nil
		}

		if err := c.idle(); err != nil {
			c.logger.Warn("reconnecting", log.String("address", c.addr), log.Err(err))
			c.closeConn()
		}
	}
}

// Disconnect ends the stream and closes the connection.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	if c.connected.Load() {
		if err := c.send("ENDSTREAM", nil); err != nil {
			c.logger.Debug("failed to send ENDSTREAM", log.Err(err))
		}
	}
	err := c.conn.Close()
	c.conn = nil
	c.rd = nil
	c.connected.Store(false)
	if err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	c.logger.Info("disconnected", log.String("address", c.addr))
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	c.conn = conn
	c.rd = bufio.NewReader(conn)
	c.seq = 0
	c.maxPacket = DefaultMaxPacketSize

	if err := c.handshake(); err != nil {
		c.closeConn()
		return err
	}

	c.connected.Store(true)
	c.backoff.Reset()
	c.lastRecv = time.Now()
	c.lastKeepalive = c.lastRecv
	c.logger.Info("streaming",
		log.String("address", c.addr),
		log.String("server", c.serverID),
	)
	return nil
}

func (c *Client) handshake() error {
	resp, err := c.request("ID "+c.cfg.ClientID, nil)
	if err != nil {
		return err
	}
	if resp.command() != "ID" || !strings.HasPrefix(resp.header, "ID DataLink") {
		return fmt.Errorf("%w: unexpected identification %q", ErrServer, resp.header)
	}
	c.serverID = strings.TrimPrefix(resp.header, "ID ")
	if n, ok := serverPacketSize(resp.header); ok {
		c.maxPacket = n
	}

	if c.cfg.InfoType != "" && !c.infoDone {
		resp, err := c.request("INFO "+c.cfg.InfoType, nil)
		if err != nil {
			return err
		}
		if resp.command() != "INFO" {
			return fmt.Errorf("%w: INFO %s: %s", ErrServer, c.cfg.InfoType, responseText(resp))
		}
		c.pending = append(c.pending, packet.Packet{
			Type:     packet.TypeInfoTerminated,
			StreamID: c.cfg.InfoType,
			ID:       session.UnsetPacketID,
			Payload:  resp.data,
			Size:     len(resp.data),
		})
		c.infoDone = true
	}

	if c.cfg.Match != "" {
		resp, err := c.request(fmt.Sprintf("MATCH %d", len(c.cfg.Match)), []byte(c.cfg.Match))
		if err != nil {
			return err
		}
		if resp.command() != "OK" {
			return fmt.Errorf("%w: MATCH: %s", ErrServer, responseText(resp))
		}
		c.logger.Debug("stream selection accepted", log.String("match", c.cfg.Match))
	}

	if pos := c.desc.Position(); pos.IsSet() {
		resp, err := c.request(fmt.Sprintf("POSITION SET %d %d", pos.PacketID, pos.PacketTime), nil)
		if err != nil {
			return err
		}
		if resp.command() == "OK" {
			c.logger.Info("resuming",
				log.Int64("packet_id", pos.PacketID),
				log.Int64("packet_time", pos.PacketTime),
			)
		} else {
			c.logger.Warn("cannot resume, streaming from current position",
				log.Int64("packet_id", pos.PacketID),
				log.String("reason", responseText(resp)),
			)
		}
	}

	return c.send("STREAM", nil)
}

// poll waits up to pollInterval for the start of a frame. Once a frame has
// started it is read to completion.
func (c *Client) poll() (packet.Packet, bool, error) {
	c.setReadDeadline(pollInterval)
	if _, err := c.rd.Peek(1); err != nil {
		if isTimeout(err) {
			return packet.Packet{}, false, nil
		}
		return packet.Packet{}, false, err
	}

	c.setReadDeadline(c.frameTimeout())
	f, err := readFrame(c.rd, c.maxPacket)
	if err != nil {
		return packet.Packet{}, false, err
	}
	c.lastRecv = time.Now()

	switch f.command() {
	case "PACKET":
		h, err := parsePacketHeader(f.header)
		if err != nil {
			return packet.Packet{}, false, err
		}
		typ := packet.TypeGeneral
		if strings.HasSuffix(h.streamID, "/MSEED") {
			typ = packet.Classify(f.data)
		}
		c.seq++
		return packet.Packet{
			Type:     typ,
			StreamID: h.streamID,
			Sequence: c.seq,
			ID:       h.id,
			Time:     h.packetTime,
			Payload:  f.data,
			Size:     len(f.data),
		}, true, nil
	case "ID":
		c.seq++
		return packet.Packet{
			Type:     packet.TypeKeepalive,
			Sequence: c.seq,
			ID:       session.UnsetPacketID,
		}, true, nil
	case "ENDSTREAM":
		return packet.Packet{}, false, ErrEndOfStream
	case "ERROR":
		return packet.Packet{}, false, fmt.Errorf("%w: %s", ErrServer, responseText(f))
	default:
		c.logger.Debug("ignoring message", log.String("header", f.header))
		return packet.Packet{}, false, nil
	}
}

// idle runs the keepalive and network timeout checks while no data arrives.
func (c *Client) idle() error {
	now := time.Now()
	silent := now.Sub(c.lastRecv)
	if nt := c.desc.NetTimeout; nt > 0 && silent >= nt {
		return fmt.Errorf("no data for %s", silent.Truncate(time.Second))
	}
	if ka := c.desc.Keepalive; ka > 0 && silent >= ka && now.Sub(c.lastKeepalive) >= ka {
		c.lastKeepalive = now
		c.logger.Trace("sending keepalive")
		if err := c.send("ID "+c.cfg.ClientID, nil); err != nil {
			return fmt.Errorf("send keepalive: %w", err)
		}
	}
	return nil
}

func (c *Client) request(header string, data []byte) (frame, error) {
	if err := c.send(header, data); err != nil {
		return frame{}, err
	}
	c.setReadDeadline(c.frameTimeout())
	f, err := readFrame(c.rd, c.maxPacket)
	if err != nil {
		return frame{}, fmt.Errorf("read response to %s: %w", strings.Fields(header)[0], err)
	}
	return f, nil
}

func (c *Client) send(header string, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.frameTimeout())); err != nil {
		c.logger.Debug("failed to set write deadline", log.Err(err))
	}
	if err := writeFrame(c.conn, header, data); err != nil {
		return fmt.Errorf("send %s: %w", strings.Fields(header)[0], err)
	}
	return nil
}

func (c *Client) setReadDeadline(d time.Duration) {
	if err := c.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		c.logger.Debug("failed to set read deadline", log.Err(err))
	}
}

func (c *Client) closeConn() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("failed to close connection", log.Err(err))
		}
	}
	c.conn = nil
	c.rd = nil
	c.connected.Store(false)
}

func (c *Client) frameTimeout() time.Duration {
	if nt := c.desc.NetTimeout; nt > 0 && nt < frameTimeout {
		return nt
	}
	return frameTimeout
}

// sleep waits for d, returning early on termination or cancellation.
func (c *Client) sleep(ctx context.Context, d time.Duration) {
	deadline := time.Now().Add(d)
	for !c.terminate.Load() && ctx.Err() == nil {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		t := time.NewTimer(min(remaining, pollInterval))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func responseText(f frame) string {
	if len(f.data) > 0 {
		return strings.TrimSpace(string(f.data))
	}
	return f.header
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
