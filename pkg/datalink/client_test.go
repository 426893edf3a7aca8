package datalink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/dlclient/pkg/packet"
	"github.com/bft-labs/dlclient/pkg/session"
)

const testServerID = "ID DataLink 2018.078 :: DLPROTO:1.0 PACKETSIZE:512"

const testInfo = `<DataLink Version="2018.078"><Status /></DataLink>`

type handlerFunc func(n int, conn net.Conn, rd *bufio.Reader)

// startServer serves each accepted connection with handler. n counts
// connections from zero.
func startServer(t *testing.T, handler handlerFunc) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	t.Cleanup(func() {
		ln.Close()
		wg.Wait()
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := 0; ; n++ {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				defer conn.Close()
				handler(n, conn, bufio.NewReader(conn))
			}(n)
		}
	}()
	return ln.Addr().String()
}

// handshake answers client requests until STREAM, recording every header.
func handshake(conn net.Conn, rd *bufio.Reader, seen chan<- string) bool {
	for {
		f, err := readFrame(rd, DefaultMaxPacketSize)
		if err != nil {
			return false
		}
		if seen != nil {
			seen <- f.header
		}
		switch f.command() {
		case "ID":
			err = writeFrame(conn, testServerID, nil)
		case "MATCH", "POSITION":
			err = writeFrame(conn, "OK 1 0", nil)
		case "INFO":
			err = writeFrame(conn, fmt.Sprintf("INFO STATUS %d", len(testInfo)), []byte(testInfo))
		case "STREAM":
			return true
		}
		if err != nil {
			return false
		}
	}
}

// drain reads until the client goes away, recording every header.
func drain(rd *bufio.Reader, seen chan<- string) {
	for {
		f, err := readFrame(rd, DefaultMaxPacketSize)
		if err != nil {
			return
		}
		if seen != nil {
			seen <- f.header
		}
	}
}

func sendPacket(conn net.Conn, streamID string, id, ts int64, data []byte) error {
	header := fmt.Sprintf("PACKET %s %d %d %d %d %d", streamID, id, ts, ts, ts, len(data))
	return writeFrame(conn, header, data)
}

func collected(seen chan string) []string {
	var out []string
	for {
		select {
		case h := <-seen:
			out = append(out, h)
		default:
			return out
		}
	}
}

func newTestClient(t *testing.T, addr string, cfg Config) (*Client, *session.Descriptor) {
	t.Helper()
	desc := session.NewDescriptor(addr)
	desc.ReconnectDelay = 10 * time.Millisecond
	if cfg.ClientID == "" {
		cfg.ClientID = "dlclient:test"
	}
	c := NewClient(desc, cfg, nil)
	t.Cleanup(func() { _ = c.Disconnect() })
	return c, desc
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_StreamsUntilServerEnds(t *testing.T) {
	seen := make(chan string, 64)
	addr := startServer(t, func(n int, conn net.Conn, rd *bufio.Reader) {
		if !handshake(conn, rd, seen) {
			return
		}
		_ = sendPacket(conn, "XX_TEST/JSON", 1, 1000, []byte(`{"a":1}`))
		_ = sendPacket(conn, "XX_TEST/JSON", 2, 2000, []byte(`{"a":2}`))
		_ = writeFrame(conn, "ENDSTREAM", nil)
		drain(rd, nil)
	})
	c, _ := newTestClient(t, addr, Config{})
	ctx := testContext(t)

	p, err := c.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, packet.TypeGeneral, p.Type)
	assert.Equal(t, "XX_TEST/JSON", p.StreamID)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, int64(1000), p.Time)
	assert.Equal(t, 1, p.Sequence)
	assert.Equal(t, []byte(`{"a":1}`), p.Payload)
	assert.True(t, c.Connected())

	p, err = c.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ID)
	assert.Equal(t, 2, p.Sequence)

	_, err = c.Collect(ctx)
	assert.ErrorIs(t, err, ErrEndOfStream)
	assert.ErrorIs(t, err, io.EOF)
	assert.False(t, c.Connected())

	assert.Equal(t, []string{"ID dlclient:test", "STREAM"}, collected(seen))
	assert.Contains(t, c.ServerID(), "DataLink 2018.078")
}

func TestClient_ResumeAndMatch(t *testing.T) {
	seen := make(chan string, 64)
	addr := startServer(t, func(n int, conn net.Conn, rd *bufio.Reader) {
		if !handshake(conn, rd, seen) {
			return
		}
		_ = sendPacket(conn, "IU_KONO_00_BHZ/MSEED", 43, 5000, []byte("not a record"))
		drain(rd, nil)
	})
	c, desc := newTestClient(t, addr, Config{Match: "^IU_KONO_.*$"})
	desc.Advance(42, 4000)

	p, err := c.Collect(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, int64(43), p.ID)
	assert.Equal(t, packet.TypeGeneral, p.Type)

	assert.Equal(t, []string{
		"ID dlclient:test",
		fmt.Sprintf("MATCH %d", len("^IU_KONO_.*$")),
		"POSITION SET 42 4000",
		"STREAM",
	}, collected(seen))
}

func TestClient_ResumeRejectedStreamsFromCurrent(t *testing.T) {
	addr := startServer(t, func(n int, conn net.Conn, rd *bufio.Reader) {
		for {
			f, err := readFrame(rd, DefaultMaxPacketSize)
			if err != nil {
				return
			}
			switch f.command() {
			case "ID":
				_ = writeFrame(conn, testServerID, nil)
			case "POSITION":
				msg := "Packet not found"
				_ = writeFrame(conn, fmt.Sprintf("ERROR 0 %d", len(msg)), []byte(msg))
			case "STREAM":
				_ = sendPacket(conn, "XX_TEST/JSON", 900, 9000, []byte("x"))
				drain(rd, nil)
				return
			}
		}
	})
	c, desc := newTestClient(t, addr, Config{})
	desc.Advance(42, 4000)

	p, err := c.Collect(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, int64(900), p.ID)
}

func TestClient_InfoRequest(t *testing.T) {
	seen := make(chan string, 64)
	addr := startServer(t, func(n int, conn net.Conn, rd *bufio.Reader) {
		if !handshake(conn, rd, seen) {
			return
		}
		_ = sendPacket(conn, "XX_TEST/JSON", 1, 1000, []byte("x"))
		drain(rd, nil)
	})
	c, _ := newTestClient(t, addr, Config{InfoType: "STATUS"})
	ctx := testContext(t)

	p, err := c.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, packet.TypeInfoTerminated, p.Type)
	assert.Equal(t, []byte(testInfo), p.Payload)
	assert.False(t, p.HasPosition())

	p, err = c.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)

	assert.Equal(t, []string{"ID dlclient:test", "INFO STATUS", "STREAM"}, collected(seen))
}

func TestClient_ServerRejectsMatch(t *testing.T) {
	addr := startServer(t, func(n int, conn net.Conn, rd *bufio.Reader) {
		for {
			f, err := readFrame(rd, DefaultMaxPacketSize)
			if err != nil {
				return
			}
			switch f.command() {
			case "ID":
				_ = writeFrame(conn, testServerID, nil)
			case "MATCH":
				msg := "invalid regular expression"
				_ = writeFrame(conn, fmt.Sprintf("ERROR 0 %d", len(msg)), []byte(msg))
			}
		}
	})
	c, _ := newTestClient(t, addr, Config{Match: "("})

	_, err := c.Collect(testContext(t))
	assert.ErrorIs(t, err, ErrServer)
	assert.Contains(t, err.Error(), "invalid regular expression")
	assert.False(t, c.Connected())
}

func TestClient_OversizedPacketIsProtocolError(t *testing.T) {
	addr := startServer(t, func(n int, conn net.Conn, rd *bufio.Reader) {
		if n > 0 || !handshake(conn, rd, nil) {
			return
		}
		_ = sendPacket(conn, "XX_TEST/JSON", 1, 1000, []byte("x"))
		// testServerID announces PACKETSIZE:512.
		_ = sendPacket(conn, "XX_TEST/JSON", 2, 2000, make([]byte, 600))
		drain(rd, nil)
	})
	c, _ := newTestClient(t, addr, Config{})
	ctx := testContext(t)

	p, err := c.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)

	_, err = c.Collect(ctx)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.False(t, c.Connected())
}

func TestClient_ReconnectsAndResumes(t *testing.T) {
	seen := make(chan string, 64)
	addr := startServer(t, func(n int, conn net.Conn, rd *bufio.Reader) {
		if n == 0 {
			if handshake(conn, rd, nil) {
				_ = sendPacket(conn, "XX_TEST/JSON", 1, 1000, []byte("x"))
			}
			return
		}
		if !handshake(conn, rd, seen) {
			return
		}
		_ = sendPacket(conn, "XX_TEST/JSON", 2, 2000, []byte("y"))
		drain(rd, nil)
	})
	c, desc := newTestClient(t, addr, Config{})
	ctx := testContext(t)

	p, err := c.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), p.ID)
	desc.Advance(p.ID, p.Time)

	p, err = c.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ID)
	assert.Equal(t, 1, p.Sequence)

	assert.Contains(t, collected(seen), "POSITION SET 1 1000")
}

func TestClient_NetTimeoutReconnects(t *testing.T) {
	var mu sync.Mutex
	connections := 0
	addr := startServer(t, func(n int, conn net.Conn, rd *bufio.Reader) {
		mu.Lock()
		connections++
		mu.Unlock()
		if !handshake(conn, rd, nil) {
			return
		}
		if n > 0 {
			_ = sendPacket(conn, "XX_TEST/JSON", 7, 7000, []byte("x"))
		}
		drain(rd, nil)
	})
	c, desc := newTestClient(t, addr, Config{})
	desc.NetTimeout = 300 * time.Millisecond

	p, err := c.Collect(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, connections)
}

func TestClient_Keepalive(t *testing.T) {
	seen := make(chan string, 64)
	addr := startServer(t, func(n int, conn net.Conn, rd *bufio.Reader) {
		if !handshake(conn, rd, nil) {
			return
		}
		for {
			f, err := readFrame(rd, DefaultMaxPacketSize)
			if err != nil {
				return
			}
			seen <- f.header
			if f.command() == "ID" {
				_ = writeFrame(conn, testServerID, nil)
			}
		}
	})
	c, desc := newTestClient(t, addr, Config{})
	desc.Keepalive = 100 * time.Millisecond

	p, err := c.Collect(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, packet.TypeKeepalive, p.Type)
	assert.False(t, p.HasPosition())
	assert.Equal(t, []string{"ID dlclient:test"}, collected(seen))
}

func TestClient_TerminateWhileStreaming(t *testing.T) {
	seen := make(chan string, 64)
	addr := startServer(t, func(n int, conn net.Conn, rd *bufio.Reader) {
		if !handshake(conn, rd, nil) {
			return
		}
		_ = sendPacket(conn, "XX_TEST/JSON", 1, 1000, []byte("x"))
		drain(rd, seen)
	})
	c, _ := newTestClient(t, addr, Config{})
	ctx := testContext(t)

	_, err := c.Collect(ctx)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		c.Terminate()
	}()
	_, err = c.Collect(ctx)
	assert.ErrorIs(t, err, ErrTerminated)
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, c.Connected())

	require.NoError(t, c.Disconnect())
	assert.False(t, c.Connected())
	assert.Eventually(t, func() bool {
		for _, h := range collected(seen) {
			if h == "ENDSTREAM" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestClient_TerminateBeforeConnect(t *testing.T) {
	c, _ := newTestClient(t, "127.0.0.1:1", Config{})
	c.Terminate()

	_, err := c.Collect(context.Background())
	assert.ErrorIs(t, err, ErrTerminated)
	assert.False(t, c.Connected())
	assert.NoError(t, c.Disconnect())
}

func TestClient_TerminateDuringReconnectDelay(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c, desc := newTestClient(t, addr, Config{})
	desc.ReconnectDelay = time.Hour
	c.backoff = NewBackoff(desc.ReconnectDelay, maxReconnectFactor*desc.ReconnectDelay)

	done := make(chan error, 1)
	go func() {
		_, err := c.Collect(context.Background())
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	c.Terminate()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTerminated)
	case <-time.After(2 * time.Second):
		t.Fatal("Collect did not return after Terminate")
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	addr := startServer(t, func(n int, conn net.Conn, rd *bufio.Reader) {
		if handshake(conn, rd, nil) {
			drain(rd, nil)
		}
	})
	c, _ := newTestClient(t, addr, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err := c.Collect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
