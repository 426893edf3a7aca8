package client

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/dlclient/pkg/lifecycle"
	"github.com/bft-labs/dlclient/pkg/packet"
)

// listTransport returns its packets in order, then io.EOF.
type listTransport struct {
	packets   []packet.Packet
	next      int
	connected bool
	terminate atomic.Bool
}

func (t *listTransport) Collect(ctx context.Context) (packet.Packet, error) {
	if t.terminate.Load() || t.next >= len(t.packets) {
		return packet.Packet{}, io.EOF
	}
	t.connected = true
	p := t.packets[t.next]
	t.next++
	return p, nil
}

func (t *listTransport) Disconnect() error {
	t.connected = false
	return nil
}

func (t *listTransport) Terminate()      { t.terminate.Store(true) }
func (t *listTransport) Connected() bool { return t.connected }

// blockingTransport blocks in Collect until terminated.
type blockingTransport struct {
	stop chan struct{}
	once sync.Once
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{stop: make(chan struct{})}
}

func (t *blockingTransport) Collect(ctx context.Context) (packet.Packet, error) {
	select {
	case <-t.stop:
		return packet.Packet{}, io.EOF
	case <-ctx.Done():
		return packet.Packet{}, ctx.Err()
	}
}

func (t *blockingTransport) Disconnect() error { return nil }
func (t *blockingTransport) Terminate()        { t.once.Do(func() { close(t.stop) }) }
func (t *blockingTransport) Connected() bool   { return false }

func general(id int64) packet.Packet {
	return packet.Packet{Type: packet.TypeGeneral, StreamID: "XX_TEST/JSON", ID: id, Time: id * 10, Size: 1}
}

type recordingHandler struct {
	BaseEventHandler
	mu          sync.Mutex
	states      []State
	checkpoints []CheckpointEvent
}

func (h *recordingHandler) OnStateChange(e StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, e.Current)
}

func (h *recordingHandler) OnCheckpoint(e CheckpointEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkpoints = append(h.checkpoints, e)
}

type recordingPlugin struct {
	name   string
	events *[]string
	err    error
	cfg    PluginConfig
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) Initialize(ctx context.Context, cfg PluginConfig) error {
	*p.events = append(*p.events, "init:"+p.name)
	p.cfg = cfg
	return p.err
}

func (p *recordingPlugin) Shutdown(ctx context.Context) error {
	*p.events = append(*p.events, "shutdown:"+p.name)
	return nil
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"minimal", Config{Address: "host:16000"}, true},
		{"missing address", Config{}, false},
		{"negative interval", Config{Address: "h", StateInterval: -1}, false},
		{"negative timeout", Config{Address: "h", NetTimeout: -time.Second}, false},
		{"negative verbosity", Config{Address: "h", Verbosity: -1}, false},
		{"streams and file", Config{Address: "h", Streams: "IU_KONO", StreamFile: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestNew_InvalidSelection(t *testing.T) {
	_, err := New(Config{Address: "host", Streams: "IUKONO"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{Address: "host", Selectors: "B"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_UnrecoverableAddress(t *testing.T) {
	_, err := New(Config{Address: "my host:16000"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "whitespace")

	_, err = New(Config{Address: strings.Repeat("h", 120)})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{Address: "host"})
	require.NoError(t, err)
	assert.Equal(t, StateConfiguring, c.Status())
	assert.False(t, c.Position().IsSet())
	assert.Equal(t, 0, c.Verbosity())
}

func TestClient_RunSavesAndResumes(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state")
	handler := &recordingHandler{}

	c, err := New(Config{Address: "host:16000", StateFile: stateFile},
		WithTransport(&listTransport{packets: []packet.Packet{general(1), general(2)}}),
		WithEventHandler(handler),
	)
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background()))

	data, err := os.ReadFile(stateFile)
	require.NoError(t, err)
	assert.Equal(t, "host:16000 2 20\n", string(data))
	assert.Equal(t, StateTerminated, c.Status())
	assert.Equal(t, []State{StateStreaming, StateDraining, StateTerminated}, handler.states)
	require.Len(t, handler.checkpoints, 2)
	assert.Equal(t, lifecycle.CheckpointRecover, handler.checkpoints[0].Op)
	assert.Equal(t, lifecycle.CheckpointFinal, handler.checkpoints[1].Op)
	assert.Equal(t, int64(2), handler.checkpoints[1].Position.PacketID)
	assert.NoError(t, handler.checkpoints[1].Err)

	var resumedFrom int64
	tr := &listTransport{packets: []packet.Packet{general(3)}}
	c2, err := New(Config{Address: "host:16000", StateFile: stateFile},
		WithTransport(tr),
		WithEventHandler(&checkpointHook{fn: func(e CheckpointEvent) {
			if e.Op == lifecycle.CheckpointRecover {
				resumedFrom = e.Position.PacketID
			}
		}}),
	)
	require.NoError(t, err)
	require.NoError(t, c2.Run(context.Background()))
	assert.Equal(t, int64(2), resumedFrom)
	assert.Equal(t, int64(3), c2.Position().PacketID)

	assert.ErrorIs(t, c2.Run(context.Background()), ErrAlreadyRunning)
}

type checkpointHook struct {
	BaseEventHandler
	fn func(CheckpointEvent)
}

func (h *checkpointHook) OnCheckpoint(e CheckpointEvent) { h.fn(e) }

func TestClient_Plugins(t *testing.T) {
	var events []string
	a := &recordingPlugin{name: "a", events: &events}
	b := &recordingPlugin{name: "b", events: &events}

	c, err := New(Config{Address: "host"},
		WithTransport(&listTransport{}),
		WithPlugin(a),
		WithPlugin(b),
		WithConfigPath("/etc/dlclient.toml"),
	)
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"init:a", "init:b", "shutdown:b", "shutdown:a"}, events)
	assert.Equal(t, "/etc/dlclient.toml", a.cfg.ConfigPath)
	require.NotNil(t, a.cfg.SetVerbosity)

	a.cfg.SetVerbosity(2)
	t.Cleanup(func() { c.SetVerbosity(0) })
	assert.Equal(t, 2, c.Verbosity())
}

func TestClient_PluginInitFailure(t *testing.T) {
	var events []string
	a := &recordingPlugin{name: "a", events: &events}
	b := &recordingPlugin{name: "b", events: &events, err: errors.New("boom")}
	tr := &listTransport{packets: []packet.Packet{general(1)}}

	c, err := New(Config{Address: "host"}, WithTransport(tr), WithPlugin(a), WithPlugin(b))
	require.NoError(t, err)

	err = c.Run(context.Background())
	assert.ErrorContains(t, err, "plugin b")
	assert.Equal(t, []string{"init:a", "init:b", "shutdown:a"}, events)
	assert.Equal(t, 0, tr.next)
}

func TestClient_StartStop(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state")
	c, err := New(Config{Address: "host", StateFile: stateFile}, WithTransport(newBlockingTransport()))
	require.NoError(t, err)

	assert.ErrorIs(t, c.Stop(), ErrNotRunning)
	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	require.Eventually(t, func() bool {
		return c.Status() == StateStreaming
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Stop())
	assert.Equal(t, StateTerminated, c.Status())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}

	data, err := os.ReadFile(stateFile)
	require.NoError(t, err)
	assert.Equal(t, "host -1 0\n", string(data))
}

func TestClient_ContextCancel(t *testing.T) {
	c, err := New(Config{Address: "host"}, WithTransport(newBlockingTransport()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, c.Run(ctx))
	assert.Equal(t, StateTerminated, c.Status())
}

func TestClient_MetricsServerFailureEndsSession(t *testing.T) {
	c, err := New(Config{Address: "host", MetricsAddr: "127.0.0.1:99999"}, WithTransport(newBlockingTransport()))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "metrics listen")
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, StateTerminated, c.Status())
}

func TestModuleVersions(t *testing.T) {
	require.NoError(t, validateModuleVersions())
	versions := ModuleVersions()
	assert.Equal(t, Version, versions["client"])
	assert.Contains(t, versions, "state")

	assert.True(t, isVersionCompatible("2.0.0", "1.9.9"))
	assert.True(t, isVersionCompatible("1.2.3", "1.2.3"))
	assert.False(t, isVersionCompatible("1.2.2", "1.2.3"))
	assert.False(t, isVersionCompatible("0.9.0", "1.0.0"))
}
