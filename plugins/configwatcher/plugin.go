// Package configwatcher reloads runtime-adjustable settings when the
// configuration file changes. Currently that is the verbosity, which
// controls both the log level and how much of each data record is printed.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/dlclient/internal/cliconfig"
	"github.com/bft-labs/dlclient/pkg/client"
	"github.com/bft-labs/dlclient/pkg/log"
)

// Plugin watches the configuration file and applies verbosity changes.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	debounceDelay time.Duration

	// Runtime state
	path         string
	logger       log.Logger
	setVerbosity func(int)
	verbosity    *int
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	debounce     *time.Timer
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		debounceDelay: cfg.DebounceDelay,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize records the current file settings and starts watching.
func (p *Plugin) Initialize(ctx context.Context, cfg client.PluginConfig) error {
	p.mu.Lock()
	p.path = cfg.ConfigPath
	p.logger = cfg.Logger
	p.setVerbosity = cfg.SetVerbosity
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	p.mu.Unlock()

	if p.path == "" || p.setVerbosity == nil {
		p.logger.Debug("config watcher disabled: no config file")
		return nil
	}

	// The file may not exist yet; it is picked up when created.
	if fc, err := cliconfig.LoadFileConfig(p.path); err == nil {
		p.verbosity = fc.Verbosity
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory so that editors replacing the file are noticed.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("watching config file", log.String("path", p.path))
	return nil
}

// Shutdown stops the watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload applies the verbosity from the file if it differs from the last
// value seen there.
func (p *Plugin) reload() {
	fc, err := cliconfig.LoadFileConfig(p.path)
	if err != nil {
		p.logger.Warn("config reload failed", log.String("path", p.path), log.Err(err))
		return
	}

	p.mu.Lock()
	v := fc.Verbosity
	changed := v != nil && (p.verbosity == nil || *p.verbosity != *v)
	if v != nil {
		p.verbosity = v
	}
	p.mu.Unlock()

	if !changed {
		p.logger.Debug("config reloaded, nothing to apply", log.String("path", p.path))
		return
	}
	if *v < 0 {
		p.logger.Warn("ignoring negative verbosity", log.Int("verbosity", *v))
		return
	}
	p.setVerbosity(*v)
}

// Ensure Plugin implements client.Plugin.
var _ client.Plugin = (*Plugin)(nil)
