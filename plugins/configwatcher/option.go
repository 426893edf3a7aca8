package configwatcher

import "github.com/bft-labs/dlclient/pkg/client"

// WithConfigWatcher returns a client Option that enables config file
// watching. The client must be given its config path with
// client.WithConfigPath for the watcher to do anything.
//
// Usage:
//
//	c, err := client.New(cfg,
//	    client.WithConfigPath(path),
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) client.Option {
	plugin := New(cfg)
	return client.WithPlugin(plugin)
}

// WithDefaultConfigWatcher returns a client Option that enables config
// watching with default settings (debounce 100ms).
func WithDefaultConfigWatcher() client.Option {
	return WithConfigWatcher(DefaultConfig())
}
