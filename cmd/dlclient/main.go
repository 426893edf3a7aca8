package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/dlclient/internal/cliconfig"
	"github.com/bft-labs/dlclient/pkg/client"
	"github.com/bft-labs/dlclient/pkg/log"
	"github.com/bft-labs/dlclient/plugins/configwatcher"
)

const helpDescription = `
Collect packets from a DataLink ring server and resume where the last run
stopped.

The position of the last processed packet is written to the state file on
shutdown (and every --state-interval packets), keyed by the server address.
On start the first record for the same address is used to resume.

Stream selection:
  -S takes NET_STA[:selectors] entries separated by commas, -l reads a file
  with one "NET STA [selectors]" entry per line, and -s gives default
  selectors. Selectors have the form [LL]CCC[.T] with ? and * wildcards.

Settings are read from the config file, then DLCLIENT_* environment
variables, then flags. Changing verbosity in the config file takes effect
without a restart.
`

var exampleUsage = strings.TrimSpace(`
  dlclient ring.example.org:16000 -x dlclient.state -v
  dlclient :16000 -S IU_KONO:BHZ,GE_WLF -s "BH? HH?" -p
  dlclient ring.example.org --info STATUS
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logger := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "dlclient [host][:port]",
		Short:   "Resumable DataLink streaming client",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s (client %s) %s/%s", getVersion(), client.Version, runtime.GOOS, runtime.GOARCH),
		Args:    cobra.MaximumNArgs(1),
		// Errors are logged below; usage is only shown for flag errors.
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
			if len(args) == 1 {
				cfg.Address = args[0]
				changed["address"] = true
			}

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides the file but not explicit flags.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			log.SetVerbosity(cfg.Verbosity)
			logger.Debug().Interface("config", cfg).Msg("configuration")

			adapter := log.NewZerologAdapterWithLogger(logger)
			c, err := client.New(cfg.ClientConfig(),
				client.WithLogger(adapter),
				client.WithConfigPath(cfgFile),
				configwatcher.WithDefaultConfigWatcher(),
			)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 2)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
			signal.Ignore(syscall.SIGHUP, syscall.SIGPIPE)
			defer signal.Stop(sigCh)

			go func() {
				select {
				case sig := <-sigCh:
					logger.Info().Str("signal", sig.String()).Msg("terminating, finishing current packet")
					c.Terminate()
				case <-ctx.Done():
					return
				}
				select {
				case <-sigCh:
					logger.Warn().Msg("second signal, aborting")
					cancel()
				case <-ctx.Done():
				}
			}()

			if err := c.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("session ended with error")
			}
			pos := c.Position()
			logger.Info().
				Int64("packet_id", pos.PacketID).
				Int64("packet_time", pos.PacketTime).
				Msg("session terminated")
			return nil
		},
	}

	// Flags
	flags := root.Flags()
	flags.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.dlclient/config.toml)")
	flags.CountVarP(&cfg.Verbosity, "verbose", "v", "increase verbosity, repeat for more detail")
	flags.BoolVarP(&cfg.PrintPackets, "print-packets", "p", cfg.PrintPackets, "print details of every data packet")

	flags.DurationVar(&cfg.NetTimeout, "net-timeout", cfg.NetTimeout, "reconnect after this long without data (0 disables)")
	flags.DurationVar(&cfg.ReconnectDelay, "reconnect-delay", cfg.ReconnectDelay, "delay between connection attempts")
	flags.DurationVar(&cfg.Keepalive, "keepalive", cfg.Keepalive, "send keepalives after this long idle (0 disables)")

	flags.StringVarP(&cfg.StateFile, "state-file", "x", cfg.StateFile, "file to save and resume the stream position")
	flags.IntVar(&cfg.StateInterval, "state-interval", cfg.StateInterval, "also save the state every N packets")

	flags.StringVarP(&cfg.StreamFile, "stream-file", "l", cfg.StreamFile, "file listing NET STA [selectors] per line")
	flags.StringVarP(&cfg.Selectors, "selectors", "s", cfg.Selectors, "default selectors, e.g. \"BH? HH?\"")
	flags.StringVarP(&cfg.Streams, "streams", "S", cfg.Streams, "stream list: NET_STA[:selectors],...")

	flags.StringVar(&cfg.InfoType, "info", cfg.InfoType, "request server information of this type before streaming")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("dlclient")
		os.Exit(1)
	}
}
