package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridio/pkg/config"
	"github.com/ajitpratap0/gridio/pkg/fetch"
	"github.com/ajitpratap0/gridio/pkg/logger"
	"github.com/ajitpratap0/gridio/pkg/netio"
	"github.com/ajitpratap0/gridio/pkg/observability"
)

var version = "0.1.0"

// app carries what the subcommands share once the root command has loaded
// the configuration.
type app struct {
	configFile string
	cfg        *config.Config
	log        *zap.Logger
	shutdown   func(context.Context) error
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "gridio",
		Short: "gridio - persistence for power system network models",
		Long: `gridio converts power system network models between a CSV folder,
netcdf and hdf5 archives and Excel workbooks, and inspects them.
Sources may be local paths or http(s), s3 and gs URLs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to a YAML or JSON configuration file")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.Bool("trace", false, "Print OpenTelemetry spans to stderr")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gridio v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newConvertCommand(a))
	root.AddCommand(newInspectCommand(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	loader := config.NewLoader(nil)
	if err := loader.BindFlag("logging.level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}
	if err := loader.BindFlag("tracing.enabled", cmd.Flags().Lookup("trace")); err != nil {
		return err
	}
	cfg, err := loader.Load(a.configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	a.cfg = cfg

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	a.log = logger.Get().With(zap.String("component", "gridio-cli"))

	if cfg.Tracing.Enabled {
		tc := observability.DefaultTracingConfig()
		tc.ServiceVersion = version
		tc.ExporterType = cfg.Tracing.Exporter
		tc.SamplingRate = cfg.Tracing.SamplingRate
		tc.Output = cmd.ErrOrStderr()
		shutdown, err := observability.Init(tc)
		if err != nil {
			return err
		}
		a.shutdown = shutdown
	}

	netio.UseFetcher(fetch.New(cfg.Fetch, nil, a.log))
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.log != nil {
		_ = a.log.Sync()
	}
	if a.shutdown == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return a.shutdown(ctx)
}
