package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/getmockd/mockapi/pkg/config"
	"github.com/getmockd/mockapi/pkg/engine"
	"github.com/getmockd/mockapi/pkg/logging"
)

// serveFlags hold the command-line overrides for config.Config. Only flags
// the user actually set are applied.
type serveFlags struct {
	host            string
	port            int
	maxConnections  int
	dbRoot          string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	maxBodyBytes    int64
	strictBody      bool
}

func newServeCommand(g *globalFlags) *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mock server",
		Long: `Start the mock server and serve until interrupted.

On SIGINT or SIGTERM the server stops accepting connections and waits up to
the shutdown timeout for in-flight requests, including delayed responses.`,
		Example: `  # Serve ./database on the default port
  mockapi serve

  # Listen on all interfaces with a different database
  mockapi serve --host 0.0.0.0 --port 8080 --db-root /srv/mocks`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSettings(g)
			if err != nil {
				return err
			}
			f.apply(cmd.Flags(), &cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			log, closeLog, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			srv, err := engine.New(cfg, engine.WithLogger(log))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.host, "host", config.DefaultHost, "Interface to listen on")
	fl.IntVarP(&f.port, "port", "p", config.DefaultPort, "Port to listen on (0 picks a free port)")
	fl.IntVar(&f.maxConnections, "max-connections", config.DefaultMaxConnections, "Maximum connections handled concurrently")
	fl.StringVar(&f.dbRoot, "db-root", config.DefaultDBRoot, "Database root holding projects/<name>.json")
	fl.DurationVar(&f.readTimeout, "read-timeout", config.DefaultReadTimeout, "Time allowed to read a request")
	fl.DurationVar(&f.writeTimeout, "write-timeout", config.DefaultWriteTimeout, "Time allowed to write a response")
	fl.DurationVar(&f.shutdownTimeout, "shutdown-timeout", config.DefaultShutdownTimeout, "Time allowed for in-flight requests on shutdown")
	fl.Int64Var(&f.maxBodyBytes, "max-body-bytes", config.DefaultMaxBodyBytes, "Largest accepted request body")
	fl.BoolVar(&f.strictBody, "strict-body", true, "Match request bodies by deep equality; false allows extra fields")
	return cmd
}

func (f *serveFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("host") {
		cfg.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("max-connections") {
		cfg.MaxConnections = f.maxConnections
	}
	if fs.Changed("db-root") {
		cfg.DBRoot = f.dbRoot
	}
	if fs.Changed("read-timeout") {
		cfg.ReadTimeout = f.readTimeout
	}
	if fs.Changed("write-timeout") {
		cfg.WriteTimeout = f.writeTimeout
	}
	if fs.Changed("shutdown-timeout") {
		cfg.ShutdownTimeout = f.shutdownTimeout
	}
	if fs.Changed("max-body-bytes") {
		cfg.MaxBodyBytes = f.maxBodyBytes
	}
	if fs.Changed("strict-body") {
		cfg.StrictBody = f.strictBody
	}
}

// loadSettings resolves defaults, the settings file and the environment, then
// the global logging flags.
func loadSettings(g *globalFlags) (config.Config, error) {
	cfg, err := config.Load(g.configFile, os.Getenv)
	if err != nil {
		return cfg, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if g.logFile != "" {
		cfg.Log.File = g.logFile
	}
	return cfg, nil
}

// newLogger writes to stderr and, when configured, to the log file. The
// returned close function releases the file.
func newLogger(cmd *cobra.Command, cfg config.Config) (*slog.Logger, func(), error) {
	lc := cfg.Logging()
	lc.Output = cmd.ErrOrStderr()
	closeFn := func() {}
	if cfg.Log.File != "" {
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return nil, nil, err
		}
		lc.Extra = append(lc.Extra, f)
		closeFn = func() { _ = f.Close() }
	}
	return logging.New(lc), closeFn, nil
}
