// Package cli implements the mockapi command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// Exit codes returned by Main.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitInvalid = 2
)

// errInvalid marks failures caused by invalid project files, reported with
// ExitInvalid.
var errInvalid = errors.New("validation failed")

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	logLevel   string
	logFormat  string
	logFile    string
	jsonOutput bool
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "mockapi",
		Short: "mockapi serves canned HTTP responses described by per-project JSON files",
		Long: `mockapi is a mock API server. Each project is a JSON document under
<db-root>/projects/<name>.json describing endpoints, request matchers and the
responses to send. Projects are created and replaced over HTTP and served at
/projects/<name>/<endpoint path>.

Settings come from flags, environment variables (PORT, MAX_CONNECTIONS,
MOCK_SERVER_DB_ROOT, MOCKAPI_*) and an optional YAML file given with --config
or MOCKAPI_CONFIG, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true, // Main prints errors
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "Settings file (YAML)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&g.logFile, "log-file", "", "Also append log records to this file")
	pf.BoolVar(&g.jsonOutput, "json", false, "Output command results in JSON format")

	root.AddCommand(
		newServeCommand(g),
		newValidateCommand(g),
		newSchemaCommand(),
		newVersionCommand(g),
	)
	return root
}

// Main runs the command line with os.Args and returns the process exit code.
func Main() int {
	return run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		if errors.Is(err, errInvalid) {
			return ExitInvalid
		}
		return ExitError
	}
	return ExitOK
}
