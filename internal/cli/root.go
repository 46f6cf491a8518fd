// Package cli builds the mapengine command tree.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Streams are the process endpoints handed to the command tree.
type Streams struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Getenv func(string) string
}

// StdStreams returns the process streams and environment.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr, Getenv: os.Getenv}
}

// rootOptions holds the persistent flag values.
type rootOptions struct {
	configPath  string
	countries   string
	adjacencies string
	logLevel    string
	logFormat   string
	metricsAddr string
	tracing     bool
	maxAttempts int

	getenv func(string) string
}

// Execute runs the command tree with args against streams.
func Execute(ctx context.Context, args []string, streams Streams) error {
	cmd := NewRootCmd(streams)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// NewRootCmd builds the root command. Without a subcommand it starts the
// interactive shell.
func NewRootCmd(streams Streams) *cobra.Command {
	opts := &rootOptions{getenv: streams.Getenv}

	cmd := &cobra.Command{
		Use:           "mapengine",
		Short:         "Query countries and cross-border routes",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, runShell)
		},
	}
	if streams.In != nil {
		cmd.SetIn(streams.In)
	}
	if streams.Out != nil {
		cmd.SetOut(streams.Out)
	}
	if streams.Err != nil {
		cmd.SetErr(streams.Err)
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	pf.StringVar(&opts.countries, "countries", "", "Path to the countries dataset (name,continent,tax per line)")
	pf.StringVar(&opts.adjacencies, "adjacencies", "", "Path to the adjacencies dataset (country,neighbor,... per line)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (disabled when empty)")
	pf.BoolVar(&opts.tracing, "tracing", false, "Enable OpenTelemetry tracing")
	pf.IntVar(&opts.maxAttempts, "max-attempts", 0, "Invalid names accepted per prompt before giving up (0 = unlimited)")

	cmd.AddCommand(
		infoCountryCmd(opts),
		routeCmd(opts),
		countriesCmd(opts),
		versionCmd(),
	)
	return cmd
}
