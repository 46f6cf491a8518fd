package cli

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/mapengine/internal/query"
)

// version is overridden at build time with -ldflags "-X".
var version = "dev"

func infoCountryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info-country",
		Short: "Show the continent and tax fees of a country",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				_, err := s.queries.InfoCountry(ctx)
				return err
			})
		},
	}
}

func routeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "route",
		Short: "Find the fastest route between two countries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				_, err := s.queries.Route(ctx)
				return err
			})
		},
	}
}

func countriesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "countries",
		Short: "List every country in the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(_ context.Context, s *session) error {
				printCountries(s)
				return nil
			})
		},
	}
}

func printCountries(s *session) {
	countries := s.store.Countries()
	s.console.Println(s.console.Heading(fmt.Sprintf("Countries (%d)", len(countries))))
	for _, c := range countries {
		s.console.Println(query.FormatCountry(c))
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mapengine version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mapengine %s (%s)\n", resolveVersion(), runtime.Version())
		},
	}
}

func resolveVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}
