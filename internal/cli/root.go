package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	Database   string // overrides store.path

	// Connect builds the cloud clients. Nil means ConnectOpenStack; tests
	// substitute in-memory clouds.
	Connect Connector
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func (o *RootOptions) connector() Connector {
	if o.Connect != nil {
		return o.Connect
	}
	return ConnectOpenStack
}

// NewRootCommand creates the root command for the cloudsync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cloudsync",
		Short: "Keep networks, subnets and ports in step between two clouds",
		Long: `cloudsync mirrors networks, subnets and ports between a LOCAL and a
REMOTE OpenStack cloud. Changes flow both ways from each cloud's notification
bus; periodic full syncs repair anything the bus missed, and the REMOTE side
wins when both sides changed.

It also imports REMOTE flavors into LOCAL and serves a volume/compute driver
that proxies LOCAL requests to the REMOTE cloud.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the mapping store (overrides store.path)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewFlavorSyncCommand(opts))
	cmd.AddCommand(NewServeDriverCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	for _, q := range NewQueryCommands(opts) {
		cmd.AddCommand(q)
	}

	return cmd
}
