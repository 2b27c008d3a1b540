package cli

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/roach88/cloudsync/internal/store"
)

// ServeDriverOptions holds flags for the serve-driver command.
type ServeDriverOptions struct {
	*RootOptions
	Listen string
}

// NewServeDriverCommand creates the serve-driver command.
func NewServeDriverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeDriverOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve-driver",
		Short: "Serve only the volume/compute driver service",
		Long: `Serve the volume/compute driver over gRPC without running the sync service.

LOCAL volume and instance requests are proxied to the REMOTE cloud; the
REMOTE id of each created resource is kept in the mapping store's record
metadata under "cloudsync:id".

Example:
  cloudsync serve-driver -c cloudsync.yaml --listen 127.0.0.1:7443`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeDriver(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "gRPC listen address (overrides driver.listen)")
	return cmd
}

func runServeDriver(opts *ServeDriverOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err == nil {
		err = cfg.RequireEndpoints()
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	if opts.Listen != "" {
		cfg.Driver.Listen = opts.Listen
	}
	if cfg.Driver.Listen == "" {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "no listen address: set driver.listen or --listen", nil)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open mapping store", err)
	}
	defer st.Close()

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	clouds, err := opts.connector()(ctx, cfg, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCloud, "failed to connect to clouds", err)
	}
	defer clouds.Close()

	d, err := newDriver(cfg, st, clouds, nil, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to build driver", err)
	}

	lis, err := net.Listen("tcp", cfg.Driver.Listen)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to listen for driver requests", err)
	}
	f.VerboseLog("driver service listening on %s", lis.Addr())
	if err := serveDriver(ctx, lis, d, logger); err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "driver service stopped", err)
	}
	return nil
}
