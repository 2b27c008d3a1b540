package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cloudsync/internal/flavorsync"
)

// FlavorSyncResult is the outcome of one flavor import pass.
type FlavorSyncResult struct {
	flavorsync.Report
}

func (r FlavorSyncResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Flavor sync complete: %d imported, %d updated, %d unchanged, %d skipped",
		len(r.Imported), len(r.Updated), len(r.Unchanged), len(r.Skipped))
	for _, group := range []struct {
		label string
		names []string
	}{
		{"imported", r.Imported},
		{"updated", r.Updated},
		{"skipped", r.Skipped},
	} {
		if len(group.names) > 0 {
			fmt.Fprintf(&b, "\n  %s: %s", group.label, strings.Join(group.names, ", "))
		}
	}
	return b.String()
}

// NewFlavorSyncCommand creates the flavor-sync command.
func NewFlavorSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flavor-sync",
		Short: "Import REMOTE flavors into LOCAL once and exit",
		Long: `Import public REMOTE flavors into the LOCAL cloud once.

Flavors are filtered by flavor_sync.allowlist and flavor_sync.denylist and by
their storage connectivity group, renamed with flavor_sync.prefix, and
created or updated on the LOCAL side. Flavors already present and unchanged
are left alone.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlavorSync(rootOpts, cmd)
		},
	}
	return cmd
}

func runFlavorSync(opts *RootOptions, cmd *cobra.Command) error {
	logger := newLogger(opts, cmd.ErrOrStderr())
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts)
	if err == nil {
		err = cfg.RequireEndpoints()
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	clouds, err := opts.connector()(ctx, cfg, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCloud, "failed to connect to clouds", err)
	}
	defer clouds.Close()

	syncer, err := newFlavorSyncer(cfg, clouds, nil, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid flavor sync settings", err)
	}

	report, err := syncer.Sync(ctx)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeSyncFailed, "flavor sync failed", err)
	}
	return f.Success(FlavorSyncResult{report})
}
