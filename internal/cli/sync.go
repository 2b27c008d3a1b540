package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cloudsync/internal/resource"
	"github.com/roach88/cloudsync/internal/store"
)

// SyncSummary reports the mapping counts after a pass.
type SyncSummary struct {
	Networks int `json:"networks"`
	Subnets  int `json:"subnets"`
	Ports    int `json:"ports"`
	Pending  int `json:"pending"` // mappings not yet ACTIVE
}

func (s SyncSummary) String() string {
	return fmt.Sprintf("Full sync complete: %d network(s), %d subnet(s), %d port(s) mapped, %d pending",
		s.Networks, s.Subnets, s.Ports, s.Pending)
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one full sync pass and exit",
		Long: `Run one full sync pass over networks, subnets and ports, then exit.

Every object on either side is compared with the mapping store: missing
copies are created, stale copies are deleted and diverged fields are
repaired with the REMOTE side winning.

Exit codes:
  0 - Pass completed
  1 - Pass aborted by a cloud error
  2 - Command error (bad config, store or cloud unreachable)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, cmd)
		},
	}
	return cmd
}

func runSync(opts *RootOptions, cmd *cobra.Command) error {
	logger := newLogger(opts, cmd.ErrOrStderr())
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts)
	if err == nil {
		err = cfg.RequireEndpoints()
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
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

	stack, err := newSyncStack(cfg, st, clouds, nil, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to build reconciler", err)
	}

	if err := stack.rec.FullSync(ctx); err != nil {
		return f.Fail(ExitFailure, ErrCodeSyncFailed, "full sync failed", err)
	}
	// Deferred events (children seen before their parents) are retried now.
	if err := stack.drain(ctx); err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "mapping store unreachable", err)
	}

	summary, err := summarize(ctx, st)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read mapping store", err)
	}
	return f.Success(summary)
}

func summarize(ctx context.Context, st *store.Store) (SyncSummary, error) {
	var s SyncSummary
	for _, kind := range resource.Kinds {
		mappings, err := st.List(ctx, kind)
		if err != nil {
			return SyncSummary{}, err
		}
		active := 0
		for _, m := range mappings {
			if m.Status == resource.StatusActive {
				active++
			} else {
				s.Pending++
			}
		}
		switch kind {
		case resource.KindNetwork:
			s.Networks = active
		case resource.KindSubnet:
			s.Subnets = active
		case resource.KindPort:
			s.Ports = active
		}
	}
	return s, nil
}
