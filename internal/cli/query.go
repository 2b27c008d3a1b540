package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cloudsync/internal/resource"
	"github.com/roach88/cloudsync/internal/store"
)

// MappingView is the output form of one mapping row.
type MappingView struct {
	Kind       string `json:"kind"`
	SyncKey    string `json:"sync_key"`
	Status     string `json:"status"`
	LocalID    string `json:"local_id"`
	RemoteID   string `json:"remote_id"`
	UpdateData string `json:"update_data,omitempty"`
}

func newMappingView(m resource.Mapping) MappingView {
	return MappingView{
		Kind:       string(m.Kind),
		SyncKey:    m.SyncKey,
		Status:     string(m.Status),
		LocalID:    m.LocalID,
		RemoteID:   m.RemoteID,
		UpdateData: m.UpdateData,
	}
}

func (v MappingView) String() string {
	var b strings.Builder
	for _, kv := range [][2]string{
		{"kind", v.Kind},
		{"sync_key", v.SyncKey},
		{"status", v.Status},
		{"local_id", orDash(v.LocalID)},
		{"remote_id", orDash(v.RemoteID)},
		{"update_data", orDash(v.UpdateData)},
	} {
		fmt.Fprintf(&b, "%-12s %s\n", kv[0]+":", kv[1])
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// NewQueryCommands creates the read-only mapping store queries.
func NewQueryCommands(rootOpts *RootOptions) []*cobra.Command {
	var cmds []*cobra.Command
	for _, kind := range resource.Kinds {
		cmds = append(cmds, newGetCommand(rootOpts, kind), newListCommand(rootOpts, kind))
	}
	cmds = append(cmds,
		newTranslateCommand(rootOpts, "get_local_network_uuid", resource.KindNetwork, resource.Remote),
		newTranslateCommand(rootOpts, "get_remote_network_uuid", resource.KindNetwork, resource.Local),
		newTranslateCommand(rootOpts, "get_remote_port_uuid", resource.KindPort, resource.Local),
	)
	return cmds
}

func newGetCommand(rootOpts *RootOptions, kind resource.Kind) *cobra.Command {
	return &cobra.Command{
		Use:           fmt.Sprintf("get_%s <sync_key>", kind),
		Short:         fmt.Sprintf("Show the %s mapping for a sync key", kind),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				m, err := st.Get(ctx, kind, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no %s mapping for sync key %q", kind, args[0]), nil)
				}
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, "failed to read mapping store", err)
				}
				return f.Success(newMappingView(m))
			})
		},
	}
}

func newListCommand(rootOpts *RootOptions, kind resource.Kind) *cobra.Command {
	return &cobra.Command{
		Use:           fmt.Sprintf("get_%ss", kind),
		Short:         fmt.Sprintf("List all %s mappings", kind),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				mappings, err := st.List(ctx, kind)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, "failed to read mapping store", err)
				}
				views := make([]MappingView, 0, len(mappings))
				rows := make([][]string, 0, len(mappings))
				for _, m := range mappings {
					views = append(views, newMappingView(m))
					rows = append(rows, []string{string(m.Status), orDash(m.LocalID), orDash(m.RemoteID), m.SyncKey})
				}
				return f.Table([]string{"STATUS", "LOCAL_ID", "REMOTE_ID", "SYNC_KEY"}, rows, views)
			})
		},
	}
}

func newTranslateCommand(rootOpts *RootOptions, use string, kind resource.Kind, from resource.Side) *cobra.Command {
	to := from.Opposite()
	field := strings.ToLower(string(to)) + "_id"
	return &cobra.Command{
		Use:           fmt.Sprintf("%s <%s_id>", use, strings.ToLower(string(from))),
		Short:         fmt.Sprintf("Print the %s id of a %s %s", to, from, kind),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				id, err := st.Translate(ctx, kind, from, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no %s id for %s %s %s", to, from, kind, args[0]), nil)
				}
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, "failed to read mapping store", err)
				}
				if f.Format == "json" {
					return f.Success(map[string]string{field: id})
				}
				return f.Success(id)
			})
		},
	}
}

// withStore opens the mapping store read-only for fn.
func withStore(opts *RootOptions, cmd *cobra.Command, fn func(context.Context, *store.Store, *OutputFormatter) error) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	cfg, err := loadConfig(opts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	st, err := store.OpenReadOnly(cfg.Store.Path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open mapping store", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, st, f)
}
