package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cloudsync/internal/harness"
)

// ValidationIssue is one problem found by validate.
type ValidationIssue struct {
	Source  string `json:"source"` // "config" or a scenario path
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Config    string            `json:"config"`
	Scenarios int               `json:"scenarios"`
	Errors    []ValidationIssue `json:"errors,omitempty"`
}

func (r ValidationResult) String() string {
	src := r.Config
	if src == "" {
		src = "defaults and environment"
	}
	msg := fmt.Sprintf("Configuration valid (%s)", src)
	if r.Scenarios > 0 {
		msg += fmt.Sprintf("; %d scenario(s) valid", r.Scenarios)
	}
	return msg
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	RequireEndpoints bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [scenarios-dir...]",
		Short: "Check the configuration and scenario files without connecting",
		Long: `Check the configuration (file given by --config plus CLOUDSYNC_*
environment overrides) against the schema, and parse every scenario file in
the given directories. Nothing is contacted.

Use --endpoints to also require auth_url and bus_url on both sides, as run
and sync do.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.RequireEndpoints, "endpoints", false, "require both endpoints to be configured")
	return cmd
}

func runValidate(opts *ValidateOptions, dirs []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	result := ValidationResult{Config: opts.ConfigFile}

	cfg, err := loadConfig(opts.RootOptions)
	if err == nil && opts.RequireEndpoints {
		err = cfg.RequireEndpoints()
	}
	if err != nil {
		result.Errors = append(result.Errors, ValidationIssue{Source: "config", Code: ErrCodeConfig, Message: err.Error()})
	} else {
		f.VerboseLog("Configuration ok: store %s, queue capacity %d", cfg.Store.Path, cfg.Reconciler.EventQueueCapacity)
	}

	for _, dir := range dirs {
		if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
			result.Errors = append(result.Errors, ValidationIssue{Source: dir, Code: ErrCodeNotFound, Message: "scenarios directory not found"})
			continue
		}
		files, err := findScenarioFiles(dir, "")
		if err != nil {
			result.Errors = append(result.Errors, ValidationIssue{Source: dir, Code: ErrCodeGeneric, Message: err.Error()})
			continue
		}
		for _, file := range files {
			if _, err := harness.LoadScenario(file); err != nil {
				result.Errors = append(result.Errors, ValidationIssue{Source: file, Code: ErrCodeScenario, Message: err.Error()})
				continue
			}
			f.VerboseLog("Scenario ok: %s", file)
			result.Scenarios++
		}
	}

	if len(result.Errors) == 0 {
		result.Valid = true
		return f.Success(result)
	}

	if f.Format == "json" {
		if err := f.Error(result.Errors[0].Code, fmt.Sprintf("%d validation error(s)", len(result.Errors)), result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, issue := range result.Errors {
			fmt.Fprintf(w, "Error [%s] %s: %s\n", issue.Code, issue.Source, issue.Message)
		}
	}
	codes := make([]string, 0, len(result.Errors))
	for _, issue := range result.Errors {
		codes = append(codes, issue.Code)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed [%s]", strings.Join(codes, ", ")))
}
