package flavorsync

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// SCGExtraSpec is the extra spec naming a flavor's storage connectivity group.
const SCGExtraSpec = "powervm:storage_connectivity_group"

// ErrNotFound is returned by a Sink when the flavor does not exist.
var ErrNotFound = errors.New("flavor not found")

// Flavor is a compute template.
type Flavor struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	VCPUs      int               `json:"vcpus"`
	RAM        int               `json:"ram"`
	Disk       int               `json:"disk"`
	Swap       int               `json:"swap"`
	Ephemeral  int               `json:"ephemeral"`
	RxTxFactor float64           `json:"rxtx_factor"`
	IsPublic   bool              `json:"is_public"`
	ExtraSpecs map[string]string `json:"extra_specs,omitempty"`
}

// Source lists the REMOTE flavors.
type Source interface {
	ListFlavors(ctx context.Context) ([]Flavor, error)
}

// Sink reads and writes LOCAL flavors.
type Sink interface {
	GetFlavor(ctx context.Context, id string) (Flavor, error)
	CreateFlavor(ctx context.Context, f Flavor) (Flavor, error)
	UpdateExtraSpecs(ctx context.Context, id string, specs map[string]string) error
}

// Config holds the flavor_sync settings.
type Config struct {
	Prefix string
	// Allowlist is a gate: when non-empty a name must match one pattern.
	Allowlist []string
	// Denylist always excludes.
	Denylist    []string
	AllowedSCGs []string
}

// Report summarizes one pass. Names are REMOTE flavor names.
type Report struct {
	Imported  []string `json:"imported"`
	Updated   []string `json:"updated"`
	Unchanged []string `json:"unchanged"`
	Skipped   []string `json:"skipped"`
}

// Recorder observes pass results. metrics.Collector implements it.
type Recorder interface {
	FlavorsSynced(r Report)
}

// Syncer copies eligible REMOTE public flavors into LOCAL.
type Syncer struct {
	source   Source
	sink     Sink
	prefix   string
	allow    []*regexp.Regexp
	deny     []*regexp.Regexp
	scgs     map[string]bool
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Syncer.
type Option func(*Syncer)

func WithLogger(l *slog.Logger) Option { return func(s *Syncer) { s.logger = l } }

func WithRecorder(r Recorder) Option { return func(s *Syncer) { s.recorder = r } }

// New compiles the patterns. Each pattern must match the whole flavor name.
func New(cfg Config, source Source, sink Sink, opts ...Option) (*Syncer, error) {
	allow, err := compileAll(cfg.Allowlist)
	if err != nil {
		return nil, fmt.Errorf("flavor allowlist: %w", err)
	}
	deny, err := compileAll(cfg.Denylist)
	if err != nil {
		return nil, fmt.Errorf("flavor denylist: %w", err)
	}
	s := &Syncer{
		source: source,
		sink:   sink,
		prefix: cfg.Prefix,
		allow:  allow,
		deny:   deny,
		scgs:   make(map[string]bool, len(cfg.AllowedSCGs)),
		logger: slog.Default(),
	}
	for _, id := range cfg.AllowedSCGs {
		s.scgs[id] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`^(?:` + p + `)$`)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, name string) bool {
	return slices.ContainsFunc(res, func(re *regexp.Regexp) bool { return re.MatchString(name) })
}

// Skip returns why f is not imported, or "" when it is eligible.
func (s *Syncer) Skip(f Flavor) string {
	switch {
	case !f.IsPublic:
		return "not public"
	case len(s.allow) > 0 && !matchAny(s.allow, f.Name):
		return "not in allowlist"
	case matchAny(s.deny, f.Name):
		return "in denylist"
	}
	if scg, ok := f.ExtraSpecs[SCGExtraSpec]; ok && !s.scgs[scg] {
		return fmt.Sprintf("storage connectivity group %q not allowed", scg)
	}
	return ""
}

// Local returns the LOCAL copy of f: prefixed id and name, created public.
func (s *Syncer) Local(f Flavor) Flavor {
	out := f
	out.ID = s.prefix + f.ID
	out.Name = s.prefix + f.Name
	out.IsPublic = true
	out.ExtraSpecs = maps.Clone(f.ExtraSpecs)
	return out
}

// Sync runs one pass. A failure on one flavor is logged and the pass
// continues; the first such error is returned with the report.
func (s *Syncer) Sync(ctx context.Context) (Report, error) {
	var report Report
	remote, err := s.source.ListFlavors(ctx)
	if err != nil {
		return report, fmt.Errorf("list remote flavors: %w", err)
	}
	slices.SortFunc(remote, func(a, b Flavor) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID, b.ID))
	})

	var firstErr error
	for _, f := range remote {
		if reason := s.Skip(f); reason != "" {
			s.logger.Debug("skipping flavor", "flavor", f.Name, "reason", reason)
			report.Skipped = append(report.Skipped, f.Name)
			continue
		}
		outcome, err := s.syncOne(ctx, s.Local(f))
		if err != nil {
			s.logger.Warn("flavor sync failed", "flavor", f.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		switch outcome {
		case "imported":
			report.Imported = append(report.Imported, f.Name)
		case "updated":
			report.Updated = append(report.Updated, f.Name)
		default:
			report.Unchanged = append(report.Unchanged, f.Name)
		}
	}

	s.logger.Info("flavor sync complete",
		"imported", len(report.Imported), "updated", len(report.Updated),
		"unchanged", len(report.Unchanged), "skipped", len(report.Skipped))
	if s.recorder != nil {
		s.recorder.FlavorsSynced(report)
	}
	return report, firstErr
}

func (s *Syncer) syncOne(ctx context.Context, local Flavor) (string, error) {
	existing, err := s.sink.GetFlavor(ctx, local.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		if _, err := s.sink.CreateFlavor(ctx, local); err != nil {
			return "", fmt.Errorf("create flavor %s: %w", local.ID, err)
		}
		return "imported", nil
	case err != nil:
		return "", fmt.Errorf("get flavor %s: %w", local.ID, err)
	}

	if maps.Equal(existing.ExtraSpecs, local.ExtraSpecs) {
		return "unchanged", nil
	}
	if err := s.sink.UpdateExtraSpecs(ctx, local.ID, local.ExtraSpecs); err != nil {
		return "", fmt.Errorf("update extra specs %s: %w", local.ID, err)
	}
	return "updated", nil
}
