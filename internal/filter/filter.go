// Package filter decides which cloud objects are eligible for synchronization.
package filter

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/cloudsync/internal/resource"
)

// Config holds the mappability settings of the reconciler section.
type Config struct {
	// NetworkTypes lists accepted network_type values (e.g. "vlan", "flat").
	NetworkTypes []string
	// PhysicalNetwork, when set, must equal the network's physical_network.
	PhysicalNetwork string
	// NameAllowlist holds glob patterns; a network is synchronized only when
	// its name matches one of them. An empty list synchronizes no network.
	NameAllowlist []string
}

// Filter applies the per-kind predicates.
type Filter struct {
	cfg    Config
	logger *slog.Logger
}

// New validates the allowlist patterns and returns a Filter.
func New(cfg Config, logger *slog.Logger) (*Filter, error) {
	for _, p := range cfg.NameAllowlist {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid network name pattern %q", p)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{cfg: cfg, logger: logger}, nil
}

// Mappable reports whether obj may be synchronized. Rejections are logged at
// debug level together with the reason.
func (f *Filter) Mappable(obj resource.Object) bool {
	reason := f.Reject(obj)
	if reason != "" {
		f.logger.Debug("object not mappable", "kind", obj.Kind, "id", obj.ID, "reason", reason)
		return false
	}
	return true
}

// Reject returns why obj is not mappable, or "" when it is.
func (f *Filter) Reject(obj resource.Object) string {
	switch obj.Kind {
	case resource.KindNetwork:
		return f.rejectNetwork(obj)
	case resource.KindSubnet:
		return rejectSubnet(obj)
	case resource.KindPort:
		return rejectPort(obj)
	}
	return fmt.Sprintf("unknown kind %q", obj.Kind)
}

func (f *Filter) rejectNetwork(obj resource.Object) string {
	netType := obj.Attrs.Str("network_type")
	if !slices.Contains(f.cfg.NetworkTypes, netType) {
		return fmt.Sprintf("network_type %q not mappable", netType)
	}
	if f.cfg.PhysicalNetwork != "" && obj.Attrs.Str("physical_network") != f.cfg.PhysicalNetwork {
		return fmt.Sprintf("physical_network %q does not match %q", obj.Attrs.Str("physical_network"), f.cfg.PhysicalNetwork)
	}
	if !f.NameAllowed(obj.Attrs.Str("name")) {
		return fmt.Sprintf("name %q not in allowlist", obj.Attrs.Str("name"))
	}
	return ""
}

// NameAllowed reports whether name matches the network-name allowlist.
func (f *Filter) NameAllowed(name string) bool {
	for _, p := range f.cfg.NameAllowlist {
		// Patterns were validated in New, so Match cannot fail here.
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func rejectSubnet(obj resource.Object) string {
	if v, ok := obj.Attrs.Int("ip_version"); !ok || v != 4 {
		return "ip_version is not 4"
	}
	if dhcp, ok := obj.Attrs.Bool("enable_dhcp"); !ok || dhcp {
		return "enable_dhcp is not false"
	}
	return ""
}

func rejectPort(obj resource.Object) string {
	for _, ip := range obj.FixedIPs() {
		if ip.IsIPv4() {
			return ""
		}
	}
	return "no IPv4 fixed ip"
}
