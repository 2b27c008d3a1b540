package config

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"github.com/spf13/viper"

	"github.com/roach88/cloudsync/internal/driver"
	"github.com/roach88/cloudsync/internal/filter"
	"github.com/roach88/cloudsync/internal/flavorsync"
	"github.com/roach88/cloudsync/internal/openstack"
	"github.com/roach88/cloudsync/internal/resource"
)

// EnvPrefix prefixes environment overrides: reconciler.event_queue_capacity
// is read from CLOUDSYNC_RECONCILER_EVENT_QUEUE_CAPACITY.
const EnvPrefix = "CLOUDSYNC"

//go:embed schema.cue
var schemaSource string

// Config is the validated configuration with defaults applied.
type Config struct {
	Store      Store      `json:"store"`
	Reconciler Reconciler `json:"reconciler"`
	Tracker    Tracker    `json:"tracker"`
	FlavorSync FlavorSync `json:"flavor_sync"`
	Driver     Driver     `json:"driver"`
	Metrics    Metrics    `json:"metrics"`
	Endpoints  Endpoints  `json:"endpoints"`
}

type Store struct {
	Path string `json:"path"`
}

type Reconciler struct {
	FullSyncIntervalSeconds int      `json:"full_sync_interval_seconds"`
	EventQueueCapacity      int      `json:"event_queue_capacity"`
	NetworkNameAllowlist    []string `json:"network_name_allowlist"`
	MappableNetworkTypes    []string `json:"mappable_network_types"`
	MappablePhysicalNetwork string   `json:"mappable_physical_network"`
	CallTimeoutSeconds      int      `json:"call_timeout_seconds"`
	DeferredRetryLimit      int      `json:"deferred_retry_limit"`
	DeferredBackoffMS       int      `json:"deferred_backoff_ms"`
	PortDeviceIDPrefix      string   `json:"port_device_id_prefix"`
	PortDeviceOwner         string   `json:"port_device_owner"`
}

type Tracker struct {
	PollIntervalSeconds      int  `json:"poll_interval_seconds"`
	OperationDeadlineSeconds int  `json:"operation_deadline_seconds"`
	VolumeIgnoreDeleteError  bool `json:"volume_ignore_delete_error"`
	MaxPollErrors            int  `json:"max_poll_errors"`
}

// FlavorSync holds the flavor import settings. An IntervalSeconds of 0
// disables the periodic pass.
type FlavorSync struct {
	IntervalSeconds int      `json:"interval_seconds"`
	Prefix          string   `json:"prefix"`
	Allowlist       []string `json:"allowlist"`
	Denylist        []string `json:"denylist"`
	AllowedSCGIDs   []string `json:"allowed_scg_ids"`
}

type Driver struct {
	// Listen is the gRPC address of the driver service; empty disables it.
	Listen                    string   `json:"listen"`
	NetworkCacheSize          int      `json:"network_cache_size"`
	StorageConnectivityGroups []string `json:"storage_connectivity_groups"`
}

type Metrics struct {
	Listen string `json:"listen"`
}

type Endpoints struct {
	Local  Endpoint `json:"local"`
	Remote Endpoint `json:"remote"`
}

// Side returns the endpoint settings of side.
func (e Endpoints) Side(side resource.Side) Endpoint {
	if side == resource.Remote {
		return e.Remote
	}
	return e.Local
}

type Endpoint struct {
	AuthURL     string      `json:"auth_url"`
	Credentials Credentials `json:"credentials"`
	Region      string      `json:"region"`
	CACert      string      `json:"ca_cert"`
	Insecure    bool        `json:"insecure"`
	HTTPRetries int         `json:"http_retries"`
	BusURL      string      `json:"bus_url"`
	BusExchange string      `json:"bus_exchange"`
	BusTopic    string      `json:"bus_topic"`
}

type Credentials struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	ProjectName string `json:"project_name"`
	DomainName  string `json:"domain_name"`
}

// BusPattern is the channel pattern notifications of this endpoint are
// published on, "<bus_exchange>.<bus_topic>".
func (e Endpoint) BusPattern() string {
	return e.BusExchange + "." + e.BusTopic
}

// OpenStack converts e into client credentials.
func (e Endpoint) OpenStack(callTimeout time.Duration) openstack.Credentials {
	return openstack.Credentials{
		AuthURL:     e.AuthURL,
		Username:    e.Credentials.Username,
		Password:    e.Credentials.Password,
		ProjectName: e.Credentials.ProjectName,
		DomainName:  e.Credentials.DomainName,
		Region:      e.Region,
		CACert:      e.CACert,
		Insecure:    e.Insecure,
		Retries:     e.HTTPRetries,
		Timeout:     callTimeout,
	}
}

// RequireEndpoints reports an error when either side lacks an auth_url or
// bus_url. Commands that talk to the clouds call it after Load.
func (c *Config) RequireEndpoints() error {
	var missing []string
	for _, side := range []resource.Side{resource.Local, resource.Remote} {
		ep := c.Endpoints.Side(side)
		name := strings.ToLower(string(side))
		if ep.AuthURL == "" {
			missing = append(missing, "endpoints."+name+".auth_url")
		}
		if ep.BusURL == "" {
			missing = append(missing, "endpoints."+name+".bus_url")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) FullSyncInterval() time.Duration {
	return time.Duration(c.Reconciler.FullSyncIntervalSeconds) * time.Second
}

func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Reconciler.CallTimeoutSeconds) * time.Second
}

func (c *Config) DeferredBackoff() time.Duration {
	return time.Duration(c.Reconciler.DeferredBackoffMS) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Tracker.PollIntervalSeconds) * time.Second
}

func (c *Config) OperationDeadline() time.Duration {
	return time.Duration(c.Tracker.OperationDeadlineSeconds) * time.Second
}

func (c *Config) FlavorSyncInterval() time.Duration {
	return time.Duration(c.FlavorSync.IntervalSeconds) * time.Second
}

// FilterConfig returns the mappability settings.
func (c *Config) FilterConfig() filter.Config {
	return filter.Config{
		NetworkTypes:    c.Reconciler.MappableNetworkTypes,
		PhysicalNetwork: c.Reconciler.MappablePhysicalNetwork,
		NameAllowlist:   c.Reconciler.NetworkNameAllowlist,
	}
}

// FlavorSyncConfig returns the flavor import settings.
func (c *Config) FlavorSyncConfig() flavorsync.Config {
	return flavorsync.Config{
		Prefix:      c.FlavorSync.Prefix,
		Allowlist:   c.FlavorSync.Allowlist,
		Denylist:    c.FlavorSync.Denylist,
		AllowedSCGs: c.FlavorSync.AllowedSCGIDs,
	}
}

// DriverConfig returns the volume/compute driver settings.
func (c *Config) DriverConfig() driver.Config {
	return driver.Config{
		IgnoreDeleteErrors: c.Tracker.VolumeIgnoreDeleteError,
		AllowedSCGs:        c.Driver.StorageConnectivityGroups,
		NetworkCacheSize:   c.Driver.NetworkCacheSize,
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// CLOUDSYNC_* environment overrides and validates the result against the
// embedded schema. Unknown keys and wrong types are errors.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	leaves := make(map[string]cue.Kind)
	if err := collectLeaves(def, "", leaves); err != nil {
		return nil, err
	}
	for key := range leaves {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	settings := v.AllSettings()
	for key, kind := range leaves {
		if err := coerce(settings, key, kind); err != nil {
			return nil, err
		}
	}

	value := def.Unify(ctx.Encode(settings))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config: %s", errors.Details(err, nil))
	}
	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// collectLeaves records the dotted path and kind of every scalar or list
// field under v.
func collectLeaves(v cue.Value, prefix string, out map[string]cue.Kind) error {
	iter, err := v.Fields()
	if err != nil {
		return fmt.Errorf("walking config schema at %q: %w", prefix, err)
	}
	for iter.Next() {
		key := iter.Selector().String()
		if prefix != "" {
			key = prefix + "." + key
		}
		kind := iter.Value().IncompleteKind()
		if kind == cue.StructKind {
			if err := collectLeaves(iter.Value(), key, out); err != nil {
				return err
			}
			continue
		}
		out[key] = kind
	}
	return nil
}

// coerce converts a string found at key (environment values are always
// strings) to kind. Values that are already typed are left alone.
func coerce(settings map[string]any, key string, kind cue.Kind) error {
	parts := strings.Split(key, ".")
	m := settings
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			return nil
		}
		m = next
	}
	last := parts[len(parts)-1]
	raw, ok := m[last].(string)
	if !ok {
		return nil
	}
	switch {
	case kind&cue.IntKind != 0 && kind&cue.StringKind == 0:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: expected an integer, got %q", key, raw)
		}
		m[last] = n
	case kind == cue.BoolKind:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: expected a boolean, got %q", key, raw)
		}
		m[last] = b
	case kind == cue.ListKind:
		items := []any{}
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		m[last] = items
	}
	return nil
}
