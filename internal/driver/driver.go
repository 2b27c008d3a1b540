package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/cloudsync/internal/tracker"
)

// Config holds the driver settings.
type Config struct {
	// IgnoreDeleteErrors makes volume delete failures, including poll
	// timeouts, log and succeed.
	IgnoreDeleteErrors bool
	// AllowedSCGs limits GetVolumeStats to pools of these groups. Empty
	// means every pool.
	AllowedSCGs []string
	// NetworkCacheSize bounds the LOCAL to REMOTE network id cache.
	NetworkCacheSize int
}

// DefaultNetworkCacheSize is used when Config.NetworkCacheSize is unset.
const DefaultNetworkCacheSize = 256

// Volume is the host's LOCAL volume record.
type Volume struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	SizeGB           int               `json:"size_gb"`
	VolumeType       string            `json:"volume_type,omitempty"`
	AvailabilityZone string            `json:"availability_zone,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Instance is the host's LOCAL instance record.
type Instance struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	FlavorID   string            `json:"flavor_id"`
	ImageID    string            `json:"image_id"`
	NetworkIDs []string          `json:"network_ids,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Update is the status and metadata the host should record.
type Update struct {
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// VolumeStats aggregates capacity over the selected pools.
type VolumeStats struct {
	TotalCapacityGB float64   `json:"total_capacity_gb"`
	FreeCapacityGB  float64   `json:"free_capacity_gb"`
	Pools           []string  `json:"pools"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Driver is the volume and compute facade the host runtimes call.
//
// Thread-safety: all methods are safe for concurrent use.
type Driver struct {
	volumes  VolumeAPI
	compute  ComputeAPI
	records  RecordStore
	networks NetworkTranslator
	tracker  *tracker.Tracker
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	netCache *lru.Cache[string, string]

	statsMu sync.Mutex
	stats   *VolumeStats
}

// Option configures a Driver.
type Option func(*Driver)

func WithLogger(l *slog.Logger) Option { return func(d *Driver) { d.logger = l } }

// New creates a Driver. The tracker drives every wait.
func New(cfg Config, volumes VolumeAPI, compute ComputeAPI, records RecordStore, networks NetworkTranslator, tr *tracker.Tracker, opts ...Option) (*Driver, error) {
	size := cfg.NetworkCacheSize
	if size <= 0 {
		size = DefaultNetworkCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("network cache: %w", err)
	}
	d := &Driver{
		volumes:  volumes,
		compute:  compute,
		records:  records,
		networks: networks,
		tracker:  tr,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		netCache: cache,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// InFlight returns the remote operations the driver is still waiting on.
func (d *Driver) InFlight() []tracker.Operation {
	return d.tracker.InFlight()
}

func (d *Driver) volumePoller() tracker.Poller {
	return tracker.PollFunc(func(ctx context.Context, id string) (string, any, error) {
		v, err := d.volumes.GetVolume(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return "", nil, tracker.ErrNotFound
		}
		if err != nil {
			return "", nil, err
		}
		return v.Status, v, nil
	})
}

// CreateVolume creates the REMOTE volume, records its id in the LOCAL
// metadata before waiting, and returns the settled status. A volume that
// settles in a failure status is reported through Update, not as an error.
func (d *Driver) CreateVolume(ctx context.Context, v Volume) (Update, error) {
	rv, err := d.volumes.CreateVolume(ctx, VolumeRequest{
		Name:             v.Name,
		SizeGB:           v.SizeGB,
		VolumeType:       v.VolumeType,
		AvailabilityZone: v.AvailabilityZone,
	})
	if err != nil {
		return Update{}, fmt.Errorf("create remote volume for %s: %w", v.ID, err)
	}

	md := withRemoteID(v.Metadata, rv.ID)
	if err := d.records.SaveMetadata(ctx, v.ID, md); err != nil {
		return Update{}, fmt.Errorf("record remote id %s for volume %s: %w", rv.ID, v.ID, err)
	}
	d.logger.Info("remote volume created", "volume_id", v.ID, "remote_id", rv.ID, "status", rv.Status)

	_, err = d.tracker.Await(ctx, d.volumePoller(), tracker.Operation{
		ResourceID: rv.ID,
		Initial:    "creating",
		Terminal:   "available",
		Transient:  []string{"downloading"},
	})
	return settle(md, "available", err)
}

// DeleteVolume deletes the REMOTE volume named in the LOCAL metadata and
// waits for it to disappear. A record without a remote id succeeds with a
// warning.
func (d *Driver) DeleteVolume(ctx context.Context, v Volume) error {
	remoteID := v.Metadata[MetadataKey]
	if remoteID == "" {
		d.logger.Warn("volume has no remote id, nothing to delete", "volume_id", v.ID)
		return nil
	}

	err := d.deleteVolume(ctx, remoteID)
	if err != nil && d.cfg.IgnoreDeleteErrors {
		d.logger.Warn("ignoring volume delete failure", "volume_id", v.ID, "remote_id", remoteID, "error", err)
		return nil
	}
	return err
}

func (d *Driver) deleteVolume(ctx context.Context, remoteID string) error {
	err := d.volumes.DeleteVolume(ctx, remoteID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete remote volume %s: %w", remoteID, err)
	}
	_, err = d.tracker.Await(ctx, d.volumePoller(), tracker.Operation{
		ResourceID: remoteID,
		Initial:    "deleting",
		Terminal:   "deleted",
		Transient:  []string{"available"},
		Delete:     true,
	})
	return err
}

// AttachVolume attaches the REMOTE halves of v and inst.
func (d *Driver) AttachVolume(ctx context.Context, v Volume, inst Instance, mountpoint string) error {
	volumeID, serverID, err := remotePair(v, inst)
	if err != nil {
		return err
	}
	return d.volumes.AttachVolume(ctx, volumeID, serverID, mountpoint)
}

// DetachVolume detaches the REMOTE halves of v and inst.
func (d *Driver) DetachVolume(ctx context.Context, v Volume, inst Instance) error {
	volumeID, serverID, err := remotePair(v, inst)
	if err != nil {
		return err
	}
	return d.volumes.DetachVolume(ctx, volumeID, serverID)
}

func remotePair(v Volume, inst Instance) (string, string, error) {
	volumeID := v.Metadata[MetadataKey]
	if volumeID == "" {
		return "", "", fmt.Errorf("volume %s: %w", v.ID, ErrNoRemoteID)
	}
	serverID := inst.Metadata[MetadataKey]
	if serverID == "" {
		return "", "", fmt.Errorf("instance %s: %w", inst.ID, ErrNoRemoteID)
	}
	return volumeID, serverID, nil
}

// GetVolumeStats aggregates REMOTE pool capacity over the allowed storage
// connectivity groups. The last result is reused unless refresh is set.
func (d *Driver) GetVolumeStats(ctx context.Context, refresh bool) (VolumeStats, error) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	if d.stats != nil && !refresh {
		return *d.stats, nil
	}

	pools, err := d.volumes.ListStoragePools(ctx)
	if err != nil {
		return VolumeStats{}, fmt.Errorf("list storage pools: %w", err)
	}
	stats := VolumeStats{Pools: []string{}, UpdatedAt: d.now()}
	for _, p := range pools {
		if len(d.cfg.AllowedSCGs) > 0 && !slices.Contains(d.cfg.AllowedSCGs, p.Group) {
			continue
		}
		stats.TotalCapacityGB += p.TotalCapacityGB
		stats.FreeCapacityGB += p.FreeCapacityGB
		stats.Pools = append(stats.Pools, p.Name)
	}
	slices.Sort(stats.Pools)
	d.stats = &stats
	return stats, nil
}

// settle converts a tracker result into the host update. Status failures
// become the reported status; timeouts, disappearance and poll errors are
// returned alongside the metadata so the host still records the remote id.
func settle(md map[string]string, terminal string, err error) (Update, error) {
	if err == nil {
		return Update{Status: terminal, Metadata: md}, nil
	}
	var failure *tracker.Failure
	if errors.As(err, &failure) && failure.Reason == tracker.ReasonStatus {
		return Update{Status: failure.Status, Metadata: md}, nil
	}
	return Update{Status: "error", Metadata: md}, err
}

func withRemoteID(md map[string]string, remoteID string) map[string]string {
	out := maps.Clone(md)
	if out == nil {
		out = make(map[string]string, 1)
	}
	out[MetadataKey] = remoteID
	return out
}
