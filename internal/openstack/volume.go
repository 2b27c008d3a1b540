package openstack

import (
	"context"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/schedulerstats"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumes"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/volumeattach"
	"github.com/pkg/errors"

	"github.com/roach88/cloudsync/internal/driver"
	"github.com/roach88/cloudsync/internal/endpoint"
)

// VolumeClient is a driver.VolumeAPI backed by Cinder v3. Attachments go
// through the compute API.
type VolumeClient struct {
	block   *gophercloud.ServiceClient
	compute *gophercloud.ServiceClient
}

// NewVolumeClient wraps the block storage and compute service clients.
func NewVolumeClient(block, compute *gophercloud.ServiceClient) *VolumeClient {
	return &VolumeClient{block: block, compute: compute}
}

var _ driver.VolumeAPI = (*VolumeClient)(nil)

func (c *VolumeClient) CreateVolume(ctx context.Context, req driver.VolumeRequest) (driver.RemoteVolume, error) {
	v, err := volumes.Create(ctx, c.block, volumes.CreateOpts{
		Name:             req.Name,
		Size:             req.SizeGB,
		VolumeType:       req.VolumeType,
		AvailabilityZone: req.AvailabilityZone,
		Metadata:         req.Metadata,
	}, nil).Extract()
	if err != nil {
		return driver.RemoteVolume{}, remoteErr(err, "create volume %s", req.Name)
	}
	return driver.RemoteVolume{ID: v.ID, Status: v.Status}, nil
}

func (c *VolumeClient) GetVolume(ctx context.Context, id string) (driver.RemoteVolume, error) {
	v, err := volumes.Get(ctx, c.block, id).Extract()
	if err != nil {
		return driver.RemoteVolume{}, remoteErr(err, "get volume %s", id)
	}
	return driver.RemoteVolume{ID: v.ID, Status: v.Status}, nil
}

func (c *VolumeClient) DeleteVolume(ctx context.Context, id string) error {
	err := volumes.Delete(ctx, c.block, id, volumes.DeleteOpts{}).ExtractErr()
	return remoteErr(err, "delete volume %s", id)
}

func (c *VolumeClient) AttachVolume(ctx context.Context, volumeID, serverID, mountpoint string) error {
	_, err := volumeattach.Create(ctx, c.compute, serverID, volumeattach.CreateOpts{
		VolumeID: volumeID,
		Device:   mountpoint,
	}).Extract()
	return remoteErr(err, "attach volume %s to server %s", volumeID, serverID)
}

func (c *VolumeClient) DetachVolume(ctx context.Context, volumeID, serverID string) error {
	err := volumeattach.Delete(ctx, c.compute, serverID, volumeID).ExtractErr()
	return remoteErr(err, "detach volume %s from server %s", volumeID, serverID)
}

// ListStoragePools returns the backend pools with their capacity. The
// backend name is the pool's storage connectivity group.
func (c *VolumeClient) ListStoragePools(ctx context.Context) ([]driver.StoragePool, error) {
	pages, err := schedulerstats.List(c.block, schedulerstats.ListOpts{Detail: true}).AllPages(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list backend pools")
	}
	pools, err := schedulerstats.ExtractStoragePools(pages)
	if err != nil {
		return nil, errors.Wrap(err, "failed to extract backend pools")
	}
	out := make([]driver.StoragePool, 0, len(pools))
	for _, p := range pools {
		out = append(out, driver.StoragePool{
			Name:            p.Name,
			Group:           p.Capabilities.VolumeBackendName,
			TotalCapacityGB: p.Capabilities.TotalCapacityGB,
			FreeCapacityGB:  p.Capabilities.FreeCapacityGB,
		})
	}
	return out, nil
}

func remoteErr(err error, format string, args ...any) error {
	return classify(err, driver.ErrNotFound, endpoint.ErrTransient, format, args...)
}
