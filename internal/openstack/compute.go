package openstack

import (
	"context"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"

	"github.com/roach88/cloudsync/internal/driver"
)

// ComputeClient is a driver.ComputeAPI backed by Nova v2.
type ComputeClient struct {
	client *gophercloud.ServiceClient
}

// NewComputeClient wraps a compute service client.
func NewComputeClient(client *gophercloud.ServiceClient) *ComputeClient {
	return &ComputeClient{client: client}
}

var _ driver.ComputeAPI = (*ComputeClient)(nil)

func (c *ComputeClient) CreateServer(ctx context.Context, req driver.ServerRequest) (driver.RemoteServer, error) {
	nets := make([]servers.Network, 0, len(req.NetworkIDs))
	for _, id := range req.NetworkIDs {
		nets = append(nets, servers.Network{UUID: id})
	}
	s, err := servers.Create(ctx, c.client, servers.CreateOpts{
		Name:      req.Name,
		FlavorRef: req.FlavorID,
		ImageRef:  req.ImageID,
		Networks:  nets,
		Metadata:  req.Metadata,
	}, nil).Extract()
	if err != nil {
		return driver.RemoteServer{}, remoteErr(err, "create server %s", req.Name)
	}
	return driver.RemoteServer{ID: s.ID, Status: s.Status}, nil
}

func (c *ComputeClient) GetServer(ctx context.Context, id string) (driver.RemoteServer, error) {
	s, err := servers.Get(ctx, c.client, id).Extract()
	if err != nil {
		return driver.RemoteServer{}, remoteErr(err, "get server %s", id)
	}
	return driver.RemoteServer{ID: s.ID, Status: s.Status}, nil
}

func (c *ComputeClient) DeleteServer(ctx context.Context, id string) error {
	return remoteErr(servers.Delete(ctx, c.client, id).ExtractErr(), "delete server %s", id)
}

func (c *ComputeClient) StartServer(ctx context.Context, id string) error {
	return remoteErr(servers.Start(ctx, c.client, id).ExtractErr(), "start server %s", id)
}

func (c *ComputeClient) StopServer(ctx context.Context, id string) error {
	return remoteErr(servers.Stop(ctx, c.client, id).ExtractErr(), "stop server %s", id)
}

func (c *ComputeClient) RebootServer(ctx context.Context, id string, hard bool) error {
	how := servers.SoftReboot
	if hard {
		how = servers.HardReboot
	}
	err := servers.Reboot(ctx, c.client, id, servers.RebootOpts{Type: how}).ExtractErr()
	return remoteErr(err, "reboot server %s", id)
}
