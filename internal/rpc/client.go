package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/roach88/cloudsync/internal/driver"
)

// Client calls a remote driver service. It implements Facade.
type Client struct {
	cc grpc.ClientConnInterface
}

var _ Facade = (*Client)(nil)

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn), conn, nil
}

// invoke sends in as a Struct. A nil out expects an Empty reply; otherwise
// the reply Struct is decoded into out.
func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	var resp proto.Message = &emptypb.Empty{}
	if out != nil {
		resp = new(structpb.Struct)
	}
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp); err != nil {
		return remoteErr(err)
	}
	if out == nil {
		return nil
	}
	return fromStruct(resp.(*structpb.Struct), out)
}

func remoteErr(err error) error {
	switch status.Code(err) {
	case codes.FailedPrecondition:
		return &remoteError{err: err, sentinel: driver.ErrNoRemoteID}
	case codes.NotFound:
		return &remoteError{err: err, sentinel: driver.ErrNotFound}
	}
	return err
}

func (c *Client) CreateVolume(ctx context.Context, v driver.Volume) (driver.Update, error) {
	var out driver.Update
	err := c.invoke(ctx, "CreateVolume", &VolumeRequest{Volume: v}, &out)
	return out, err
}

func (c *Client) DeleteVolume(ctx context.Context, v driver.Volume) error {
	return c.invoke(ctx, "DeleteVolume", &VolumeRequest{Volume: v}, nil)
}

func (c *Client) AttachVolume(ctx context.Context, v driver.Volume, inst driver.Instance, mountpoint string) error {
	return c.invoke(ctx, "AttachVolume", &AttachRequest{Volume: v, Instance: inst, Mountpoint: mountpoint}, nil)
}

func (c *Client) DetachVolume(ctx context.Context, v driver.Volume, inst driver.Instance) error {
	return c.invoke(ctx, "DetachVolume", &AttachRequest{Volume: v, Instance: inst}, nil)
}

func (c *Client) GetVolumeStats(ctx context.Context, refresh bool) (driver.VolumeStats, error) {
	var out driver.VolumeStats
	err := c.invoke(ctx, "GetVolumeStats", &StatsRequest{Refresh: refresh}, &out)
	return out, err
}

func (c *Client) SpawnInstance(ctx context.Context, inst driver.Instance) (driver.Update, error) {
	var out driver.Update
	err := c.invoke(ctx, "SpawnInstance", &InstanceRequest{Instance: inst}, &out)
	return out, err
}

func (c *Client) DestroyInstance(ctx context.Context, inst driver.Instance) error {
	return c.invoke(ctx, "DestroyInstance", &InstanceRequest{Instance: inst}, nil)
}

func (c *Client) PowerOnInstance(ctx context.Context, inst driver.Instance) (driver.Update, error) {
	var out driver.Update
	err := c.invoke(ctx, "PowerOnInstance", &InstanceRequest{Instance: inst}, &out)
	return out, err
}

func (c *Client) PowerOffInstance(ctx context.Context, inst driver.Instance) (driver.Update, error) {
	var out driver.Update
	err := c.invoke(ctx, "PowerOffInstance", &InstanceRequest{Instance: inst}, &out)
	return out, err
}

func (c *Client) RebootInstance(ctx context.Context, inst driver.Instance, hard bool) (driver.Update, error) {
	var out driver.Update
	err := c.invoke(ctx, "RebootInstance", &InstanceRequest{Instance: inst, Hard: hard}, &out)
	return out, err
}

// remoteError keeps the gRPC status while matching a driver sentinel.
type remoteError struct {
	err      error
	sentinel error
}

func (e *remoteError) Error() string { return e.err.Error() }

func (e *remoteError) Unwrap() []error { return []error{e.sentinel, e.err} }
