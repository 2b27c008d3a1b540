package openstack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/ports"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/subnets"
	"github.com/gophercloud/gophercloud/v2/pagination"
	"github.com/pkg/errors"

	"github.com/roach88/cloudsync/internal/endpoint"
	"github.com/roach88/cloudsync/internal/resource"
)

// Neutron names the provider attributes with a "provider:" prefix.
const providerPrefix = "provider:"

var providerAttrs = []string{"network_type", "physical_network", "segmentation_id"}

// body is a raw request body. It satisfies the create and update builder
// interfaces of the networks, subnets and ports packages, so arbitrary
// attribute sets pass through gophercloud unchanged.
type body struct {
	label string
	attrs map[string]any
}

func (b body) toMap() (map[string]any, error) {
	return map[string]any{b.label: b.attrs}, nil
}

func (b body) ToNetworkCreateMap() (map[string]any, error) { return b.toMap() }
func (b body) ToNetworkUpdateMap() (map[string]any, error) { return b.toMap() }
func (b body) ToSubnetCreateMap() (map[string]any, error)  { return b.toMap() }
func (b body) ToSubnetUpdateMap() (map[string]any, error)  { return b.toMap() }
func (b body) ToPortCreateMap() (map[string]any, error)    { return b.toMap() }
func (b body) ToPortUpdateMap() (map[string]any, error)    { return b.toMap() }

// NetworkClient is an endpoint.Client backed by the Neutron v2 API.
type NetworkClient struct {
	client *gophercloud.ServiceClient
	logger *slog.Logger
}

// NewNetworkClient wraps a networking service client.
func NewNetworkClient(client *gophercloud.ServiceClient, logger *slog.Logger) *NetworkClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &NetworkClient{client: client, logger: logger}
}

var _ endpoint.Client = (*NetworkClient)(nil)

func label(kind resource.Kind) string {
	return string(kind)
}

// List returns every object of kind visible to the project.
func (c *NetworkClient) List(ctx context.Context, kind resource.Kind) ([]resource.Object, error) {
	var pager pagination.Pager
	switch kind {
	case resource.KindNetwork:
		pager = networks.List(c.client, networks.ListOpts{})
	case resource.KindSubnet:
		pager = subnets.List(c.client, subnets.ListOpts{})
	case resource.KindPort:
		pager = ports.List(c.client, ports.ListOpts{})
	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}

	page, err := pager.AllPages(ctx)
	if err != nil {
		return nil, classify(err, endpoint.ErrNotFound, endpoint.ErrTransient, "list %ss", kind)
	}
	slicer, ok := page.(interface {
		ExtractIntoSlicePtr(to any, label string) error
	})
	if !ok {
		return nil, fmt.Errorf("list %ss: unexpected page type %T", kind, page)
	}
	var raw []map[string]any
	if err := slicer.ExtractIntoSlicePtr(&raw, label(kind)+"s"); err != nil {
		return nil, errors.Wrapf(err, "decode %ss", kind)
	}

	out := make([]resource.Object, 0, len(raw))
	for _, m := range raw {
		obj, err := toObject(kind, m)
		if err != nil {
			c.logger.Warn("skipping undecodable object", "kind", kind, "id", m["id"], "error", err)
			continue
		}
		out = append(out, obj)
	}
	return out, nil
}

// Get returns one object.
func (c *NetworkClient) Get(ctx context.Context, kind resource.Kind, id string) (resource.Object, error) {
	var res gophercloud.Result
	switch kind {
	case resource.KindNetwork:
		res = networks.Get(ctx, c.client, id).Result
	case resource.KindSubnet:
		res = subnets.Get(ctx, c.client, id).Result
	case resource.KindPort:
		res = ports.Get(ctx, c.client, id).Result
	default:
		return resource.Object{}, fmt.Errorf("unsupported kind %q", kind)
	}
	return c.decode(kind, res, "get %s %s", kind, id)
}

// Create creates an object from attrs and returns it as stored.
func (c *NetworkClient) Create(ctx context.Context, kind resource.Kind, attrs resource.Attrs) (resource.Object, error) {
	b := body{label: label(kind), attrs: toWire(kind, attrs)}
	var res gophercloud.Result
	switch kind {
	case resource.KindNetwork:
		res = networks.Create(ctx, c.client, b).Result
	case resource.KindSubnet:
		res = subnets.Create(ctx, c.client, b).Result
	case resource.KindPort:
		res = ports.Create(ctx, c.client, b).Result
	default:
		return resource.Object{}, fmt.Errorf("unsupported kind %q", kind)
	}
	return c.decode(kind, res, "create %s", kind)
}

// Update applies attrs to an existing object.
func (c *NetworkClient) Update(ctx context.Context, kind resource.Kind, id string, attrs resource.Attrs) (resource.Object, error) {
	b := body{label: label(kind), attrs: toWire(kind, attrs)}
	var res gophercloud.Result
	switch kind {
	case resource.KindNetwork:
		res = networks.Update(ctx, c.client, id, b).Result
	case resource.KindSubnet:
		res = subnets.Update(ctx, c.client, id, b).Result
	case resource.KindPort:
		res = ports.Update(ctx, c.client, id, b).Result
	default:
		return resource.Object{}, fmt.Errorf("unsupported kind %q", kind)
	}
	return c.decode(kind, res, "update %s %s", kind, id)
}

// Delete removes an object.
func (c *NetworkClient) Delete(ctx context.Context, kind resource.Kind, id string) error {
	var err error
	switch kind {
	case resource.KindNetwork:
		err = networks.Delete(ctx, c.client, id).ExtractErr()
	case resource.KindSubnet:
		err = subnets.Delete(ctx, c.client, id).ExtractErr()
	case resource.KindPort:
		err = ports.Delete(ctx, c.client, id).ExtractErr()
	default:
		return fmt.Errorf("unsupported kind %q", kind)
	}
	return classify(err, endpoint.ErrNotFound, endpoint.ErrTransient, "delete %s %s", kind, id)
}

func (c *NetworkClient) decode(kind resource.Kind, res gophercloud.Result, format string, args ...any) (resource.Object, error) {
	if res.Err != nil {
		return resource.Object{}, classify(res.Err, endpoint.ErrNotFound, endpoint.ErrTransient, format, args...)
	}
	var envelope map[string]map[string]any
	if err := res.ExtractInto(&envelope); err != nil {
		return resource.Object{}, errors.Wrapf(err, format, args...)
	}
	m, ok := envelope[label(kind)]
	if !ok {
		return resource.Object{}, errors.Errorf(format+": response has no %q", append(args, label(kind))...)
	}
	return toObject(kind, m)
}

// toObject converts a decoded Neutron object, stripping the provider prefix.
func toObject(kind resource.Kind, m map[string]any) (resource.Object, error) {
	plain := make(map[string]any, len(m))
	for k, v := range m {
		plain[strings.TrimPrefix(k, providerPrefix)] = v
	}
	attrs, err := resource.AttrsFromMap(plain)
	if err != nil {
		return resource.Object{}, err
	}
	return resource.NewObject(kind, "", attrs), nil
}

// toWire converts attrs into a request body, restoring the provider prefix
// on networks.
func toWire(kind resource.Kind, attrs resource.Attrs) map[string]any {
	out := resource.ToAny(attrs).(map[string]any)
	if kind != resource.KindNetwork {
		return out
	}
	for _, name := range providerAttrs {
		if v, ok := out[name]; ok {
			delete(out, name)
			out[providerPrefix+name] = v
		}
	}
	return out
}
