package openstack

import (
	"context"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/flavors"
	"github.com/pkg/errors"

	"github.com/roach88/cloudsync/internal/endpoint"
	"github.com/roach88/cloudsync/internal/flavorsync"
)

// FlavorClient reads and writes Nova flavors. The REMOTE instance is a
// flavorsync.Source, the LOCAL one a flavorsync.Sink.
type FlavorClient struct {
	client *gophercloud.ServiceClient
}

// NewFlavorClient wraps a compute service client.
func NewFlavorClient(client *gophercloud.ServiceClient) *FlavorClient {
	return &FlavorClient{client: client}
}

var (
	_ flavorsync.Source = (*FlavorClient)(nil)
	_ flavorsync.Sink   = (*FlavorClient)(nil)
)

// ListFlavors returns every flavor with its extra specs.
func (c *FlavorClient) ListFlavors(ctx context.Context) ([]flavorsync.Flavor, error) {
	pages, err := flavors.ListDetail(c.client, flavors.ListOpts{AccessType: flavors.AllAccess}).AllPages(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list flavors")
	}
	all, err := flavors.ExtractFlavors(pages)
	if err != nil {
		return nil, errors.Wrap(err, "failed to extract flavors")
	}
	out := make([]flavorsync.Flavor, 0, len(all))
	for _, f := range all {
		fl := fromNova(f)
		if fl.ExtraSpecs == nil {
			if fl.ExtraSpecs, err = c.extraSpecs(ctx, f.ID); err != nil {
				return nil, err
			}
		}
		out = append(out, fl)
	}
	return out, nil
}

// GetFlavor returns one flavor with its extra specs.
func (c *FlavorClient) GetFlavor(ctx context.Context, id string) (flavorsync.Flavor, error) {
	f, err := flavors.Get(ctx, c.client, id).Extract()
	if err != nil {
		return flavorsync.Flavor{}, flavorErr(err, "get flavor %s", id)
	}
	fl := fromNova(*f)
	if fl.ExtraSpecs == nil {
		if fl.ExtraSpecs, err = c.extraSpecs(ctx, id); err != nil {
			return flavorsync.Flavor{}, err
		}
	}
	return fl, nil
}

// CreateFlavor creates f under f.ID and sets its extra specs.
func (c *FlavorClient) CreateFlavor(ctx context.Context, f flavorsync.Flavor) (flavorsync.Flavor, error) {
	public := f.IsPublic
	opts := flavors.CreateOpts{
		ID:         f.ID,
		Name:       f.Name,
		VCPUs:      f.VCPUs,
		RAM:        f.RAM,
		Disk:       gophercloud.IntToPointer(f.Disk),
		Swap:       gophercloud.IntToPointer(f.Swap),
		Ephemeral:  gophercloud.IntToPointer(f.Ephemeral),
		RxTxFactor: f.RxTxFactor,
		IsPublic:   &public,
	}
	created, err := flavors.Create(ctx, c.client, opts).Extract()
	if err != nil {
		return flavorsync.Flavor{}, flavorErr(err, "create flavor %s", f.Name)
	}
	out := fromNova(*created)
	out.ExtraSpecs = nil
	if len(f.ExtraSpecs) > 0 {
		if err := c.UpdateExtraSpecs(ctx, created.ID, f.ExtraSpecs); err != nil {
			return flavorsync.Flavor{}, err
		}
		out.ExtraSpecs = f.ExtraSpecs
	}
	return out, nil
}

// UpdateExtraSpecs replaces the flavor's extra specs with specs.
func (c *FlavorClient) UpdateExtraSpecs(ctx context.Context, id string, specs map[string]string) error {
	current, err := c.extraSpecs(ctx, id)
	if err != nil {
		return err
	}
	for key := range current {
		if _, keep := specs[key]; keep {
			continue
		}
		if err := flavors.DeleteExtraSpec(ctx, c.client, id, key).ExtractErr(); err != nil {
			return flavorErr(err, "delete extra spec %s of flavor %s", key, id)
		}
	}
	if len(specs) == 0 {
		return nil
	}
	if _, err := flavors.CreateExtraSpecs(ctx, c.client, id, flavors.ExtraSpecsOpts(specs)).Extract(); err != nil {
		return flavorErr(err, "set extra specs of flavor %s", id)
	}
	return nil
}

func (c *FlavorClient) extraSpecs(ctx context.Context, id string) (map[string]string, error) {
	specs, err := flavors.ListExtraSpecs(ctx, c.client, id).Extract()
	if err != nil {
		return nil, flavorErr(err, "list extra specs of flavor %s", id)
	}
	if specs == nil {
		specs = map[string]string{}
	}
	return specs, nil
}

func fromNova(f flavors.Flavor) flavorsync.Flavor {
	return flavorsync.Flavor{
		ID:         f.ID,
		Name:       f.Name,
		VCPUs:      f.VCPUs,
		RAM:        f.RAM,
		Disk:       f.Disk,
		Swap:       f.Swap,
		Ephemeral:  f.Ephemeral,
		RxTxFactor: f.RxTxFactor,
		IsPublic:   f.IsPublic,
		ExtraSpecs: f.ExtraSpecs,
	}
}

func flavorErr(err error, format string, args ...any) error {
	return classify(err, flavorsync.ErrNotFound, endpoint.ErrTransient, format, args...)
}
