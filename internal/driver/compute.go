package driver

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/cloudsync/internal/resource"
	"github.com/roach88/cloudsync/internal/tracker"
)

// Transitional server states that may precede any terminal state.
var serverTransient = []string{"BUILD", "REBOOT", "HARD_REBOOT", "MIGRATING", "RESIZE"}

func (d *Driver) serverPoller() tracker.Poller {
	return tracker.PollFunc(func(ctx context.Context, id string) (string, any, error) {
		s, err := d.compute.GetServer(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return "", nil, tracker.ErrNotFound
		}
		if err != nil {
			return "", nil, err
		}
		return s.Status, s, nil
	})
}

// remoteNetworks translates LOCAL network ids through the cache and the
// mapping store. Only ACTIVE mappings translate, so cached entries never
// point at a half-created network. cached reports whether any id came
// from the cache.
func (d *Driver) remoteNetworks(ctx context.Context, localIDs []string) (ids []string, cached bool, err error) {
	ids = make([]string, 0, len(localIDs))
	for _, localID := range localIDs {
		if id, ok := d.netCache.Get(localID); ok {
			ids = append(ids, id)
			cached = true
			continue
		}
		id, err := d.networks.Translate(ctx, resource.KindNetwork, resource.Local, localID)
		if err != nil {
			return nil, false, fmt.Errorf("network %s has no remote mapping: %w", localID, err)
		}
		d.netCache.Add(localID, id)
		ids = append(ids, id)
	}
	return ids, cached, nil
}

// SpawnInstance creates the REMOTE server on the mirrored networks and waits
// for it to become ACTIVE.
func (d *Driver) SpawnInstance(ctx context.Context, inst Instance) (Update, error) {
	nets, cached, err := d.remoteNetworks(ctx, inst.NetworkIDs)
	if err != nil {
		return Update{}, err
	}
	req := ServerRequest{
		Name:       inst.Name,
		FlavorID:   inst.FlavorID,
		ImageID:    inst.ImageID,
		NetworkIDs: nets,
	}
	rs, err := d.compute.CreateServer(ctx, req)
	if err != nil && cached {
		// A mirrored network may have been recreated under a new REMOTE id
		// since it was cached. Retry once with fresh translations.
		for _, id := range inst.NetworkIDs {
			d.netCache.Remove(id)
		}
		fresh, _, terr := d.remoteNetworks(ctx, inst.NetworkIDs)
		if terr == nil && !slices.Equal(fresh, nets) {
			d.logger.Info("retrying server create with refreshed networks", "instance_id", inst.ID, "stale", nets, "networks", fresh)
			req.NetworkIDs = fresh
			rs, err = d.compute.CreateServer(ctx, req)
		}
	}
	if err != nil {
		return Update{}, fmt.Errorf("create remote server for %s: %w", inst.ID, err)
	}

	md := withRemoteID(inst.Metadata, rs.ID)
	if err := d.records.SaveMetadata(ctx, inst.ID, md); err != nil {
		return Update{}, fmt.Errorf("record remote id %s for instance %s: %w", rs.ID, inst.ID, err)
	}
	d.logger.Info("remote server created", "instance_id", inst.ID, "remote_id", rs.ID)

	_, err = d.tracker.Await(ctx, d.serverPoller(), tracker.Operation{
		ResourceID: rs.ID,
		Initial:    "BUILD",
		Terminal:   "ACTIVE",
		Transient:  serverTransient,
	})
	return settle(md, "ACTIVE", err)
}

// DestroyInstance deletes the REMOTE server and waits until it is gone.
func (d *Driver) DestroyInstance(ctx context.Context, inst Instance) error {
	remoteID := inst.Metadata[MetadataKey]
	if remoteID == "" {
		d.logger.Warn("instance has no remote id, nothing to destroy", "instance_id", inst.ID)
		return nil
	}
	err := d.compute.DeleteServer(ctx, remoteID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete remote server %s: %w", remoteID, err)
	}
	_, err = d.tracker.Await(ctx, d.serverPoller(), tracker.Operation{
		ResourceID: remoteID,
		Initial:    "ACTIVE",
		Terminal:   "DELETED",
		Transient:  append([]string{"SHUTOFF", "ERROR", "SOFT_DELETED"}, serverTransient...),
		Delete:     true,
	})
	return err
}

// PowerOnInstance starts the REMOTE server and waits for ACTIVE.
func (d *Driver) PowerOnInstance(ctx context.Context, inst Instance) (Update, error) {
	return d.transition(ctx, inst, d.compute.StartServer, "SHUTOFF", "ACTIVE")
}

// PowerOffInstance stops the REMOTE server and waits for SHUTOFF.
func (d *Driver) PowerOffInstance(ctx context.Context, inst Instance) (Update, error) {
	return d.transition(ctx, inst, d.compute.StopServer, "ACTIVE", "SHUTOFF")
}

// RebootInstance reboots the REMOTE server and waits until it has passed
// through a reboot state and is ACTIVE again.
func (d *Driver) RebootInstance(ctx context.Context, inst Instance, hard bool) (Update, error) {
	reboot := func(ctx context.Context, id string) error {
		return d.compute.RebootServer(ctx, id, hard)
	}
	return d.transition(ctx, inst, reboot, "ACTIVE", "ACTIVE")
}

func (d *Driver) transition(ctx context.Context, inst Instance, action func(context.Context, string) error, initial, terminal string) (Update, error) {
	remoteID := inst.Metadata[MetadataKey]
	if remoteID == "" {
		return Update{}, fmt.Errorf("instance %s: %w", inst.ID, ErrNoRemoteID)
	}
	if err := action(ctx, remoteID); err != nil {
		return Update{}, fmt.Errorf("instance %s: %w", inst.ID, err)
	}
	// A server that is still ACTIVE before a reboot starts has not rebooted.
	_, err := d.tracker.Await(ctx, d.serverPoller(), tracker.Operation{
		ResourceID:        remoteID,
		Initial:           initial,
		Terminal:          terminal,
		Transient:         serverTransient,
		RequireTransition: initial == terminal,
	})
	return settle(inst.Metadata, terminal, err)
}
