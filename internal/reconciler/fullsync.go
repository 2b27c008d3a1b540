package reconciler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/cloudsync/internal/endpoint"
	"github.com/roach88/cloudsync/internal/resource"
	"github.com/roach88/cloudsync/internal/store"
)

// sideObjects indexes listed objects by side and id.
type sideObjects map[resource.Side]map[string]resource.Object

// FullSync lists both clouds and drives every mapping and every unmapped
// object toward a consistent state, kind by kind with parents first.
func (r *Reconciler) FullSync(ctx context.Context) error {
	r.logger.Info("full sync starting")
	for _, kind := range resource.Kinds {
		if err := r.syncKind(ctx, kind); err != nil {
			return fmt.Errorf("full sync %s: %w", kind, err)
		}
	}
	r.logger.Info("full sync complete")
	return nil
}

func (r *Reconciler) syncKind(ctx context.Context, kind resource.Kind) error {
	objs := make(sideObjects, 2)
	for _, side := range []resource.Side{resource.Local, resource.Remote} {
		list, err := r.sides[side].List(ctx, kind)
		if err != nil {
			return err
		}
		byID := make(map[string]resource.Object, len(list))
		for _, obj := range list {
			byID[obj.ID] = obj
		}
		objs[side] = byID
	}

	mappings, err := r.store.List(ctx, kind)
	if err != nil {
		return storeErr("list mappings", err)
	}

	referenced := map[resource.Side]map[string]bool{
		resource.Local:  {},
		resource.Remote: {},
	}
	for _, m := range mappings {
		if m.LocalID != "" {
			referenced[resource.Local][m.LocalID] = true
		}
		if m.RemoteID != "" {
			referenced[resource.Remote][m.RemoteID] = true
		}
	}

	unmapped, err := r.unmappedByKey(ctx, kind, objs, referenced)
	if err != nil {
		return err
	}

	for _, m := range mappings {
		if err := r.syncMapping(ctx, m, objs, unmapped); err != nil {
			return err
		}
	}

	// Unmapped objects: pair by key first, mirror the rest.
	for _, key := range slices.Sorted(maps.Keys(unmapped[resource.Local])) {
		lo := unmapped[resource.Local][key]
		ro, ok := unmapped[resource.Remote][key]
		if !ok {
			continue
		}
		delete(unmapped[resource.Local], key)
		delete(unmapped[resource.Remote], key)
		if err := r.adoptPair(ctx, key, lo, ro); err != nil {
			return err
		}
	}
	for _, side := range []resource.Side{resource.Local, resource.Remote} {
		for _, key := range slices.Sorted(maps.Keys(unmapped[side])) {
			if _, err := r.handleCreate(ctx, side, unmapped[side][key], false); err != nil {
				return err
			}
		}
	}
	return nil
}

// unmappedByKey keys every listed object no mapping references. Objects
// whose key cannot be derived yet are skipped.
func (r *Reconciler) unmappedByKey(ctx context.Context, kind resource.Kind, objs sideObjects, referenced map[resource.Side]map[string]bool) (map[resource.Side]map[string]resource.Object, error) {
	out := make(map[resource.Side]map[string]resource.Object, 2)
	for side, byID := range objs {
		out[side] = make(map[string]resource.Object)
		for _, id := range slices.Sorted(maps.Keys(byID)) {
			if referenced[side][id] {
				continue
			}
			obj := byID[id]
			key, ready, err := r.keyFor(ctx, side, obj)
			if errors.Is(err, resource.ErrNoSyncKey) || errors.Is(err, errNoParent) || (err == nil && !ready) {
				r.logger.Debug("unmapped object not keyable yet", "side", side, "kind", kind, "id", id)
				continue
			}
			if err != nil {
				return nil, err
			}
			if prev, dup := out[side][key]; dup {
				r.logger.Warn("duplicate sync key on one side", "side", side, "kind", kind, "sync_key", key, "ids", []string{prev.ID, id})
				continue
			}
			out[side][key] = obj
		}
	}
	return out, nil
}

// syncMapping reconciles one existing mapping against the listings.
func (r *Reconciler) syncMapping(ctx context.Context, m resource.Mapping, objs sideObjects, unmapped map[resource.Side]map[string]resource.Object) error {
	lo, lok := objs[resource.Local][m.LocalID]
	ro, rok := objs[resource.Remote][m.RemoteID]

	switch m.Status {
	case resource.StatusActive:
		if lok && rok {
			return r.reconcilePair(ctx, m, lo, ro)
		}
		localGone, remoteGone := !lok, !rok
		var err error
		if !lok {
			if localGone, err = r.gone(ctx, resource.Local, m.Kind, m.LocalID); err != nil {
				return err
			}
		}
		if !rok {
			if remoteGone, err = r.gone(ctx, resource.Remote, m.Kind, m.RemoteID); err != nil {
				return err
			}
		}
		switch {
		case localGone && remoteGone:
			if err := r.store.Delete(ctx, m.ID); err != nil {
				return storeErr("delete mapping", err)
			}
			r.logger.Info("removed mapping, both halves gone", "kind", m.Kind, "sync_key", m.SyncKey)
		case localGone:
			_, err = r.handleDelete(ctx, resource.Local, m.Kind, m.LocalID)
		case remoteGone:
			_, err = r.handleDelete(ctx, resource.Remote, m.Kind, m.RemoteID)
		default:
			r.logger.Debug("mapped object no longer listed, keeping mapping", "kind", m.Kind, "sync_key", m.SyncKey)
		}
		return err

	case resource.StatusCreating:
		side, ok := m.PresentSide()
		if !ok {
			return nil
		}
		obj, listed := objs[side][m.IDFor(side)]
		if !listed {
			gone, err := r.gone(ctx, side, m.Kind, m.IDFor(side))
			if err != nil || !gone {
				return err
			}
			if err := r.store.Delete(ctx, m.ID); err != nil {
				return storeErr("delete mapping", err)
			}
			r.logger.Info("dropped pending mapping, source gone", "kind", m.Kind, "sync_key", m.SyncKey)
			return nil
		}
		other := side.Opposite()
		if match, ok := unmapped[other][m.SyncKey]; ok {
			delete(unmapped[other], m.SyncKey)
			_, err := r.adopt(ctx, m, other, match)
			return err
		}
		_, err := r.createOpposite(ctx, m, side, obj)
		return err

	case resource.StatusDeleting:
		side, ok := m.PresentSide()
		if !ok {
			return nil
		}
		_, err := r.finishDelete(ctx, m, side)
		return err
	}
	return nil
}

// reconcilePair applies the three-way comparison of an ACTIVE mapping.
// Edits on one side win over the snapshot; edits on both sides resolve in
// favour of REMOTE. Without a snapshot the halves are compared directly.
func (r *Reconciler) reconcilePair(ctx context.Context, m resource.Mapping, lo, ro resource.Object) error {
	snap, err := m.Snapshot()
	if err != nil {
		return err
	}
	fields := resource.FieldsFor(m.Kind).Update
	lp := resource.Project(lo.Attrs, fields)
	rp := resource.Project(ro.Attrs, fields)

	if snap == nil {
		if diff := resource.Changed(lp, rp, fields); len(diff) > 0 {
			_, err = r.push(ctx, m, resource.Remote, ro, diff)
			return err
		}
		return r.refreshSnapshot(ctx, m, ro)
	}

	localChanged := resource.Changed(snap, lp, fields)
	remoteChanged := resource.Changed(snap, rp, fields)
	switch {
	case len(localChanged) == 0 && len(remoteChanged) == 0:
		return nil
	case len(remoteChanged) == 0:
		_, err = r.push(ctx, m, resource.Local, lo, localChanged)
	case len(localChanged) == 0:
		_, err = r.push(ctx, m, resource.Remote, ro, remoteChanged)
	default:
		diff := resource.Changed(lp, rp, fields)
		if len(diff) == 0 {
			return r.refreshSnapshot(ctx, m, ro)
		}
		r.logger.Info("conflicting edits, remote wins", "kind", m.Kind, "sync_key", m.SyncKey, "fields", diff)
		_, err = r.push(ctx, m, resource.Remote, ro, diff)
	}
	return err
}

// adoptPair binds two unmapped objects sharing a sync key. Differing
// UPDATE_FIELDS are copied from REMOTE to LOCAL first.
func (r *Reconciler) adoptPair(ctx context.Context, key string, lo, ro resource.Object) error {
	mid, err := resource.MappingID(lo.Kind, key)
	if err != nil {
		return err
	}
	m := resource.Mapping{
		ID:       mid,
		Kind:     lo.Kind,
		Status:   resource.StatusActive,
		SyncKey:  key,
		LocalID:  lo.ID,
		RemoteID: ro.ID,
	}

	fields := resource.FieldsFor(lo.Kind).Update
	synced := true
	if diff := resource.Changed(lo.Attrs, ro.Attrs, fields); len(diff) > 0 {
		if _, err := r.sides[resource.Local].Update(ctx, lo.Kind, lo.ID, resource.Project(ro.Attrs, diff)); err != nil {
			r.logger.Warn("could not align adopted pair", "kind", lo.Kind, "sync_key", key, "error", err)
			synced = false
		}
	}
	if synced {
		if m.UpdateData, err = resource.Snapshot(ro); err != nil {
			return err
		}
	}

	err = r.store.Insert(ctx, m)
	if errors.Is(err, store.ErrConflict) {
		r.logger.Warn("sync key already mapped, not adopting pair", "kind", lo.Kind, "sync_key", key)
		return nil
	}
	if err != nil {
		return storeErr("insert mapping", err)
	}
	r.logger.Info("adopted existing pair", "kind", lo.Kind, "sync_key", key, "local_id", lo.ID, "remote_id", ro.ID)
	return nil
}

// gone reports whether the object is confirmed absent. An object that still
// exists but is no longer listed (unmappable) is not gone.
func (r *Reconciler) gone(ctx context.Context, side resource.Side, kind resource.Kind, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	_, err := r.sides[side].Get(ctx, kind, id)
	switch {
	case errors.Is(err, endpoint.ErrNotFound):
		return true, nil
	case err != nil:
		r.logger.Warn("could not confirm object state, skipping", "side", side, "kind", kind, "id", id, "error", err)
		return false, nil
	}
	return false, nil
}
