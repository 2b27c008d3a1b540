package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/cloudsync/internal/endpoint"
	"github.com/roach88/cloudsync/internal/resource"
	"github.com/roach88/cloudsync/internal/store"
)

// keyFor derives the sync key of obj as announced by side. Children need
// the REMOTE id of their network, so their key exists only once the parent
// mapping is ACTIVE; ready is false until then. A child whose network has
// no mapping yields errNoParent.
func (r *Reconciler) keyFor(ctx context.Context, side resource.Side, obj resource.Object) (key string, ready bool, err error) {
	if obj.Kind == resource.KindNetwork {
		key, err := resource.NetworkKey(obj)
		return key, err == nil, err
	}

	netID := obj.NetworkID()
	if netID == "" {
		return "", false, fmt.Errorf("%s %s has no network_id: %w", obj.Kind, obj.ID, resource.ErrNoSyncKey)
	}
	parent, err := r.store.FindBySide(ctx, resource.KindNetwork, side, netID)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, fmt.Errorf("%s %s on network %s: %w", obj.Kind, obj.ID, netID, errNoParent)
	}
	if err != nil {
		return "", false, storeErr("find parent", err)
	}
	if parent.Status != resource.StatusActive {
		return "", false, nil
	}
	key, err = resource.SyncKey(obj, parent.RemoteID)
	return key, err == nil, err
}

// handleCreate mirrors a newly announced object. With deferrable set, a
// child whose parent is not ACTIVE yields errDeferred; otherwise it is
// skipped and left for the next full sync.
func (r *Reconciler) handleCreate(ctx context.Context, origin resource.Side, obj resource.Object, deferrable bool) (Outcome, error) {
	if !r.predicate.Mappable(obj) {
		return OutcomeIgnored, nil
	}

	key, ready, err := r.keyFor(ctx, origin, obj)
	if err != nil {
		if errors.Is(err, resource.ErrNoSyncKey) || errors.Is(err, errNoParent) {
			r.logger.Warn("dropping unkeyable object", "side", origin, "kind", obj.Kind, "id", obj.ID, "error", err)
			return OutcomeDropped, nil
		}
		return OutcomeFailed, err
	}
	if !ready {
		if deferrable {
			return OutcomeDeferred, errDeferred
		}
		r.logger.Debug("parent not active, skipping", "side", origin, "kind", obj.Kind, "id", obj.ID)
		return OutcomeIgnored, nil
	}

	m, err := r.store.Get(ctx, obj.Kind, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		m, err = resource.NewMapping(obj.Kind, key, origin, obj.ID)
		if err != nil {
			return OutcomeFailed, err
		}
		if m.UpdateData, err = resource.Snapshot(obj); err != nil {
			return OutcomeFailed, err
		}
		err = r.store.Insert(ctx, m)
		if errors.Is(err, store.ErrConflict) {
			// Someone claimed the key between Get and Insert; re-read it.
			if m, err = r.store.Get(ctx, obj.Kind, key); err != nil {
				return OutcomeFailed, storeErr("reread mapping", err)
			}
			return r.adopt(ctx, m, origin, obj)
		}
		if err != nil {
			return OutcomeFailed, storeErr("insert mapping", err)
		}
		return r.createOpposite(ctx, m, origin, obj)
	case err != nil:
		return OutcomeFailed, storeErr("get mapping", err)
	}
	return r.adopt(ctx, m, origin, obj)
}

// adopt binds obj to an existing mapping with the same sync key. Only a
// CREATING mapping that waits for exactly this side is completed; anything
// else (a replay, a duplicate object) is left alone.
func (r *Reconciler) adopt(ctx context.Context, m resource.Mapping, origin resource.Side, obj resource.Object) (Outcome, error) {
	current := m.IDFor(origin)
	switch {
	case current == obj.ID:
		return OutcomeNoop, nil
	case current != "":
		r.logger.Warn("sync key already bound to another object",
			"side", origin, "kind", obj.Kind, "id", obj.ID, "bound_id", current, "sync_key", m.SyncKey)
		return OutcomeIgnored, nil
	case m.Status != resource.StatusCreating:
		r.logger.Debug("mapping not adoptable", "kind", obj.Kind, "sync_key", m.SyncKey, "status", m.Status)
		return OutcomeIgnored, nil
	}

	m.SetID(origin, obj.ID)
	m.Status = resource.StatusActive
	// The snapshot holds the other half's fields. When the halves disagree
	// it is cleared, and the next full sync settles them with REMOTE winning.
	snap, err := m.Snapshot()
	if err != nil {
		return OutcomeFailed, err
	}
	fields := resource.FieldsFor(obj.Kind).Update
	if snap != nil && len(resource.Changed(snap, obj.Attrs, fields)) > 0 {
		m.UpdateData = ""
	}
	if err := r.store.Update(ctx, m); err != nil {
		return OutcomeFailed, storeErr("adopt mapping", err)
	}
	r.logger.Info("adopted object", "side", origin, "kind", obj.Kind, "id", obj.ID, "sync_key", m.SyncKey)
	return OutcomeApplied, nil
}

// createOpposite issues the mirror create for a CREATING mapping and marks
// it ACTIVE on success. On failure the mapping stays CREATING.
func (r *Reconciler) createOpposite(ctx context.Context, m resource.Mapping, origin resource.Side, obj resource.Object) (Outcome, error) {
	target := origin.Opposite()
	created, err := r.sides[target].Create(ctx, obj.Kind, r.mirrorAttrs(obj, target))
	if err != nil {
		r.logger.Warn("mirror create failed, left for full sync",
			"side", target, "kind", obj.Kind, "source_id", obj.ID, "sync_key", m.SyncKey, "error", err)
		return OutcomeFailed, nil
	}

	m.SetID(target, created.ID)
	m.Status = resource.StatusActive
	if err := r.store.Update(ctx, m); err != nil {
		return OutcomeFailed, storeErr("activate mapping", err)
	}
	r.logger.Info("mirrored object", "from", origin, "kind", obj.Kind,
		"source_id", obj.ID, "target_id", created.ID, "sync_key", m.SyncKey)
	return OutcomeApplied, nil
}

// mirrorAttrs applies the port ownership policy for objects created on target.
func (r *Reconciler) mirrorAttrs(obj resource.Object, target resource.Side) resource.Attrs {
	attrs := obj.Attrs.Clone()
	if obj.Kind != resource.KindPort {
		return attrs
	}
	switch target {
	case resource.Local:
		if dev := attrs.Str("device_id"); dev != "" {
			attrs["device_id"] = resource.String(r.deviceIDPrefix + dev)
		}
	case resource.Remote:
		attrs["device_owner"] = resource.String(r.deviceOwner)
	}
	return attrs
}

// handleUpdate propagates UPDATE_FIELDS that changed since the snapshot.
func (r *Reconciler) handleUpdate(ctx context.Context, origin resource.Side, obj resource.Object) (Outcome, error) {
	m, err := r.store.FindBySide(ctx, obj.Kind, origin, obj.ID)
	if errors.Is(err, store.ErrNotFound) {
		return OutcomeIgnored, nil
	}
	if err != nil {
		return OutcomeFailed, storeErr("find mapping", err)
	}
	if m.Status != resource.StatusActive {
		return OutcomeIgnored, nil
	}

	snap, err := m.Snapshot()
	if err != nil {
		return OutcomeFailed, err
	}
	fields := resource.FieldsFor(obj.Kind).Update
	var changed []string
	if snap == nil {
		changed = fields
	} else {
		changed = resource.Changed(snap, obj.Attrs, fields)
	}
	if len(changed) == 0 {
		return OutcomeNoop, nil
	}
	return r.push(ctx, m, origin, obj, changed)
}

// push copies fields of obj (on from) onto the opposite half of m and
// refreshes the snapshot. A vanished target demotes m to CREATING so the
// next full sync recreates it.
func (r *Reconciler) push(ctx context.Context, m resource.Mapping, from resource.Side, obj resource.Object, fields []string) (Outcome, error) {
	to := from.Opposite()
	_, err := r.sides[to].Update(ctx, obj.Kind, m.IDFor(to), resource.Project(obj.Attrs, fields))
	if errors.Is(err, endpoint.ErrNotFound) {
		r.logger.Warn("update target vanished, demoting mapping",
			"side", to, "kind", obj.Kind, "id", m.IDFor(to), "sync_key", m.SyncKey)
		m.SetID(to, "")
		m.Status = resource.StatusCreating
		if err := r.store.Update(ctx, m); err != nil {
			return OutcomeFailed, storeErr("demote mapping", err)
		}
		return OutcomeApplied, nil
	}
	if err != nil {
		r.logger.Warn("update propagation failed", "side", to, "kind", obj.Kind, "id", m.IDFor(to), "error", err)
		return OutcomeFailed, nil
	}

	if err := r.refreshSnapshot(ctx, m, obj); err != nil {
		return OutcomeFailed, err
	}
	r.logger.Info("propagated update", "from", from, "kind", obj.Kind, "sync_key", m.SyncKey, "fields", fields)
	return OutcomeApplied, nil
}

// refreshSnapshot stores obj's UPDATE_FIELDS in m when they differ from
// what is recorded.
func (r *Reconciler) refreshSnapshot(ctx context.Context, m resource.Mapping, obj resource.Object) error {
	snap, err := resource.Snapshot(obj)
	if err != nil {
		return err
	}
	if snap == m.UpdateData {
		return nil
	}
	m.UpdateData = snap
	if err := r.store.Update(ctx, m); err != nil {
		return storeErr("refresh snapshot", err)
	}
	return nil
}

// handleDelete removes the opposite half of a deleted object, then the
// mapping. A failed opposite delete leaves the mapping DELETING.
func (r *Reconciler) handleDelete(ctx context.Context, origin resource.Side, kind resource.Kind, id string) (Outcome, error) {
	m, err := r.store.FindBySide(ctx, kind, origin, id)
	if errors.Is(err, store.ErrNotFound) {
		return OutcomeIgnored, nil
	}
	if err != nil {
		return OutcomeFailed, storeErr("find mapping", err)
	}

	target := origin.Opposite()
	targetID := m.IDFor(target)
	if targetID == "" {
		if err := r.store.Delete(ctx, m.ID); err != nil {
			return OutcomeFailed, storeErr("delete mapping", err)
		}
		r.logger.Info("removed mapping", "kind", kind, "sync_key", m.SyncKey)
		return OutcomeApplied, nil
	}

	m.SetID(origin, "")
	m.Status = resource.StatusDeleting
	if err := r.store.Update(ctx, m); err != nil {
		return OutcomeFailed, storeErr("mark deleting", err)
	}
	return r.finishDelete(ctx, m, target)
}

// finishDelete deletes the remaining half of a DELETING mapping on side and
// drops the row once that succeeds.
func (r *Reconciler) finishDelete(ctx context.Context, m resource.Mapping, side resource.Side) (Outcome, error) {
	if err := r.sides[side].Delete(ctx, m.Kind, m.IDFor(side)); err != nil {
		r.logger.Warn("mirror delete failed, left for full sync",
			"side", side, "kind", m.Kind, "id", m.IDFor(side), "error", err)
		return OutcomeFailed, nil
	}
	if err := r.store.Delete(ctx, m.ID); err != nil {
		return OutcomeFailed, storeErr("delete mapping", err)
	}
	r.logger.Info("mirrored delete", "side", side, "kind", m.Kind, "id", m.IDFor(side), "sync_key", m.SyncKey)
	return OutcomeApplied, nil
}
