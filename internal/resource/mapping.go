package resource

import (
	"fmt"
)

// Mapping binds the LOCAL and REMOTE ids of one logical object.
// An empty LocalID or RemoteID means the column is NULL.
type Mapping struct {
	ID         string
	Kind       Kind
	Status     Status
	SyncKey    string
	LocalID    string
	RemoteID   string
	UpdateData string
}

// NewMapping creates a CREATING mapping with only side's id set.
func NewMapping(kind Kind, syncKey string, side Side, id string) (Mapping, error) {
	mid, err := MappingID(kind, syncKey)
	if err != nil {
		return Mapping{}, err
	}
	m := Mapping{ID: mid, Kind: kind, Status: StatusCreating, SyncKey: syncKey}
	m.SetID(side, id)
	return m, nil
}

// IDFor returns the id on side.
func (m Mapping) IDFor(side Side) string {
	if side == Local {
		return m.LocalID
	}
	return m.RemoteID
}

// SetID sets the id on side.
func (m *Mapping) SetID(side Side, id string) {
	if side == Local {
		m.LocalID = id
	} else {
		m.RemoteID = id
	}
}

// PresentSide returns the side whose id is set when exactly one is.
func (m Mapping) PresentSide() (Side, bool) {
	switch {
	case m.LocalID != "" && m.RemoteID == "":
		return Local, true
	case m.LocalID == "" && m.RemoteID != "":
		return Remote, true
	}
	return "", false
}

// Snapshot decodes UpdateData.
func (m Mapping) Snapshot() (Attrs, error) {
	return ParseSnapshot(m.UpdateData)
}

// Validate checks that Status agrees with the nullness of the two ids.
// ACTIVE needs both ids, CREATING and DELETING exactly one; a row with
// neither id is never valid.
func (m Mapping) Validate() error {
	hasLocal, hasRemote := m.LocalID != "", m.RemoteID != ""
	switch m.Status {
	case StatusActive:
		if !hasLocal || !hasRemote {
			return fmt.Errorf("mapping %s/%s: ACTIVE requires both ids", m.Kind, m.SyncKey)
		}
	case StatusCreating, StatusDeleting:
		if hasLocal == hasRemote {
			return fmt.Errorf("mapping %s/%s: %s requires exactly one id", m.Kind, m.SyncKey, m.Status)
		}
	default:
		return fmt.Errorf("mapping %s/%s: unknown status %q", m.Kind, m.SyncKey, m.Status)
	}
	if len(m.SyncKey) == 0 || len(m.SyncKey) > 255 {
		return fmt.Errorf("mapping %s: sync key length %d out of range", m.Kind, len(m.SyncKey))
	}
	if len(m.UpdateData) > MaxSnapshotBytes {
		return fmt.Errorf("mapping %s/%s: update_data exceeds %d bytes", m.Kind, m.SyncKey, MaxSnapshotBytes)
	}
	return nil
}
