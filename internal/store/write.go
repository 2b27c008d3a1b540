package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/cloudsync/internal/resource"
)

var errReadOnly = errors.New("store opened read-only")

// Insert adds a new mapping row. It returns ErrConflict when a row with the
// same id or (kind, sync_key) already exists.
func (s *Store) Insert(ctx context.Context, m resource.Mapping) error {
	if s.readOnly {
		return errReadOnly
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("insert mapping: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mappings
		(id, kind, status, sync_key, local_id, remote_id, update_data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID,
		string(m.Kind),
		string(m.Status),
		m.SyncKey,
		nullable(m.LocalID),
		nullable(m.RemoteID),
		nullable(m.UpdateData),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("insert mapping %s/%s: %w", m.Kind, m.SyncKey, ErrConflict)
		}
		return fmt.Errorf("insert mapping %s/%s: %w", m.Kind, m.SyncKey, err)
	}
	return nil
}

// Update overwrites the mutable columns of the row with m.ID.
// It returns ErrNotFound when the row no longer exists.
func (s *Store) Update(ctx context.Context, m resource.Mapping) error {
	if s.readOnly {
		return errReadOnly
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("update mapping: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE mappings
		SET status = ?, local_id = ?, remote_id = ?, update_data = ?
		WHERE id = ?
	`,
		string(m.Status),
		nullable(m.LocalID),
		nullable(m.RemoteID),
		nullable(m.UpdateData),
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("update mapping %s/%s: %w", m.Kind, m.SyncKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update mapping %s/%s: %w", m.Kind, m.SyncKey, err)
	}
	if n == 0 {
		return fmt.Errorf("update mapping %s/%s: %w", m.Kind, m.SyncKey, ErrNotFound)
	}
	return nil
}

// Delete removes the row with the given id. Deleting a missing row is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s.readOnly {
		return errReadOnly
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mappings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete mapping %s: %w", id, err)
	}
	return nil
}

// nullable maps "" to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
