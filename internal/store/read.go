package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cloudsync/internal/resource"
)

const selectColumns = `id, kind, status, sync_key, local_id, remote_id, update_data`

// Get returns the mapping for (kind, syncKey).
func (s *Store) Get(ctx context.Context, kind resource.Kind, syncKey string) (resource.Mapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM mappings
		WHERE kind = ? AND sync_key = ?
	`, string(kind), syncKey)
	m, err := scanMapping(row)
	if err != nil {
		return resource.Mapping{}, fmt.Errorf("get mapping %s/%s: %w", kind, syncKey, err)
	}
	return m, nil
}

// GetByID returns the mapping with primary key id.
func (s *Store) GetByID(ctx context.Context, id string) (resource.Mapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM mappings
		WHERE id = ?
	`, id)
	m, err := scanMapping(row)
	if err != nil {
		return resource.Mapping{}, fmt.Errorf("get mapping %s: %w", id, err)
	}
	return m, nil
}

// FindBySide returns the mapping whose id on side equals id.
func (s *Store) FindBySide(ctx context.Context, kind resource.Kind, side resource.Side, id string) (resource.Mapping, error) {
	column := "local_id"
	if side == resource.Remote {
		column = "remote_id"
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM mappings
		WHERE kind = ? AND `+column+` = ?
		ORDER BY sync_key ASC, id ASC
		LIMIT 1
	`, string(kind), id)
	m, err := scanMapping(row)
	if err != nil {
		return resource.Mapping{}, fmt.Errorf("find %s %s id %s: %w", kind, side, id, err)
	}
	return m, nil
}

// Translate returns the id on side to of the object whose id on side from is id.
// It returns ErrNotFound unless the mapping exists and carries the target id.
func (s *Store) Translate(ctx context.Context, kind resource.Kind, from resource.Side, id string) (string, error) {
	m, err := s.FindBySide(ctx, kind, from, id)
	if err != nil {
		return "", err
	}
	target := m.IDFor(from.Opposite())
	if target == "" {
		return "", fmt.Errorf("translate %s %s id %s: %w", kind, from, id, ErrNotFound)
	}
	return target, nil
}

// List returns all mappings of kind ordered by sync_key.
func (s *Store) List(ctx context.Context, kind resource.Kind) ([]resource.Mapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM mappings
		WHERE kind = ?
		ORDER BY sync_key ASC, id ASC
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s mappings: %w", kind, err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// Dump returns every row ordered by kind, sync_key and id. Two dumps of an
// unchanged table are identical.
func (s *Store) Dump(ctx context.Context) ([]resource.Mapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM mappings
		ORDER BY kind ASC, sync_key ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("dump mappings: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMapping(row scanner) (resource.Mapping, error) {
	var (
		m                             resource.Mapping
		kind, status                  string
		localID, remoteID, updateData sql.NullString
	)
	err := row.Scan(&m.ID, &kind, &status, &m.SyncKey, &localID, &remoteID, &updateData)
	if errors.Is(err, sql.ErrNoRows) {
		return resource.Mapping{}, ErrNotFound
	}
	if err != nil {
		return resource.Mapping{}, err
	}
	m.Kind = resource.Kind(kind)
	m.Status = resource.Status(status)
	m.LocalID = localID.String
	m.RemoteID = remoteID.String
	m.UpdateData = updateData.String
	return m, nil
}

func scanAll(rows *sql.Rows) ([]resource.Mapping, error) {
	var out []resource.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mappings: %w", err)
	}
	return out, nil
}

// Violation describes a row that breaks a mapping invariant.
type Violation struct {
	Mapping resource.Mapping
	Err     error
}

// Check validates every row and returns the ones whose status disagrees with
// their ids. The schema rejects such rows on write, so a non-empty result
// means the file was edited outside this package.
func (s *Store) Check(ctx context.Context) ([]Violation, error) {
	all, err := s.Dump(ctx)
	if err != nil {
		return nil, err
	}
	var out []Violation
	for _, m := range all {
		if err := m.Validate(); err != nil {
			out = append(out, Violation{Mapping: m, Err: err})
		}
	}
	return out, nil
}
