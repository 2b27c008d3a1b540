package store

import (
	"context"
	"fmt"
	"sort"
)

// SaveMetadata upserts metadata for the LOCAL record localID. Keys not in
// metadata are left untouched. It implements driver.RecordStore.
func (s *Store) SaveMetadata(ctx context.Context, localID string, metadata map[string]string) error {
	if s.readOnly {
		return errReadOnly
	}
	if localID == "" {
		return fmt.Errorf("save metadata: empty record id")
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save metadata %s: %w", localID, err)
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO record_metadata (local_id, key, value)
			VALUES (?, ?, ?)
			ON CONFLICT (local_id, key) DO UPDATE SET value = excluded.value
		`, localID, k, metadata[k]); err != nil {
			return fmt.Errorf("save metadata %s/%s: %w", localID, k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save metadata %s: %w", localID, err)
	}
	return nil
}

// Metadata returns the stored metadata of localID, empty when none exists.
func (s *Store) Metadata(ctx context.Context, localID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM record_metadata WHERE local_id = ? ORDER BY key
	`, localID)
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", localID, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("read metadata %s: %w", localID, err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
