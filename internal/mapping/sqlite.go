package mapping

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteStore implements Store on the device_mappings table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an open SQLite connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// LoadMapping returns every entry ordered by handle.
func (s *SQLiteStore) LoadMapping(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT external_id, node_id, endpoint_id, attribute, handle
		FROM device_mappings
		ORDER BY handle`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying mappings: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ExternalID, &e.NodeID, &e.EndpointID, &e.Attribute, &e.Handle); err != nil {
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mappings: %w", err)
	}
	return entries, nil
}

// SaveMapping replaces the table contents in one transaction. Invalid sets
// are rejected before anything is written.
func (s *SQLiteStore) SaveMapping(ctx context.Context, entries []Entry) error {
	if err := validateSet(entries); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM device_mappings`); err != nil {
		return fmt.Errorf("clearing mappings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO device_mappings (external_id, node_id, endpoint_id, attribute, handle)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing mapping insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ExternalID, e.NodeID, e.EndpointID, e.Attribute, e.Handle); err != nil {
			return fmt.Errorf("inserting mapping %s: %w", e.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing mappings: %w", err)
	}
	return nil
}
