package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository persists host devices.
type Repository interface {
	// Get returns ErrDeviceNotFound when no device owns handle.
	Get(ctx context.Context, handle int) (*Device, error)

	// List returns every device ordered by handle.
	List(ctx context.Context) ([]Device, error)

	// Upsert inserts d or replaces the device with the same handle,
	// keeping the original created_at.
	Upsert(ctx context.Context, d *Device) error

	// Delete returns ErrDeviceNotFound when no device owns handle.
	Delete(ctx context.Context, handle int) error
}

// SQLiteRepository implements Repository over the devices table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `handle, external_id, name, kind, enabled, level, level_names,
	node_id, endpoint_id, created_at, updated_at`

// Get returns the device owning handle.
func (r *SQLiteRepository) Get(ctx context.Context, handle int) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE handle = ?`, handle)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrDeviceNotFound, handle)
		}
		return nil, fmt.Errorf("querying device %d: %w", handle, err)
	}
	return d, nil
}

// List returns every device ordered by handle.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY handle`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Upsert writes d, setting UpdatedAt and, for new rows, CreatedAt.
func (r *SQLiteRepository) Upsert(ctx context.Context, d *Device) error {
	if err := ValidateDevice(d); err != nil {
		return err
	}

	levelNames, err := json.Marshal(d.LevelNames)
	if err != nil {
		return fmt.Errorf("marshalling level names: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(handle) DO UPDATE SET
			external_id = excluded.external_id,
			name = excluded.name,
			kind = excluded.kind,
			enabled = excluded.enabled,
			level = excluded.level,
			level_names = excluded.level_names,
			node_id = excluded.node_id,
			endpoint_id = excluded.endpoint_id,
			updated_at = excluded.updated_at`,
		d.Handle,
		d.ExternalID,
		d.Name,
		string(d.Kind),
		boolToInt(d.Enabled),
		d.Level,
		string(levelNames),
		d.NodeID,
		d.EndpointID,
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting device %d: %w", d.Handle, err)
	}
	return nil
}

// Delete removes the device owning handle.
func (r *SQLiteRepository) Delete(ctx context.Context, handle int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE handle = ?`, handle)
	if err != nil {
		return fmt.Errorf("deleting device %d: %w", handle, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting device %d: %w", handle, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrDeviceNotFound, handle)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var kind, levelNames, createdAt, updatedAt string
	var enabled int

	err := scanner.Scan(
		&d.Handle,
		&d.ExternalID,
		&d.Name,
		&kind,
		&enabled,
		&d.Level,
		&levelNames,
		&d.NodeID,
		&d.EndpointID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Kind = Kind(kind)
	d.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(levelNames), &d.LevelNames); err != nil {
		return nil, fmt.Errorf("unmarshalling level_names: %w", err)
	}

	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
