package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSettingNotFound is returned by GetSetting for a missing key.
var ErrSettingNotFound = errors.New("database: setting not found")

// Setting keys.
const (
	// SettingMQTTClientID holds the generated MQTT client id.
	SettingMQTTClientID = "mqtt.client_id"
)

// GetSetting returns the value stored under key.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrSettingNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores value under key, replacing any previous value.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// SettingOrInit returns the value under key. When the key is missing, it
// stores and returns the value produced by generate.
func (db *DB) SettingOrInit(ctx context.Context, key string, generate func() string) (string, error) {
	value, err := db.GetSetting(ctx, key)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrSettingNotFound) {
		return "", err
	}

	value = generate()
	if err := db.SetSetting(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}
