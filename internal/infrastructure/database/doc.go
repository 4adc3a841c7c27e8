// Package database opens the bridge's SQLite store and applies its schema.
//
// The database holds three tables:
//   - device_mappings: external endpoint id to handle, owned by the mapping package
//   - devices: the host-side device records, owned by the device package
//   - settings: small key/value facts such as the persisted MQTT client id
//
// Connections use WAL mode and a busy timeout, and the pool is capped at one
// open connection because SQLite allows a single writer.
//
// Migrations:
//
// Schema files are embedded by the top-level migrations package, which sets
// MigrationsFS on import. Filenames follow YYYYMMDD_HHMMSS_name.up.sql with a
// matching .down.sql. Each migration runs in its own transaction.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "data/soundswitch.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
