package mapping

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the device_mappings table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE device_mappings (
			external_id TEXT PRIMARY KEY,
			node_id INTEGER NOT NULL,
			endpoint_id INTEGER NOT NULL,
			attribute TEXT NOT NULL,
			handle INTEGER NOT NULL UNIQUE CHECK (handle BETWEEN 1 AND 254)
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(setupTestDB(t))

	entries := []Entry{
		{ExternalID: "12_1_toneId", NodeID: 12, EndpointID: 1, Attribute: "toneId", Handle: 2},
		{ExternalID: "12_1_defaultVolume", NodeID: 12, EndpointID: 1, Attribute: "defaultVolume", Handle: 1},
	}
	if err := store.SaveMapping(ctx, entries); err != nil {
		t.Fatalf("SaveMapping() error = %v", err)
	}

	got, err := store.LoadMapping(ctx)
	if err != nil {
		t.Fatalf("LoadMapping() error = %v", err)
	}
	if len(got) != 2 || got[0].Handle != 1 || got[1].ExternalID != "12_1_toneId" {
		t.Errorf("LoadMapping() = %+v", got)
	}

	// Saving replaces rather than merges.
	if err := store.SaveMapping(ctx, entries[:1]); err != nil {
		t.Fatal(err)
	}
	got, _ = store.LoadMapping(ctx)
	if len(got) != 1 {
		t.Errorf("len = %d after replace, want 1", len(got))
	}
}

func TestSQLiteStoreRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(setupTestDB(t))

	if err := store.SaveMapping(ctx, []Entry{{ExternalID: "1_0_toneId", NodeID: 1, Attribute: "toneId", Handle: 3}}); err != nil {
		t.Fatal(err)
	}

	err := store.SaveMapping(ctx, []Entry{
		{ExternalID: "1_0_toneId", NodeID: 1, Attribute: "toneId", Handle: 3},
		{ExternalID: "2_0_toneId", NodeID: 2, Attribute: "toneId", Handle: 3},
	})
	if !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("SaveMapping() error = %v, want ErrInvalidEntry", err)
	}

	// The previous mapping survives a rejected save.
	got, _ := store.LoadMapping(ctx)
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
}

func TestAllocatorWithSQLite(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	a := newTestAllocator(t, NewSQLiteStore(db))
	if _, err := a.Allocate(ctx, key(3, 0, "defaultVolume")); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Allocate(ctx, key(3, 0, "toneId")); err != nil {
		t.Fatal(err)
	}

	// A second allocator over the same database sees the same mapping.
	b := newTestAllocator(t, NewSQLiteStore(db))
	e, ok := b.Lookup(key(3, 0, "toneId"))
	if !ok || e.Handle != 2 {
		t.Errorf("Lookup() = %+v, %v; want handle 2", e, ok)
	}
}
