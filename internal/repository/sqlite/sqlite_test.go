package sqlite

import (
	"context"
	"testing"
	"time"
)

// newTestDB returns an in-memory database with migrations applied.
// t.Cleanup closes it when the test (or subtest) finishes.
func newTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := New(":memory:", opts...)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// freezeClock pins db.now so timestamps compare exactly after a round trip.
func freezeClock(db *DB, at time.Time) {
	db.now = func() time.Time { return at }
}

func TestMigrate_AppliesAllVersions(t *testing.T) {
	db := newTestDB(t)

	version, err := db.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	want := migrations[len(migrations)-1].version
	if version != want {
		t.Errorf("SchemaVersion() = %d, want %d", version, want)
	}

	for _, table := range []string{"users", "scores", "schema_migrations"} {
		var n int
		err := db.conn.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&n)
		if err != nil || n != 1 {
			t.Errorf("table %s missing (n=%d, err=%v)", table, n, err)
		}
	}
}

func TestMigrate_IsRepeatable(t *testing.T) {
	db := newTestDB(t)

	// Running again must not re-apply any step.
	if err := db.migrate(context.Background()); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}

	var rows int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&rows); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}
	if rows != len(migrations) {
		t.Errorf("schema_migrations has %d rows, want %d", rows, len(migrations))
	}
}
