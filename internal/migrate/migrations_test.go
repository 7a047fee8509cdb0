package migrate

import (
	"context"
	"testing"

	"esgtrack/internal/db"
)

func TestMigrate_FreshAndIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if v, err := Current(ctx, conn); err != nil || v != 0 {
		t.Fatalf("expected fresh version 0, got %d (%v)", v, err)
	}
	if err := Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Migrate(ctx, conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	migrations, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := migrations[len(migrations)-1].Version
	got, err := Current(ctx, conn)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got != want {
		t.Fatalf("expected version %d, got %d", want, got)
	}

	for _, table := range []string{"rulebook", "companies", "tasks", "events", "evidence", "meters", "webhook_cursors"} {
		var n int
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n); err != nil {
			t.Fatalf("lookup %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("table %s missing", table)
		}
	}
}

func TestLoad_Ordered(t *testing.T) {
	migrations, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected at least two migrations, got %d", len(migrations))
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			t.Fatalf("migrations out of order: %s before %s", migrations[i-1].Name, migrations[i].Name)
		}
	}
}
