package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "feedbot.db")

	db, err := Open(DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}
	if db.Driver() != DriverSQLite {
		t.Errorf("driver: got %s", db.Driver())
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "whatever"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "feedbot.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate #%d failed: %v", i+1, err)
		}
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM plugin_store").Scan(&count); err != nil {
		t.Fatalf("plugin_store 表不存在: %v", err)
	}
}

func TestRebind(t *testing.T) {
	sqlite := &DB{driver: DriverSQLite}
	pg := &DB{driver: DriverPostgres}
	q := "SELECT value FROM plugin_store WHERE namespace = ? AND key = ?"

	if got := sqlite.Rebind(q); got != q {
		t.Errorf("sqlite Rebind should not change query: %s", got)
	}
	want := "SELECT value FROM plugin_store WHERE namespace = $1 AND key = $2"
	if got := pg.Rebind(q); got != want {
		t.Errorf("postgres Rebind: got %s, want %s", got, want)
	}
}

func TestOpenPostgres(t *testing.T) {
	dsn := os.Getenv("FEEDBOT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("FEEDBOT_TEST_PG_DSN 未设置")
	}
	db, err := Open(DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
}
