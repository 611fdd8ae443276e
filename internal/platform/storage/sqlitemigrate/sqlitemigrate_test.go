package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func TestApplyMigrationsRecordsApplied(t *testing.T) {
	t.Parallel()
	db := openTempDB(t)

	migrations := fstest.MapFS{
		"001_users.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE users(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE users;"),
		},
		"002_posts.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE posts(id TEXT PRIMARY KEY);"),
		},
		"README.md": &fstest.MapFile{Data: []byte("ignored")},
	}

	applied, err := ApplyMigrations(context.Background(), db, migrations, "")
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if len(applied) != 2 || applied[0] != "001_users.sql" || applied[1] != "002_posts.sql" {
		t.Fatalf("applied = %v, want both files in order", applied)
	}
	if got := countRows(t, db, "schema_migrations"); got != 2 {
		t.Fatalf("migration rows = %d, want 2", got)
	}
	if !tableExists(t, db, "users") || !tableExists(t, db, "posts") {
		t.Fatal("expected migrated tables to exist")
	}
}

func TestApplyMigrationsSkipsAlreadyApplied(t *testing.T) {
	t.Parallel()
	db := openTempDB(t)

	migrations := fstest.MapFS{
		"001_users.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE users(id TEXT PRIMARY KEY);"),
		},
	}
	if _, err := ApplyMigrations(context.Background(), db, migrations, ""); err != nil {
		t.Fatalf("apply initial migrations: %v", err)
	}
	applied, err := ApplyMigrations(context.Background(), db, migrations, "")
	if err != nil {
		t.Fatalf("replay should be idempotent: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("replay applied %v, want none", applied)
	}
	if got := countRows(t, db, "schema_migrations"); got != 1 {
		t.Fatalf("migration rows = %d, want 1", got)
	}
}

func TestApplyMigrationsDoesNotRecordFailedMigration(t *testing.T) {
	t.Parallel()
	db := openTempDB(t)

	bad := fstest.MapFS{
		"001_bad.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREAT TABLE things(id INT);")},
	}
	if _, err := ApplyMigrations(context.Background(), db, bad, ""); err == nil {
		t.Fatal("expected bad migration to fail")
	}
	if got := countRows(t, db, "schema_migrations"); got != 0 {
		t.Fatalf("failed migration recorded %d rows", got)
	}

	good := fstest.MapFS{
		"001_bad.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE things(id INTEGER PRIMARY KEY);")},
	}
	if _, err := ApplyMigrations(context.Background(), db, good, ""); err != nil {
		t.Fatalf("apply fixed migration: %v", err)
	}
	if got := countRows(t, db, "schema_migrations"); got != 1 {
		t.Fatalf("migration rows = %d, want 1", got)
	}
}

func TestApplyMigrationsKeysByRoot(t *testing.T) {
	t.Parallel()
	db := openTempDB(t)

	migrations := fstest.MapFS{
		"collab/001_collab.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE messages(id TEXT PRIMARY KEY);"),
		},
	}
	applied, err := ApplyMigrations(context.Background(), db, migrations, "collab")
	if err != nil {
		t.Fatalf("apply migrations with root: %v", err)
	}
	if len(applied) != 1 || applied[0] != "collab/001_collab.sql" {
		t.Fatalf("applied = %v, want root-qualified key", applied)
	}
}

func TestApplyMigrationsRequiresDB(t *testing.T) {
	t.Parallel()
	if _, err := ApplyMigrations(context.Background(), nil, fstest.MapFS{}, ""); err == nil {
		t.Fatal("expected nil db error")
	}
}

func TestExtractUpMigration(t *testing.T) {
	t.Parallel()

	if got := ExtractUpMigration("CREATE TABLE a(id INT);"); got != "CREATE TABLE a(id INT);" {
		t.Fatalf("markerless content = %q", got)
	}
	got := ExtractUpMigration("-- +migrate Up\nUP;\n-- +migrate Down\nDOWN;")
	if got != "\nUP;\n" {
		t.Fatalf("up section = %q", got)
	}
}

func TestIsAlreadyExistsError(t *testing.T) {
	t.Parallel()

	if !IsAlreadyExistsError(errors.New("table users already exists")) {
		t.Fatal("expected already exists match")
	}
	if !IsAlreadyExistsError(errors.New("Duplicate column name: read")) {
		t.Fatal("expected duplicate column match")
	}
	if IsAlreadyExistsError(errors.New("syntax error")) || IsAlreadyExistsError(nil) {
		t.Fatal("unexpected match")
	}
}

func openTempDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int64 {
	t.Helper()
	var value int64
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&value); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return value
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var found string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		t.Fatalf("check table exists: %v", err)
	}
	return found == name
}
