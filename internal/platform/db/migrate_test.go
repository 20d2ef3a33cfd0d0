package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMigrations_SortsAndSkips(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"002_interventions.sql": "CREATE TABLE b (id INT);",
		"001_alerts.sql":        "CREATE TABLE a (id INT);",
		"notes.txt":             "not a migration",
		"README.sql":            "no numeric prefix",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("expected versions [1 2], got [%d %d]", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].Name != "001_alerts.sql" {
		t.Errorf("unexpected first migration: %s", migrations[0].Name)
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	m := NewMigrator(nil, "/nonexistent/path")
	if _, err := m.LoadMigrations(); err == nil {
		t.Error("expected error for missing directory")
	}
}
