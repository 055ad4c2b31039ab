package database

import (
	"reflect"
	"testing"
	"testing/fstest"

	"example.com/ai-meal-planner/backend/migrations"
)

// TestMigrationNamesSorted проверяет порядок и фильтрацию файлов миграций.
func TestMigrationNamesSorted(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_indexes.sql": {Data: []byte("SELECT 1;")},
		"0001_init.sql":    {Data: []byte("SELECT 1;")},
		"README.md":        {Data: []byte("notes")},
		"archive/0000.sql": {Data: []byte("SELECT 1;")},
	}

	got, err := migrationNames(fsys)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := []string{"0001_init.sql", "0002_indexes.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

// TestEmbeddedMigrations проверяет, что схема встроена в бинарник.
func TestEmbeddedMigrations(t *testing.T) {
	got, err := migrationNames(migrations.FS)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) == 0 || got[0] != "0001_init.sql" {
		t.Fatalf("expected 0001_init.sql first, got %v", got)
	}
}
