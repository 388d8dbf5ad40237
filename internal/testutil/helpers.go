// Package testutil holds fakes and fixtures shared by package tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hugo-lorenzo-mato/rolechain/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

// TempFile creates a file with content under dir and returns its path.
func TempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

// NewTestStore opens a SQLite store in a temporary directory, closed when the
// test ends.
func NewTestStore(t *testing.T) core.Store {
	t.Helper()
	store, err := state.NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedStore saves roles and templates into store.
func SeedStore(t *testing.T, store core.Store, roles []*core.Role, templates []*core.Template) {
	t.Helper()
	ctx := context.Background()
	for _, r := range roles {
		if err := store.SaveRole(ctx, r); err != nil {
			t.Fatalf("failed to save role %s: %v", r.ID, err)
		}
	}
	for _, tmpl := range templates {
		if err := store.SaveTemplate(ctx, tmpl); err != nil {
			t.Fatalf("failed to save template %s: %v", tmpl.ID, err)
		}
	}
}
