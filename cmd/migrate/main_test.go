package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRunCreateThenValidate(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	if err := run(ctx, dir, "create", []string{"add reminder state"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*_add_reminder_state.sql"))
	if len(matches) != 1 {
		t.Fatalf("expected one migration file, got %v", matches)
	}
	if err := run(ctx, dir, "validate", nil); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestRunValidateRejectsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_broken.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run(context.Background(), dir, "validate", nil); err == nil {
		t.Fatal("expected missing Down section to fail validation")
	}
}

func TestRunCreateRequiresName(t *testing.T) {
	if err := run(context.Background(), t.TempDir(), "create", nil); err == nil {
		t.Fatal("expected error without NAME")
	}
}
