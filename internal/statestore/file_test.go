package statestore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nirvati/ctclient/internal/statestore"
)

func TestFileBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, err := statestore.NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}

	ctx := context.Background()
	if err := b.Put(ctx, "trust-state", []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := b.Get(ctx, "trust-state")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Get = %q, want %q", got, "hello")
	}
}

func TestFileBackendGetMissingKey(t *testing.T) {
	b, err := statestore.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	_, err = b.Get(context.Background(), "never-written")
	if !errors.Is(err, statestore.ErrNotFound) {
		t.Errorf("Get on missing key = %v, want ErrNotFound", err)
	}
}

func TestFileBackendOverwrite(t *testing.T) {
	dir := t.TempDir()
	b, err := statestore.NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	ctx := context.Background()
	if err := b.Put(ctx, "k", []byte("first")); err != nil {
		t.Fatalf("Put 1: %v", err)
	}
	if err := b.Put(ctx, "k", []byte("second")); err != nil {
		t.Fatalf("Put 2: %v", err)
	}
	got, err := b.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Get after overwrite = %q, want %q", got, "second")
	}
}

func TestFileBackendSanitizesKeyToBaseName(t *testing.T) {
	dir := t.TempDir()
	b, err := statestore.NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	ctx := context.Background()
	if err := b.Put(ctx, "../escape", []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape")); err != nil {
		t.Errorf("expected file at %q to exist: %v", filepath.Join(dir, "escape"), err)
	}
	got, err := b.Get(ctx, "../escape")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "x" {
		t.Errorf("Get = %q, want %q", got, "x")
	}
}
