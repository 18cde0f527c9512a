package persist

import (
	"path/filepath"
	"testing"
)

type fixtureRecord struct {
	Height uint64
	Hashes []string
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "wallet.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	rec := fixtureRecord{Height: 42, Hashes: []string{"a", "b"}}
	if err := store.Save("syncstatus", "primary", rec); err != nil {
		t.Fatal(err)
	}

	var loaded fixtureRecord
	if err := store.Load("syncstatus", "primary", &loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.Height != 42 || len(loaded.Hashes) != 2 {
		t.Fatalf("round-tripped record mismatch: %+v", loaded)
	}
}

func TestStoreLoadMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "wallet.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	var out fixtureRecord
	err = store.Load("syncstatus", "missing", &out)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "wallet.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_ = store.Save("syncstatus", "primary", fixtureRecord{Height: 1})
	if err := store.Delete("syncstatus", "primary"); err != nil {
		t.Fatal(err)
	}
	var out fixtureRecord
	if err := store.Load("syncstatus", "primary", &out); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
