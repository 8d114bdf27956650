package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestMemDBGetPutDelete(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil || string(value) != "v" {
		t.Fatalf("unexpected get result %q, %v", value, err)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err := db.Has([]byte("k"))
	if err != nil || ok {
		t.Fatalf("expected key to be gone: %v %v", ok, err)
	}
}

func TestTxnCommitPublishesWrites(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)

	txn, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := txn.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("txn put: %v", err)
	}
	value, err := txn.Get([]byte("a"))
	if err != nil || string(value) != "1" {
		t.Fatalf("transaction should read its own writes: %q %v", value, err)
	}
	if _, err := db.Get([]byte("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("uncommitted write leaked: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	value, err = db.Get([]byte("a"))
	if err != nil || string(value) != "1" {
		t.Fatalf("committed write missing: %q %v", value, err)
	}
}

func TestTxnDiscardDropsWrites(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)

	txn, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := txn.Put([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("txn put: %v", err)
	}
	txn.Discard()
	if _, err := db.Get([]byte("b")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("discarded write persisted: %v", err)
	}
}

func TestLevelDBOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := NewLevelDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	db.Close()

	reopened, err := NewLevelDB(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(reopened.Close)
	value, err := reopened.Get([]byte("k"))
	if err != nil || string(value) != "v" {
		t.Fatalf("value not persisted: %q %v", value, err)
	}
}
