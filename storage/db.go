package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Reader is the read half of a key-value store.
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

// Writer is the write half of a key-value store.
type Writer interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// KV is satisfied by both the database and an open transaction so state
// layers can run against either.
type KV interface {
	Reader
	Writer
}

// Txn is an exclusive write transaction. Writes become visible to other
// readers only after Commit; Discard drops them.
type Txn interface {
	KV
	Commit() error
	Discard()
}

// Database is a generic interface for a key-value store.
// This allows the vault to use any database backend (in-memory or persistent).
type Database interface {
	KV
	// Begin opens a write transaction. Only one transaction is open at a
	// time; concurrent callers block until the in-flight one finishes.
	Begin() (Txn, error)
	Close()
}

// LevelDB is a key-value store using LevelDB, either on disk or backed by
// memory for tests.
type LevelDB struct {
	db *leveldb.DB
}

// NewMemDB opens a LevelDB instance kept entirely in memory.
func NewMemDB() *LevelDB {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		// memory storage has no failure modes on open
		panic(fmt.Sprintf("storage: open memory db: %v", err))
	}
	return &LevelDB{db: db}
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Has reports whether the key is present.
func (ldb *LevelDB) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Delete removes the key. Deleting an absent key is not an error.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// Begin opens an exclusive write transaction.
func (ldb *LevelDB) Begin() (Txn, error) {
	tr, err := ldb.db.OpenTransaction()
	if err != nil {
		return nil, fmt.Errorf("storage: open transaction: %w", err)
	}
	return &levelTxn{tr: tr}, nil
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}

type levelTxn struct {
	tr *leveldb.Transaction
}

func (t *levelTxn) Get(key []byte) ([]byte, error) {
	value, err := t.tr.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (t *levelTxn) Has(key []byte) (bool, error) { return t.tr.Has(key, nil) }

func (t *levelTxn) Put(key []byte, value []byte) error { return t.tr.Put(key, value, nil) }

func (t *levelTxn) Delete(key []byte) error { return t.tr.Delete(key, nil) }

func (t *levelTxn) Commit() error { return t.tr.Commit() }

func (t *levelTxn) Discard() { t.tr.Discard() }
