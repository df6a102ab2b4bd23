// Package badger provides an embedded db.Store backed by BadgerDB.
// It has no FT search, so similarity falls back to exact kNN.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/kailas-cloud/zoomgraph/internal/db"
)

var _ db.Store = (*Store)(nil)

// Key namespaces. Hash fields are stored one badger key per field.
const (
	prefixKV   byte = 'k'
	prefixHash byte = 'h'
	sep        byte = 0x00
)

// Config holds BadgerDB options.
type Config struct {
	Path     string
	InMemory bool
}

// Store implements db.Store on an embedded BadgerDB.
type Store struct {
	db *badgerdb.DB
}

// NewStore opens (or creates) a BadgerDB at cfg.Path.
func NewStore(cfg Config) (*Store, error) {
	opts := badgerdb.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	} else if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	bdb, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: bdb}, nil
}

// NewInMemoryStore opens a throwaway in-memory store.
func NewInMemoryStore() (*Store, error) {
	return NewStore(Config{InMemory: true})
}

// Ping reports whether the database is open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return &db.Error{Op: db.OpPing, Err: errors.New("badger: closed")}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady returns immediately: an opened embedded store is ready.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(kvKey(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return out, nil
}

// Set stores a value at the given key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(kvKey(key), value)
	})
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Del removes a key from both namespaces.
func (s *Store) Del(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Delete(kvKey(key)); err != nil {
			return err
		}
		return deletePrefix(txn, hashPrefix(key))
	})
	if err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// HSet sets hash fields.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return setFields(txn, key, fields)
	})
	if err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// HSetMulti stores multiple hashes in one transaction.
func (s *Store) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		for _, item := range items {
			if err := setFields(txn, item.Key, item.Fields); err != nil {
				return fmt.Errorf("key %s: %w", item.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := make(map[string]string)
	prefix := hashPrefix(key)
	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[string(item.Key()[len(prefix):])] = string(v)
		}
		return nil
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return out, nil
}

// HDel removes specific fields from a hash.
func (s *Store) HDel(_ context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		for _, f := range fields {
			if err := txn.Delete(fieldKey(key, f)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &db.Error{Op: db.OpHDel, Err: err}
	}
	return nil
}

// Scan returns logical keys matching a glob pattern, sorted.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}

	seen := make(map[string]struct{})
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key, ok := logicalKey(it.Item().Key())
			if !ok {
				continue
			}
			if matched, _ := path.Match(pattern, key); matched {
				seen[key] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func setFields(txn *badgerdb.Txn, key string, fields map[string]string) error {
	for f, v := range fields {
		if err := txn.Set(fieldKey(key, f), []byte(v)); err != nil {
			return err
		}
	}
	return nil
}

func deletePrefix(txn *badgerdb.Txn, prefix []byte) error {
	opts := badgerdb.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func kvKey(key string) []byte {
	b := make([]byte, 0, len(key)+2)
	b = append(b, prefixKV, sep)
	return append(b, key...)
}

func hashPrefix(key string) []byte {
	b := make([]byte, 0, len(key)+3)
	b = append(b, prefixHash, sep)
	b = append(b, key...)
	return append(b, sep)
}

func fieldKey(key, field string) []byte {
	return append(hashPrefix(key), field...)
}

// logicalKey strips the namespace from a raw badger key.
func logicalKey(raw []byte) (string, bool) {
	if len(raw) < 2 || raw[1] != sep {
		return "", false
	}
	switch raw[0] {
	case prefixKV:
		return string(raw[2:]), true
	case prefixHash:
		rest := raw[2:]
		i := bytes.IndexByte(rest, sep)
		if i < 0 {
			return "", false
		}
		return string(rest[:i]), true
	}
	return "", false
}
