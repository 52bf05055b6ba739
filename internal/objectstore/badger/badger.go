// Package badger implements objectstore.Store on an embedded BadgerDB, for
// single-node deployments that keep file contents on local disk.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"stowage/internal/objectstore"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "obj:"

// Store implements objectstore.Store. Call Close when done.
type Store struct {
	db *badger.DB
}

// Config contains configuration for the badger object store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM, for tests.
	InMemory bool
}

// Open opens or creates the database.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func objectKey(key string) []byte {
	return []byte(keyPrefix + key)
}

func (s *Store) HeadObject(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return objectstore.ObjectInfo{}, err
	}

	info := objectstore.ObjectInfo{Key: key}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(objectKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		info.Exists = true
		info.Size = item.ValueSize()
		return nil
	})
	if err != nil {
		return objectstore.ObjectInfo{}, fmt.Errorf("failed to head object: %w", err)
	}
	return info, nil
}

func (s *Store) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(objectKey(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("object %s: %w", key, objectstore.ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) PutObject(ctx context.Context, key string, body io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read object body: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("object %s: declared size %d, got %d bytes", key, size, len(data))
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(objectKey(key), data)
	})
}

func (s *Store) DeleteObject(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(objectKey(key))
	})
}
