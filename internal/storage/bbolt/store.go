// Package bbolt provides a BoltDB-backed implementation of storage.Store.
package bbolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinyakov/zkkeeper/internal/storage"
	"go.etcd.io/bbolt"
)

const vaultBucket = "vault"

// Store is a single-bucket BoltDB key/value store.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the BoltDB file at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(vaultBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(vaultBucket))
		if b == nil {
			return fmt.Errorf("vault bucket is missing")
		}
		return fn(&boltTx{bucket: b})
	})
}

// Update runs fn in a read-write transaction.
func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(vaultBucket))
		if b == nil {
			return fmt.Errorf("vault bucket is missing")
		}
		return fn(&boltTx{bucket: b, writable: true})
	})
}

type boltTx struct {
	bucket   *bbolt.Bucket
	writable bool
}

func (t *boltTx) Get(key string) ([]byte, error) {
	v := t.bucket.Get([]byte(key))
	if v == nil {
		return nil, storage.ErrNotFound
	}
	// bbolt values are only valid for the life of the transaction.
	return bytes.Clone(v), nil
}

func (t *boltTx) Put(key string, value []byte) error {
	if !t.writable {
		return errors.New("put in read-only transaction")
	}
	if key == "" {
		return errors.New("key is required")
	}
	return t.bucket.Put([]byte(key), value)
}

func (t *boltTx) Delete(key string) error {
	if !t.writable {
		return errors.New("delete in read-only transaction")
	}
	return t.bucket.Delete([]byte(key))
}

func (t *boltTx) ForEach(prefix string, fn func(key string, value []byte) error) error {
	c := t.bucket.Cursor()
	p := []byte(prefix)
	for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
		if err := fn(string(k), bytes.Clone(v)); err != nil {
			return err
		}
	}
	return nil
}
