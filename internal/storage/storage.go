// Package storage defines the key/value contract the vault persists through.
// Keys are plain strings such as "identity:<commitment>" and "connected".
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key is absent.
var ErrNotFound = errors.New("not found")

// Tx is a read or read-write view of the store. Values returned by Get are
// owned by the caller.
type Tx interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	// ForEach visits every key starting with prefix in key order.
	ForEach(prefix string, fn func(key string, value []byte) error) error
}

// Store runs functions inside transactions. Update commits when fn returns
// nil and rolls back otherwise.
type Store interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
