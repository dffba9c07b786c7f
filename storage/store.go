package storage

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("Store has been closed")

// Store holds a single JSON document addressed by gjson/sjson paths.
type Store interface {
	Set(ctx context.Context, key string, value interface{}) error
	SetRaw(ctx context.Context, key string, raw []byte) error
	Get(ctx context.Context, key string) ([]byte, error)

	Restore(values []byte) error
	Backup() ([]byte, error)

	Close() error
}
