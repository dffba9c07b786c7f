package storage

import (
	"context"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type InmemoryStore struct {
	mu     sync.RWMutex
	values []byte

	// stop will be closed when Close() is called
	stop     chan struct{}
	stopOnce sync.Once
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values: []byte("{}"),
		stop:   make(chan struct{}),
	}
}

func (i *InmemoryStore) Close() error {
	i.stopOnce.Do(func() {
		close(i.stop)
	})

	return nil
}

func (i *InmemoryStore) Set(ctx context.Context, key string, value interface{}) (err error) {
	if !i.isRunning() {
		return ErrClosed
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	values, err := sjson.SetBytes(i.values, key, value)
	if err != nil {
		return err
	}

	i.values = values
	return nil
}

// SetRaw stores raw, which must already be valid JSON, under key.
func (i *InmemoryStore) SetRaw(ctx context.Context, key string, raw []byte) error {
	if !i.isRunning() {
		return ErrClosed
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	values, err := sjson.SetRawBytes(i.values, key, raw)
	if err != nil {
		return err
	}

	i.values = values
	return nil
}

// Get returns the raw JSON stored under key, or nil if nothing is.
func (i *InmemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	result := gjson.GetBytes(i.values, key)
	if !result.Exists() {
		return nil, nil
	}

	return []byte(result.Raw), nil
}

func (i *InmemoryStore) Restore(values []byte) error {
	if !gjson.ValidBytes(values) {
		return &InvalidDocumentError{Document: values}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.values = append([]byte(nil), values...)
	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.values) == 0 {
		return []byte("{}"), nil
	}

	return append([]byte(nil), i.values...), nil
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

// InvalidDocumentError is returned by Restore when handed something that
// is not JSON.
type InvalidDocumentError struct {
	Document []byte
}

func (e *InvalidDocumentError) Error() string {
	const max = 64

	doc := e.Document
	if len(doc) > max {
		doc = doc[:max]
	}

	return "Cannot restore from invalid JSON: " + string(doc)
}

var _ Store = (*InmemoryStore)(nil)
