package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Journal records what a server received. Entries live in the store as
//
//	{"requests": [{"id": 0, "body": {...}}, ...]}
//
// in the order they were appended.
type Journal struct {
	store Store

	// mu serialises appends so the requests array is created once
	mu sync.Mutex
}

func NewJournal(store Store) *Journal {
	return &Journal{store: store}
}

// Append adds an entry for id holding the JSON rendering of body.
func (j *Journal) Append(ctx context.Context, id uint32, body json.Marshaler) error {
	raw, err := body.MarshalJSON()
	if err != nil {
		return err
	}

	entry, err := sjson.SetBytes([]byte("{}"), "id", id)
	if err != nil {
		return err
	}

	entry, err = sjson.SetRawBytes(entry, "body", raw)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	existing, err := j.store.Get(ctx, "requests")
	if err != nil {
		return err
	}

	if existing == nil {
		if err := j.store.SetRaw(ctx, "requests", []byte("[]")); err != nil {
			return err
		}
	}

	return j.store.SetRaw(ctx, "requests.-1", entry)
}

// Entry returns the body of the first entry recorded for id. The result
// does not exist if there is none.
func (j *Journal) Entry(ctx context.Context, id uint32) (gjson.Result, error) {
	raw, err := j.store.Get(ctx, fmt.Sprintf("requests.#(id==%d).body", id))
	if err != nil || raw == nil {
		return gjson.Result{}, err
	}

	return gjson.ParseBytes(raw), nil
}

func (j *Journal) Len(ctx context.Context) (int, error) {
	raw, err := j.store.Get(ctx, "requests.#")
	if err != nil || raw == nil {
		return 0, err
	}

	return int(gjson.ParseBytes(raw).Int()), nil
}

// Dump returns the whole journal document.
func (j *Journal) Dump() ([]byte, error) {
	return j.store.Backup()
}

func (j *Journal) Close() error {
	return j.store.Close()
}
