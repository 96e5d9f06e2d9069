// ABOUTME: Durable offline queue records under owner/<id>/queue/<entryID>.
// ABOUTME: Entry ids sort by creation time, so key order is queue order.
package local

import (
	"strings"

	"github.com/harperreed/cradle/internal/errs"
)

// RawEntry is one stored queue record.
type RawEntry struct {
	ID   string
	Data []byte
}

func queueKey(owner int64, id string) string {
	return scope(owner, QueuePrefix+id)
}

// PutEntry writes or overwrites a queue record.
func (s *Store) PutEntry(owner int64, id string, data []byte) error {
	if id == "" {
		return errs.Validation("queue entry id is required")
	}
	return errs.Storage("put queue entry", s.set(queueKey(owner, id), data))
}

// Entries returns the owner's queue records oldest first.
func (s *Store) Entries(owner int64) ([]RawEntry, error) {
	prefix := scope(owner, QueuePrefix)
	pairs, err := s.listByPrefix(prefix)
	if err != nil {
		return nil, errs.Storage("list queue entries", err)
	}
	entries := make([]RawEntry, 0, len(pairs))
	for _, p := range pairs {
		entries = append(entries, RawEntry{ID: strings.TrimPrefix(p.Key, prefix), Data: p.Value})
	}
	return entries, nil
}

// DeleteEntry removes a queue record. Missing records are not an error.
func (s *Store) DeleteEntry(owner int64, id string) error {
	return errs.Storage("delete queue entry", s.delete(queueKey(owner, id)))
}

// GetEntry returns one queue record, or ok=false when it is gone.
func (s *Store) GetEntry(owner int64, id string) ([]byte, bool, error) {
	data, ok, err := s.get(queueKey(owner, id))
	if err != nil {
		return nil, false, errs.Storage("get queue entry", err)
	}
	return data, ok, nil
}
