package mocker

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datamock/internal/ir"
)

// InstanceStore holds the snapshots produced during one build, keyed by
// row_<n>.<type> or row_parent_<n>.<type>, in insertion order.
//
// Snapshots are cloned on the way in and on the way out, so a stored
// snapshot is never mutated after Put.
type InstanceStore struct {
	keys  []string
	items map[string]ir.Object
}

// NewInstanceStore creates an empty store.
func NewInstanceStore() *InstanceStore {
	return &InstanceStore{items: make(map[string]ir.Object)}
}

// Put stores a snapshot. Keys are never overwritten.
func (s *InstanceStore) Put(key string, snapshot ir.Object) error {
	if _, exists := s.items[key]; exists {
		return errors.Wrapf(ErrDuplicateKey, "%s", key)
	}
	s.keys = append(s.keys, key)
	s.items[key] = snapshot.Clone()
	return nil
}

// Get returns a copy of the snapshot stored under key.
func (s *InstanceStore) Get(key string) (ir.Object, bool) {
	snap, ok := s.items[key]
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

// Find returns the first key starting with prefix and a copy of its snapshot.
// Keys where the prefix ends on a segment boundary win over plain string
// prefixes, so "row_1" selects row_1.a before row_10.b. Remaining ties go
// to the earliest inserted key.
func (s *InstanceStore) Find(prefix string) (string, ir.Object, bool) {
	if prefix == "" {
		return "", nil, false
	}
	loose := ""
	for _, key := range s.keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if len(key) == len(prefix) || key[len(prefix)] == '.' {
			return key, s.items[key].Clone(), true
		}
		if loose == "" {
			loose = key
		}
	}
	if loose == "" {
		return "", nil, false
	}
	return loose, s.items[loose].Clone(), true
}

// Keys returns every key in insertion order.
func (s *InstanceStore) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Len returns the number of stored snapshots.
func (s *InstanceStore) Len() int {
	return len(s.keys)
}

// ByType returns the snapshots whose key ends in ".<token>", in insertion order.
func (s *InstanceStore) ByType(token string) []ir.Object {
	var rows []ir.Object
	for _, key := range s.keys {
		if typeOfKey(key) == token {
			rows = append(rows, s.items[key].Clone())
		}
	}
	return rows
}

func typeOfKey(key string) string {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		return key[i+1:]
	}
	return key
}
