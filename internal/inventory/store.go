package inventory

import (
	"sort"
	"sync"

	"github.com/hostgrid/rackq/internal/pkg/rackql"
)

// Store is the in-memory inventory snapshot. It implements
// rackql.Inventory; all reads take the read lock, so a Store may serve
// concurrent queries while a replacement snapshot is loaded elsewhere.
type Store struct {
	mu       sync.RWMutex
	entities map[rackql.EntityKey]*Entity
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entities: make(map[rackql.EntityKey]*Entity)}
}

// Put inserts or replaces an entity.
func (s *Store) Put(e *Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.Key()] = e
}

// Get retrieves a copy of the entity for key.
func (s *Store) Get(key rackql.EntityKey) (*Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[key]
	if !ok {
		return nil, false
	}
	val := *e
	return &val, true
}

// Len returns the number of entities in the snapshot.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Keys lists every entity key, sorted by (type, name).
func (s *Store) Keys() []rackql.EntityKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]rackql.EntityKey, 0, len(s.entities))
	for k := range s.entities {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// OfType lists the entities of one entity type, sorted by name.
func (s *Store) OfType(entityType string) []rackql.EntityKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []rackql.EntityKey
	for k := range s.entities {
		if k.Type == entityType {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)
	return keys
}

// Children lists the direct children recorded on the entity. Unknown keys
// have no children.
func (s *Store) Children(key rackql.EntityKey) []rackql.EntityKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[key]
	if !ok {
		return nil
	}
	out := make([]rackql.EntityKey, len(e.Children))
	copy(out, e.Children)
	return out
}

// Attrs returns the values of every attribute on key matching attrKey and,
// when subkey is non-empty, subkey. A missing attribute is an empty result.
func (s *Store) Attrs(key rackql.EntityKey, attrKey, subkey string) []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[key]
	if !ok {
		return nil
	}
	var values []any
	for _, a := range e.Attrs {
		if a.Key != attrKey {
			continue
		}
		if subkey != "" && a.Subkey != subkey {
			continue
		}
		values = append(values, a.Value)
	}
	return values
}

// Field looks up a named field on the entity record itself. Only the
// record's own fields resolve here; hierarchy and typed lookups are the
// evaluator's business.
func (s *Store) Field(key rackql.EntityKey, field string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.entities[key]; !ok {
		return "", false
	}
	switch field {
	case "name":
		return key.Name, true
	case "type":
		return key.Type, true
	default:
		return "", false
	}
}

func sortKeys(keys []rackql.EntityKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].Name < keys[j].Name
	})
}
