// Package memory provides the in-memory Store used by package tests and as
// the default rehearsal backend when no database is configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rentfold/shadowwrite/store"
)

// Store keeps JSON-encoded rows in a map guarded by an RWMutex. Encoding on
// the way in and decoding on the way out isolates callers from the stored
// state: mutating a returned entity never changes what the store holds.
//
// FindAll returns rows in id order; ListOptions.OrderBy is ignored here.
// Partial updates merge by JSON field name and silently skip the "id" key,
// identifiers being immutable.
type Store[T store.Entity] struct {
	mu   sync.RWMutex
	rows map[string][]byte
}

func New[T store.Entity]() *Store[T] {
	return &Store[T]{rows: make(map[string][]byte)}
}

func (s *Store[T]) Create(ctx context.Context, entity *T) (*T, error) {
	id := (*entity).EntityID()
	if id == "" {
		return nil, store.ErrMissingID
	}

	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", store.TableNameOf[T](), id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[id]; exists {
		return nil, fmt.Errorf("%s %s: %w", store.TableNameOf[T](), id, store.ErrDuplicateID)
	}
	s.rows[id] = raw

	return decode[T](raw)
}

func (s *Store[T]) Update(ctx context.Context, id string, changes store.Changes) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", store.TableNameOf[T](), id, store.ErrNotFound)
	}

	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", store.TableNameOf[T](), id, err)
	}
	for key, value := range changes {
		if key == "id" {
			continue
		}
		row[key] = value
	}

	merged, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", store.TableNameOf[T](), id, err)
	}
	entity, err := decode[T](merged)
	if err != nil {
		return nil, err
	}
	s.rows[id] = merged

	return entity, nil
}

// Delete is idempotent; deleting an absent id is not an error.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *Store[T]) FindByID(ctx context.Context, id string) (*T, error) {
	s.mu.RLock()
	raw, ok := s.rows[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return decode[T](raw)
}

func (s *Store[T]) FindAll(ctx context.Context, opts store.ListOptions) ([]*T, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	raws := make(map[string][]byte, len(ids))
	for _, id := range ids {
		raws[id] = s.rows[id]
	}
	s.mu.RUnlock()

	sort.Strings(ids)

	if opts.Offset > 0 {
		if opts.Offset >= len(ids) {
			return nil, nil
		}
		ids = ids[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(ids) {
		ids = ids[:opts.Limit]
	}

	entities := make([]*T, 0, len(ids))
	for _, id := range ids {
		entity, err := decode[T](raws[id])
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// Len reports how many rows the store holds.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func decode[T store.Entity](raw []byte) (*T, error) {
	entity := new(T)
	if err := json.Unmarshal(raw, entity); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return entity, nil
}
