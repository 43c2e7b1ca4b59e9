// Package redis implements the storage contract as JSON documents in
// Redis: one value per "<table>:<id>" key plus a "<table>:ids" set for
// listing. Useful as a fast shadow target when rehearsing against a cache
// tier rather than a second database.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/rentfold/shadowwrite/store"
)

// Store serves a single entity type over one client. Several Stores may
// share the client via New.
type Store[T store.Entity] struct {
	client *redis.Client
}

// New wraps an existing client.
func New[T store.Entity](client *redis.Client) *Store[T] {
	return &Store[T]{client: client}
}

// Dial connects to addr with optional password and returns a client for
// sharing across stores.
func Dial(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *Store[T]) key(id string) string {
	return store.TableNameOf[T]() + ":" + id
}

func (s *Store[T]) idsKey() string {
	return store.TableNameOf[T]() + ":ids"
}

func (s *Store[T]) Create(ctx context.Context, entity *T) (*T, error) {
	table := store.TableNameOf[T]()
	id := (*entity).EntityID()
	if id == "" {
		return nil, store.ErrMissingID
	}

	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", table, id, err)
	}

	// SETNX so a duplicate create is reported instead of overwriting.
	ok, err := s.client.SetNX(ctx, s.key(id), raw, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("create %s %s: %w", table, id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", table, id, store.ErrDuplicateID)
	}
	if err := s.client.SAdd(ctx, s.idsKey(), id).Err(); err != nil {
		return nil, fmt.Errorf("index %s %s: %w", table, id, err)
	}
	return decode[T](raw)
}

func (s *Store[T]) Update(ctx context.Context, id string, changes store.Changes) (*T, error) {
	table := store.TableNameOf[T]()

	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s %s: %w", table, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", table, id, err)
	}

	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", table, id, err)
	}
	for key, value := range changes {
		if key == "id" {
			continue
		}
		row[key] = value
	}
	merged, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", table, id, err)
	}
	entity, err := decode[T](merged)
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, s.key(id), merged, 0).Err(); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", table, id, err)
	}
	return entity, nil
}

// Delete is idempotent; deleting an absent id is not an error.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete %s %s: %w", store.TableNameOf[T](), id, err)
	}
	if err := s.client.SRem(ctx, s.idsKey(), id).Err(); err != nil {
		return fmt.Errorf("unindex %s %s: %w", store.TableNameOf[T](), id, err)
	}
	return nil
}

func (s *Store[T]) FindByID(ctx context.Context, id string) (*T, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s %s: %w", store.TableNameOf[T](), id, err)
	}
	return decode[T](raw)
}

func (s *Store[T]) FindAll(ctx context.Context, opts store.ListOptions) ([]*T, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", store.TableNameOf[T](), err)
	}
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
		entity, err := s.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		// A row deleted between SMembers and Get is skipped, not an error.
		if entity != nil {
			entities = append(entities, entity)
		}
	}
	return entities, nil
}

func decode[T store.Entity](raw []byte) (*T, error) {
	entity := new(T)
	if err := json.Unmarshal(raw, entity); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return entity, nil
}
