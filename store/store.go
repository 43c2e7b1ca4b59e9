// Package store defines the storage contract the shadow-write harness
// consumes: five operations, generic over any entity that carries an
// identifier and a table name. Implementations live in the subpackages
// (memory, postgres, surreal, redis); hosts may plug in their own.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports an update against an id the store does not hold.
	// FindByID does not use it: absence there is (nil, nil). Delete is
	// idempotent and treats absence as success.
	ErrNotFound = errors.New("entity not found")

	// ErrMissingID reports a create whose entity has an empty identifier.
	ErrMissingID = errors.New("entity id is empty")

	// ErrDuplicateID reports a create against an id the store already holds.
	ErrDuplicateID = errors.New("entity id already exists")
)

// Entity is satisfied by any storable record.
type Entity interface {
	// EntityID is the string form of the identifier, empty when unset.
	EntityID() string
	// TableName names the table the entity lives in. It doubles as the
	// entity-type label on operation names, failure records, and metrics.
	TableName() string
}

// Changes is a partial update, column name to new value.
type Changes map[string]any

// ListOptions page and order FindAll results. Zero values mean no limit, no
// offset, store-default order.
type ListOptions struct {
	Limit   int
	Offset  int
	OrderBy string
}

// Store is the contract every backend implements.
type Store[T Entity] interface {
	Create(ctx context.Context, entity *T) (*T, error)
	Update(ctx context.Context, id string, changes Changes) (*T, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*T, error)
	FindAll(ctx context.Context, opts ListOptions) ([]*T, error)
}

// TableNameOf returns the table label for an entity type without an
// instance in hand.
func TableNameOf[T Entity]() string {
	var zero T
	return zero.TableName()
}
