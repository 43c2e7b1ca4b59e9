// Package postgres implements the storage contract over PostgreSQL using
// GORM. It is the usual primary store in a rehearsal: the relational system
// of record whose data is being migrated elsewhere.
package postgres

import (
	"context"
	"errors"
	"fmt"

	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rentfold/shadowwrite/store"
)

// Store holds one GORM connection and serves a single entity type. Several
// Stores may share the connection via FromDB.
type Store[T store.Entity] struct {
	db *gorm.DB
}

// New opens a PostgreSQL connection for the given DSN. GORM's own logger is
// silenced; callers observe failures through returned errors.
func New[T store.Entity](dsn string) (*Store[T], error) {
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &Store[T]{db: db}, nil
}

// FromDB wraps an existing connection, so one *gorm.DB can back stores for
// every entity type plus the failure journal.
func FromDB[T store.Entity](db *gorm.DB) *Store[T] {
	return &Store[T]{db: db}
}

// Open dials PostgreSQL and returns the raw connection for sharing.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}

// Migrate creates or extends the entity's table via AutoMigrate. Safe to run
// repeatedly; it only adds schema elements.
func (s *Store[T]) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(new(T))
}

// Close releases the underlying connection pool.
func (s *Store[T]) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store[T]) Create(ctx context.Context, entity *T) (*T, error) {
	if (*entity).EntityID() == "" {
		return nil, store.ErrMissingID
	}
	if err := s.db.WithContext(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("create %s: %w", store.TableNameOf[T](), err)
	}
	return entity, nil
}

func (s *Store[T]) Update(ctx context.Context, id string, changes store.Changes) (*T, error) {
	table := store.TableNameOf[T]()

	res := s.db.WithContext(ctx).
		Model(new(T)).
		Where("id = ?", id).
		Updates(map[string]any(changes))
	if res.Error != nil {
		return nil, fmt.Errorf("update %s %s: %w", table, id, res.Error)
	}
	if res.RowsAffected == 0 {
		// Distinguish an absent row from a no-op update on a present one.
		existing, err := s.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("%s %s: %w", table, id, store.ErrNotFound)
		}
		return existing, nil
	}
	return s.mustFind(ctx, id)
}

// Delete is idempotent; deleting an absent id is not an error.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(new(T), "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete %s %s: %w", store.TableNameOf[T](), id, err)
	}
	return nil
}

func (s *Store[T]) FindByID(ctx context.Context, id string) (*T, error) {
	entity := new(T)
	err := s.db.WithContext(ctx).First(entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s %s: %w", store.TableNameOf[T](), id, err)
	}
	return entity, nil
}

func (s *Store[T]) FindAll(ctx context.Context, opts store.ListOptions) ([]*T, error) {
	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = "id"
	}

	q := s.db.WithContext(ctx).Order(orderBy)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var entities []*T
	if err := q.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", store.TableNameOf[T](), err)
	}
	return entities, nil
}

// mustFind re-reads a row known to exist, after a successful update.
func (s *Store[T]) mustFind(ctx context.Context, id string) (*T, error) {
	entity, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("%s %s: %w", store.TableNameOf[T](), id, store.ErrNotFound)
	}
	return entity, nil
}
