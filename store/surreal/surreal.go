// Package surreal implements the storage contract over SurrealDB through
// the official Go SDK. It is the usual shadow store in a rehearsal: the
// migration target whose write path is being exercised.
//
// The connection is configured with the surrealcbor codec so time.Time
// values and typed record ids survive the trip; entity id fields that
// marshal to tag-8 record ids (see the models package) land as native
// SurrealDB record links.
package surreal

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	smodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/rentfold/shadowwrite/store"
)

// Config locates and authenticates one SurrealDB endpoint.
type Config struct {
	// URL is the RPC endpoint, e.g. "ws://localhost:8000/rpc".
	URL       string
	Namespace string
	Database  string
	// Username and Password are optional; empty means no SignIn call.
	Username string
	Password string
}

// Store serves a single entity type over one SDK connection. Several Stores
// may share the connection via FromDB.
type Store[T store.Entity] struct {
	db *surrealdb.DB
}

// Open dials the endpoint, signs in when credentials are present, and
// selects the namespace and database. The returned connection can back
// stores for every entity type.
func Open(ctx context.Context, cfg Config) (*surrealdb.DB, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse surrealdb url: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, fmt.Errorf("connect to surrealdb: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			return nil, fmt.Errorf("authenticate to surrealdb: %w", err)
		}
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}
	return db, nil
}

// New dials a dedicated connection for this entity type.
func New[T store.Entity](ctx context.Context, cfg Config) (*Store[T], error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store[T]{db: db}, nil
}

// FromDB wraps an existing SDK connection.
func FromDB[T store.Entity](db *surrealdb.DB) *Store[T] {
	return &Store[T]{db: db}
}

// Close terminates the underlying connection.
func (s *Store[T]) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

func (s *Store[T]) Create(ctx context.Context, entity *T) (*T, error) {
	table := store.TableNameOf[T]()
	if (*entity).EntityID() == "" {
		return nil, store.ErrMissingID
	}

	created, err := surrealdb.Create[T](ctx, s.db, table, entity)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", table, err)
	}
	return created, nil
}

// Update merges the changes into the record and returns its post-update
// state. Always a parameterized query; record ids and change values never
// reach the query text.
func (s *Store[T]) Update(ctx context.Context, id string, changes store.Changes) (*T, error) {
	table := store.TableNameOf[T]()

	results, err := surrealdb.Query[[]T](ctx, s.db,
		"UPDATE $record MERGE $changes RETURN AFTER",
		map[string]any{
			"record":  s.recordID(id),
			"changes": map[string]any(changes),
		})
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", table, id, err)
	}
	if len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("%s %s: %w", table, id, store.ErrNotFound)
	}
	entity := (*results)[0].Result[0]
	return &entity, nil
}

// Delete is idempotent; deleting an absent record is not an error.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if _, err := surrealdb.Delete[T](ctx, s.db, s.recordID(id)); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete %s %s: %w", store.TableNameOf[T](), id, err)
	}
	return nil
}

func (s *Store[T]) FindByID(ctx context.Context, id string) (*T, error) {
	entity, err := surrealdb.Select[T](ctx, s.db, s.recordID(id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s %s: %w", store.TableNameOf[T](), id, err)
	}
	return entity, nil
}

func (s *Store[T]) FindAll(ctx context.Context, opts store.ListOptions) ([]*T, error) {
	table := store.TableNameOf[T]()

	query := "SELECT * FROM type::table($tb) ORDER BY id"
	params := map[string]any{"tb": table}
	if opts.Limit > 0 {
		query += " LIMIT $limit"
		params["limit"] = opts.Limit
	}
	if opts.Offset > 0 {
		query += " START $start"
		params["start"] = opts.Offset
	}

	results, err := surrealdb.Query[[]T](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	if len(*results) == 0 {
		return nil, nil
	}

	rows := (*results)[0].Result
	entities := make([]*T, 0, len(rows))
	for i := range rows {
		entities = append(entities, &rows[i])
	}
	return entities, nil
}

func (s *Store[T]) recordID(id string) smodels.RecordID {
	return smodels.RecordID{Table: store.TableNameOf[T](), ID: id}
}

// isNotFound sniffs the SDK's absent-record errors, which carry no sentinel.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Expected a single or multiple results but got 0") ||
		strings.Contains(msg, "cannot unmarshal array into Go value")
}
