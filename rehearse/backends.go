package rehearse

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/surrealdb/surrealdb.go"
	"gorm.io/gorm"

	"github.com/rentfold/shadowwrite/store"
	"github.com/rentfold/shadowwrite/store/memory"
	"github.com/rentfold/shadowwrite/store/postgres"
	redisstore "github.com/rentfold/shadowwrite/store/redis"
	"github.com/rentfold/shadowwrite/store/surreal"
)

// backends opens at most one connection per backend kind and shares it
// across the entity-type stores.
type backends struct {
	cfg *Config

	pg    *gorm.DB
	sdb   *surrealdb.DB
	redis *goredis.Client
}

func newBackends(cfg *Config) *backends {
	return &backends{cfg: cfg}
}

func (b *backends) postgresDB() (*gorm.DB, error) {
	if b.pg != nil {
		return b.pg, nil
	}
	if b.cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres store requested but POSTGRES_DSN is empty")
	}
	db, err := postgres.Open(b.cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	b.pg = db
	return db, nil
}

func (b *backends) surrealDB(ctx context.Context) (*surrealdb.DB, error) {
	if b.sdb != nil {
		return b.sdb, nil
	}
	db, err := surreal.Open(ctx, surreal.Config{
		URL:       b.cfg.SurrealURL,
		Namespace: b.cfg.SurrealNS,
		Database:  b.cfg.SurrealDB,
		Username:  b.cfg.SurrealUser,
		Password:  b.cfg.SurrealPass,
	})
	if err != nil {
		return nil, err
	}
	b.sdb = db
	return db, nil
}

func (b *backends) redisClient() *goredis.Client {
	if b.redis == nil {
		b.redis = redisstore.Dial(b.cfg.RedisAddr, b.cfg.RedisPassword, 0)
	}
	return b.redis
}

func (b *backends) Close(ctx context.Context) {
	if b.pg != nil {
		if sqlDB, err := b.pg.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if b.sdb != nil {
		_ = b.sdb.Close(ctx)
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

// storeFor builds one entity-type store on the shared connection for kind.
func storeFor[T store.Entity](ctx context.Context, b *backends, kind StoreKind) (store.Store[T], error) {
	switch kind {
	case KindMemory:
		return memory.New[T](), nil
	case KindPostgres:
		db, err := b.postgresDB()
		if err != nil {
			return nil, err
		}
		return postgres.FromDB[T](db), nil
	case KindSurreal:
		db, err := b.surrealDB(ctx)
		if err != nil {
			return nil, err
		}
		return surreal.FromDB[T](db), nil
	case KindRedis:
		return redisstore.New[T](b.redisClient()), nil
	}
	return nil, fmt.Errorf("unknown store kind %q", kind)
}
