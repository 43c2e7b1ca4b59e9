package redis_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfold/shadowwrite/models"
	"github.com/rentfold/shadowwrite/store"
	redisstore "github.com/rentfold/shadowwrite/store/redis"
)

// The test needs a reachable Redis; skipped unless REDIS_ADDR is set, e.g.
// REDIS_ADDR="localhost:6379".
func testStore(t *testing.T) *redisstore.Store[models.Property] {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redisstore.Dial(addr, os.Getenv("REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = client.Close() })
	return redisstore.New[models.Property](client)
}

func TestPropertyRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	prop := models.NewProperty("Harborview", "12 Harbor Way", "Portsmouth")
	created, err := s.Create(ctx, prop)
	require.NoError(t, err)
	require.NotNil(t, created)
	t.Cleanup(func() { _ = s.Delete(ctx, prop.EntityID()) })

	t.Run("duplicate create rejected", func(t *testing.T) {
		_, err := s.Create(ctx, prop)
		assert.ErrorIs(t, err, store.ErrDuplicateID)
	})

	t.Run("find by id", func(t *testing.T) {
		got, err := s.FindByID(ctx, prop.EntityID())
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, prop.Name, got.Name)
	})

	t.Run("update merges changes", func(t *testing.T) {
		updated, err := s.Update(ctx, prop.EntityID(), store.Changes{"city": "Dover"})
		require.NoError(t, err)
		assert.Equal(t, "Dover", updated.City)
		assert.Equal(t, prop.Name, updated.Name)
	})

	t.Run("absent id", func(t *testing.T) {
		got, err := s.FindByID(ctx, models.NewPropertyID().String())
		require.NoError(t, err)
		assert.Nil(t, got)

		_, err = s.Update(ctx, models.NewPropertyID().String(), store.Changes{"city": "Nowhere"})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("find all includes the row", func(t *testing.T) {
		all, err := s.FindAll(ctx, store.ListOptions{})
		require.NoError(t, err)
		found := false
		for _, p := range all {
			if p.EntityID() == prop.EntityID() {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, prop.EntityID()))
		require.NoError(t, s.Delete(ctx, prop.EntityID()))

		got, err := s.FindByID(ctx, prop.EntityID())
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
