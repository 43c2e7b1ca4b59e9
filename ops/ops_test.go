package ops_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfold/shadowwrite"
	"github.com/rentfold/shadowwrite/chaos"
	"github.com/rentfold/shadowwrite/journal"
	"github.com/rentfold/shadowwrite/models"
	"github.com/rentfold/shadowwrite/ops"
	"github.com/rentfold/shadowwrite/store/memory"
)

// fakeJournal keeps rows in memory so router tests need no database.
type fakeJournal struct {
	rows []*journal.ShadowFailure
}

func (f *fakeJournal) ListUnresolved(ctx context.Context, limit int) ([]*journal.ShadowFailure, error) {
	var out []*journal.ShadowFailure
	for _, row := range f.rows {
		if row.ResolvedAt == nil {
			out = append(out, row)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeJournal) MarkResolved(ctx context.Context, id uint64) error {
	for _, row := range f.rows {
		if row.ID == id {
			now := time.Now().UTC()
			row.ResolvedAt = &now
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeJournal) Stats(ctx context.Context) (journal.Stats, error) {
	var stats journal.Stats
	for _, row := range f.rows {
		stats.Total++
		if row.Injected {
			stats.Injected++
		} else {
			stats.Real++
		}
		if row.ResolvedAt == nil {
			stats.Unresolved++
		}
	}
	return stats, nil
}

func testInjector(t *testing.T) *chaos.Injector {
	t.Helper()
	in, err := chaos.New(chaos.Config{
		Enabled:     true,
		FailRate:    0.5,
		Seed:        "ops-test",
		Scope:       chaos.ScopeShadowWriteOnly,
		Environment: "test",
	})
	require.NoError(t, err)
	return in
}

func testRouter(t *testing.T, j ops.JournalSource) (http.Handler, *chaos.Injector, *shadowwrite.Harness[models.Property]) {
	t.Helper()
	in := testInjector(t)
	h := shadowwrite.New[models.Property](memory.New[models.Property](), memory.New[models.Property](), in, nil)
	router := ops.NewRouter(ops.RouterConfig{
		Chaos:   in,
		Metrics: []ops.MetricsSource{h},
		Journal: j,
	})
	return router, in, h
}

func do(t *testing.T, router http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(into))
}

func TestHealthz(t *testing.T) {
	router, _, _ := testRouter(t, nil)

	rec := do(t, router, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestChaosEndpoints(t *testing.T) {
	router, in, _ := testRouter(t, nil)
	in.Check(chaos.ScopeShadowWriteOnly, "properties:create")

	t.Run("config hides the seed", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/chaos/config")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		decodeBody(t, rec, &body)
		assert.Equal(t, true, body["enabled"])
		assert.Equal(t, 0.5, body["fail_rate"])
		assert.Equal(t, "shadow_write_only", body["scope"])
		assert.Equal(t, true, body["seeded"])
		assert.NotContains(t, body, "seed")
	})

	t.Run("stats and reset", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/chaos/stats")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]uint64
		decodeBody(t, rec, &body)
		assert.Equal(t, uint64(1), body["total_checks"])

		require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/chaos/stats/reset").Code)

		rec = do(t, router, http.MethodGet, "/chaos/stats")
		decodeBody(t, rec, &body)
		assert.Zero(t, body["total_checks"])
	})
}

func TestShadowMetricsEndpoints(t *testing.T) {
	router, _, h := testRouter(t, nil)

	for i := 0; i < 10; i++ {
		_, err := h.Create(context.Background(), models.NewProperty(fmt.Sprintf("P%d", i), "1 Main St", "Dover"))
		require.NoError(t, err)
	}

	rec := do(t, router, http.MethodGet, "/shadow/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]struct {
		TotalWrites     uint64 `json:"total_writes"`
		ShadowSuccesses uint64 `json:"shadow_successes"`
		ShadowFailures  uint64 `json:"shadow_failures"`
	}
	decodeBody(t, rec, &body)
	require.Contains(t, body, "properties")
	assert.Equal(t, uint64(10), body["properties"].TotalWrites)
	assert.Equal(t, body["properties"].TotalWrites,
		body["properties"].ShadowSuccesses+body["properties"].ShadowFailures)

	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/shadow/metrics/reset").Code)
	assert.Zero(t, h.Metrics().TotalWrites)
}

func TestJournalEndpoints(t *testing.T) {
	j := &fakeJournal{rows: []*journal.ShadowFailure{
		{ID: 1, EntityType: "properties", EntityID: "p-1", Operation: "create", Injected: true, FaultID: "fault-000001-1", OccurredAt: time.Now().UTC()},
		{ID: 2, EntityType: "listings", EntityID: "l-1", Operation: "update", OccurredAt: time.Now().UTC()},
	}}
	router, _, _ := testRouter(t, j)

	t.Run("list unresolved", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/journal/failures?limit=10")
		require.Equal(t, http.StatusOK, rec.Code)

		var rows []journal.ShadowFailure
		decodeBody(t, rec, &rows)
		assert.Len(t, rows, 2)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/journal/failures?limit=nope")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("resolve", func(t *testing.T) {
		require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/journal/failures/1/resolve").Code)

		rec := do(t, router, http.MethodGet, "/journal/failures")
		var rows []journal.ShadowFailure
		decodeBody(t, rec, &rows)
		assert.Len(t, rows, 1)
	})

	t.Run("resolve unknown id", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/journal/failures/99/resolve")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("stats", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/journal/stats")
		require.Equal(t, http.StatusOK, rec.Code)

		var stats journal.Stats
		decodeBody(t, rec, &stats)
		assert.Equal(t, int64(2), stats.Total)
		assert.Equal(t, int64(1), stats.Injected)
		assert.Equal(t, int64(1), stats.Real)
		assert.Equal(t, int64(1), stats.Unresolved)
	})
}

func TestJournalEndpointsAbsentWithoutJournal(t *testing.T) {
	router, _, _ := testRouter(t, nil)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/journal/failures").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/journal/stats").Code)
}
