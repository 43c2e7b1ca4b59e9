// Package ops exposes the rehearsal's control surface over HTTP: injector
// configuration and stats, per-entity harness metrics, and journal queries.
// It binds through small interfaces so any harness instantiation plugs in.
//
// The reset endpoints exist for staging and rehearsal environments. They
// cannot reach production traffic: the injector refuses to construct
// enabled there in the first place.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rentfold/shadowwrite"
	"github.com/rentfold/shadowwrite/chaos"
	"github.com/rentfold/shadowwrite/journal"
)

// ChaosSource is the injector surface the router reads. *chaos.Injector
// satisfies it.
type ChaosSource interface {
	Config() chaos.Config
	Stats() chaos.Stats
	ResetStats()
}

// MetricsSource is the harness surface the router reads. Every
// *shadowwrite.Harness[T] satisfies it; EntityType keys the response.
type MetricsSource interface {
	EntityType() string
	Metrics() shadowwrite.Metrics
	ResetMetrics()
}

// JournalSource is the failure-journal surface the router reads.
// *journal.Journal satisfies it.
type JournalSource interface {
	ListUnresolved(ctx context.Context, limit int) ([]*journal.ShadowFailure, error)
	MarkResolved(ctx context.Context, id uint64) error
	Stats(ctx context.Context) (journal.Stats, error)
}

// RouterConfig wires the router's sources. Chaos is required; Metrics may
// be empty; a nil Journal turns the journal endpoints into 404s.
type RouterConfig struct {
	Chaos   ChaosSource
	Metrics []MetricsSource
	Journal JournalSource
	Logger  zerolog.Logger
}

type server struct {
	cfg RouterConfig
}

// NewRouter builds the admin router.
func NewRouter(cfg RouterConfig) *mux.Router {
	s := &server{cfg: cfg}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/chaos/config", s.handleChaosConfig).Methods(http.MethodGet)
	r.HandleFunc("/chaos/stats", s.handleChaosStats).Methods(http.MethodGet)
	r.HandleFunc("/chaos/stats/reset", s.handleChaosStatsReset).Methods(http.MethodPost)

	r.HandleFunc("/shadow/metrics", s.handleShadowMetrics).Methods(http.MethodGet)
	r.HandleFunc("/shadow/metrics/reset", s.handleShadowMetricsReset).Methods(http.MethodPost)

	if cfg.Journal != nil {
		r.HandleFunc("/journal/failures", s.handleJournalFailures).Methods(http.MethodGet)
		r.HandleFunc("/journal/failures/{id}/resolve", s.handleJournalResolve).Methods(http.MethodPost)
		r.HandleFunc("/journal/stats", s.handleJournalStats).Methods(http.MethodGet)
	}

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// chaosConfigView omits the seed: it is a rehearsal input, not an
// operational readout, and hiding it keeps operators from copying a "known
// good" seed between environments.
type chaosConfigView struct {
	Enabled     bool        `json:"enabled"`
	FailRate    float64     `json:"fail_rate"`
	Scope       chaos.Scope `json:"scope"`
	Seeded      bool        `json:"seeded"`
	Environment string      `json:"environment,omitempty"`
}

func (s *server) handleChaosConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg.Chaos.Config()
	respondJSON(w, http.StatusOK, chaosConfigView{
		Enabled:     cfg.Enabled,
		FailRate:    cfg.FailRate,
		Scope:       cfg.Scope,
		Seeded:      cfg.Seed != "",
		Environment: cfg.Environment,
	})
}

func (s *server) handleChaosStats(w http.ResponseWriter, r *http.Request) {
	stats := s.cfg.Chaos.Stats()
	respondJSON(w, http.StatusOK, map[string]uint64{
		"total_checks": stats.TotalChecks,
		"total_faults": stats.TotalFaults,
	})
}

func (s *server) handleChaosStatsReset(w http.ResponseWriter, r *http.Request) {
	s.cfg.Chaos.ResetStats()
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type metricsView struct {
	TotalWrites       uint64  `json:"total_writes"`
	ShadowSuccesses   uint64  `json:"shadow_successes"`
	ShadowFailures    uint64  `json:"shadow_failures"`
	InjectedFaults    uint64  `json:"injected_faults"`
	RealErrors        uint64  `json:"real_errors"`
	AvgShadowDuration float64 `json:"avg_shadow_duration_ms"`
}

func (s *server) handleShadowMetrics(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]metricsView, len(s.cfg.Metrics))
	for _, source := range s.cfg.Metrics {
		m := source.Metrics()
		out[source.EntityType()] = metricsView{
			TotalWrites:       m.TotalWrites,
			ShadowSuccesses:   m.ShadowSuccesses,
			ShadowFailures:    m.ShadowFailures,
			InjectedFaults:    m.InjectedFaults,
			RealErrors:        m.RealErrors,
			AvgShadowDuration: float64(m.AvgShadowDuration) / float64(time.Millisecond),
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *server) handleShadowMetricsReset(w http.ResponseWriter, r *http.Request) {
	for _, source := range s.cfg.Metrics {
		source.ResetMetrics()
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *server) handleJournalFailures(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	rows, err := s.cfg.Journal.ListUnresolved(r.Context(), limit)
	if err != nil {
		s.cfg.Logger.Error().Err(err).Msg("list journal failures")
		respondError(w, http.StatusInternalServerError, "journal query failed")
		return
	}
	if rows == nil {
		rows = []*journal.ShadowFailure{}
	}
	respondJSON(w, http.StatusOK, rows)
}

func (s *server) handleJournalResolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid failure id")
		return
	}
	if err := s.cfg.Journal.MarkResolved(r.Context(), id); err != nil {
		s.cfg.Logger.Error().Err(err).Uint64("id", id).Msg("resolve journal failure")
		respondError(w, http.StatusNotFound, "failure not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (s *server) handleJournalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cfg.Journal.Stats(r.Context())
	if err != nil {
		s.cfg.Logger.Error().Err(err).Msg("journal stats")
		respondError(w, http.StatusInternalServerError, "journal query failed")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
