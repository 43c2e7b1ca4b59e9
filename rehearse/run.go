package rehearse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rentfold/shadowwrite"
	"github.com/rentfold/shadowwrite/chaos"
	"github.com/rentfold/shadowwrite/internal/rand"
	"github.com/rentfold/shadowwrite/journal"
	"github.com/rentfold/shadowwrite/models"
	"github.com/rentfold/shadowwrite/ops"
	"github.com/rentfold/shadowwrite/prom"
	"github.com/rentfold/shadowwrite/store"
)

const requestIDLength = 16

// App owns the wired collaborators for one rehearsal run.
type App struct {
	cfg      *Config
	injector *chaos.Injector
	logger   zerolog.Logger
}

func NewApp(cfg *Config, injector *chaos.Injector, logger zerolog.Logger) *App {
	return &App{cfg: cfg, injector: injector, logger: logger}
}

// failureHandlers fans one record out to several handlers; errors are
// joined so each still surfaces in the harness's log.
type failureHandlers []shadowwrite.FailureHandler

func (hs failureHandlers) HandleShadowFailure(ctx context.Context, record shadowwrite.FailureRecord) error {
	var errs []error
	for _, h := range hs {
		if err := h.HandleShadowFailure(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run executes cfg.Cycles rounds of the scripted workload and logs a final
// report. The admin API and Prometheus metrics are served on AdminAddr for
// the duration when configured.
func (a *App) Run(ctx context.Context) error {
	cfg := a.cfg
	b := newBackends(cfg)
	defer b.Close(ctx)

	properties, err := buildHarnessPair[models.Property](ctx, a, b)
	if err != nil {
		return err
	}
	listings, err := buildHarnessPair[models.Listing](ctx, a, b)
	if err != nil {
		return err
	}
	leases, err := buildHarnessPair[models.Lease](ctx, a, b)
	if err != nil {
		return err
	}

	var jrnl *journal.Journal
	if cfg.JournalDSN != "" {
		jrnl, err = journal.Open(cfg.JournalDSN)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() { _ = jrnl.Close() }()
		if err := jrnl.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	promHandler := prom.New(registry)
	opts := a.harnessOptions(jrnl, promHandler)
	properties.configure(opts)
	listings.configure(opts)
	leases.configure(opts)

	if cfg.AdminAddr != "" {
		router := ops.NewRouter(ops.RouterConfig{
			Chaos: a.injector,
			Metrics: []ops.MetricsSource{
				properties.harness, listings.harness, leases.harness,
			},
			Journal: journalSource(jrnl),
			Logger:  a.logger,
		})
		router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		srv := &http.Server{Addr: cfg.AdminAddr, Handler: router}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error().Err(err).Msg("admin server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		a.logger.Info().Str("addr", cfg.AdminAddr).Msg("admin API listening")
	}

	a.logger.Info().
		Str("primary", string(cfg.Primary)).
		Str("shadow", string(cfg.Shadow)).
		Int("cycles", cfg.Cycles).
		Bool("chaos", a.injector.IsEnabled()).
		Msg("rehearsal starting")

	for cycle := 0; cycle < cfg.Cycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.runCycle(ctx, cycle, properties, listings, leases); err != nil {
			return fmt.Errorf("cycle %d: %w", cycle, err)
		}
	}

	a.report(ctx, jrnl, properties.harness, listings.harness, leases.harness)
	return nil
}

// harnessPair defers handler wiring: stores are built first, options once
// the journal and metrics sinks exist.
type harnessPair[T store.Entity] struct {
	primary store.Store[T]
	shadow  store.Store[T]

	injector *chaos.Injector
	harness  *shadowwrite.Harness[T]
}

func buildHarnessPair[T store.Entity](ctx context.Context, a *App, b *backends) (*harnessPair[T], error) {
	primary, err := storeFor[T](ctx, b, a.cfg.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary %s store: %w", store.TableNameOf[T](), err)
	}
	shadow, err := storeFor[T](ctx, b, a.cfg.Shadow)
	if err != nil {
		return nil, fmt.Errorf("shadow %s store: %w", store.TableNameOf[T](), err)
	}
	return &harnessPair[T]{primary: primary, shadow: shadow, injector: a.injector}, nil
}

func (p *harnessPair[T]) configure(opts *shadowwrite.Options) {
	p.harness = shadowwrite.New[T](p.primary, p.shadow, p.injector, opts)
}

func (a *App) harnessOptions(jrnl *journal.Journal, metrics shadowwrite.MetricHandler) *shadowwrite.Options {
	handlers := failureHandlers{shadowwrite.NewLoggingFailureHandler(a.logger)}
	if jrnl != nil {
		handlers = append(handlers, jrnl)
	}
	return &shadowwrite.Options{
		OnShadowFailure: handlers,
		OnMetric:        metrics,
		Logger:          &a.logger,
	}
}

// journalSource keeps a nil *journal.Journal from becoming a non-nil
// ops.JournalSource interface value.
func journalSource(jrnl *journal.Journal) ops.JournalSource {
	if jrnl == nil {
		return nil
	}
	return jrnl
}

// runCycle walks one property through its lifecycle: list it, lease it,
// amend everything, then tear it all down. Every call carries its own
// request id so journal rows correlate back to the workload step.
func (a *App) runCycle(ctx context.Context, cycle int,
	properties *harnessPair[models.Property],
	listings *harnessPair[models.Listing],
	leases *harnessPair[models.Lease],
) error {
	stamp := func() context.Context {
		return shadowwrite.WithRequestID(ctx, rand.NewRequestID(requestIDLength))
	}

	property := models.NewProperty(
		fmt.Sprintf("Rehearsal Block %d", cycle),
		fmt.Sprintf("%d Meridian Road", 100+cycle),
		"Springfield",
	)
	if _, err := properties.harness.Create(stamp(), property); err != nil {
		return fmt.Errorf("create property: %w", err)
	}

	listing := models.NewListing(property.ID, fmt.Sprintf("Unit %d", cycle), 175000)
	if _, err := listings.harness.Create(stamp(), listing); err != nil {
		return fmt.Errorf("create listing: %w", err)
	}

	start := time.Now().UTC().Truncate(24 * time.Hour)
	lease := models.NewLease(property.ID, "Avery Tenant", "avery@example.com",
		start, start.AddDate(1, 0, 0), 175000)
	if _, err := leases.harness.Create(stamp(), lease); err != nil {
		return fmt.Errorf("create lease: %w", err)
	}

	if _, err := properties.harness.Update(stamp(), property.EntityID(), store.Changes{
		"postal_code": fmt.Sprintf("03%03d", cycle),
	}); err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	if _, err := listings.harness.Update(stamp(), listing.EntityID(), store.Changes{
		"status": string(models.ListingStatusActive),
	}); err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if _, err := leases.harness.Update(stamp(), lease.EntityID(), store.Changes{
		"status": string(models.LeaseStatusActive),
	}); err != nil {
		return fmt.Errorf("update lease: %w", err)
	}

	// Read the canonical state back; reads never touch the shadow store.
	if _, err := properties.harness.Read(stamp(), property.EntityID()); err != nil {
		return fmt.Errorf("read property: %w", err)
	}

	if _, err := leases.harness.Delete(stamp(), lease.EntityID()); err != nil {
		return fmt.Errorf("delete lease: %w", err)
	}
	if _, err := listings.harness.Delete(stamp(), listing.EntityID()); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if _, err := properties.harness.Delete(stamp(), property.EntityID()); err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	return nil
}

func (a *App) report(ctx context.Context, jrnl *journal.Journal, sources ...ops.MetricsSource) {
	for _, source := range sources {
		m := source.Metrics()
		a.logger.Info().
			Str("entity_type", source.EntityType()).
			Uint64("total_writes", m.TotalWrites).
			Uint64("shadow_successes", m.ShadowSuccesses).
			Uint64("shadow_failures", m.ShadowFailures).
			Uint64("injected_faults", m.InjectedFaults).
			Uint64("real_errors", m.RealErrors).
			Dur("avg_shadow_duration", m.AvgShadowDuration).
			Msg("harness metrics")
	}

	stats := a.injector.Stats()
	a.logger.Info().
		Uint64("total_checks", stats.TotalChecks).
		Uint64("total_faults", stats.TotalFaults).
		Msg("injector stats")

	if jrnl != nil {
		jstats, err := jrnl.Stats(ctx)
		if err != nil {
			a.logger.Error().Err(err).Msg("journal stats unavailable")
			return
		}
		a.logger.Info().
			Int64("total", jstats.Total).
			Int64("injected", jstats.Injected).
			Int64("real", jstats.Real).
			Int64("unresolved", jstats.Unresolved).
			Msg("journal stats")
	}
}

// Migrate creates the relational schemas: the entity tables when either
// side is PostgreSQL, and the journal table when a journal DSN is set.
func Migrate(ctx context.Context, cfg *Config, logger zerolog.Logger) error {
	if cfg.Primary == KindPostgres || cfg.Shadow == KindPostgres {
		b := newBackends(cfg)
		defer b.Close(ctx)
		db, err := b.postgresDB()
		if err != nil {
			return err
		}
		if err := db.WithContext(ctx).AutoMigrate(
			&models.Property{},
			&models.Listing{},
			&models.Lease{},
		); err != nil {
			return fmt.Errorf("migrate entity tables: %w", err)
		}
		logger.Info().Msg("entity tables migrated")
	}

	if cfg.JournalDSN != "" {
		jrnl, err := journal.Open(cfg.JournalDSN)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() { _ = jrnl.Close() }()
		if err := jrnl.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
		logger.Info().Msg("journal table migrated")
	}
	return nil
}

// Report prints journal statistics to w.
func Report(ctx context.Context, cfg *Config, w io.Writer) error {
	if cfg.JournalDSN == "" {
		return fmt.Errorf("no journal configured: set JOURNAL_DSN or POSTGRES_DSN")
	}
	jrnl, err := journal.Open(cfg.JournalDSN)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() { _ = jrnl.Close() }()

	stats, err := jrnl.Stats(ctx)
	if err != nil {
		return fmt.Errorf("journal stats: %w", err)
	}
	fmt.Fprintf(w, "shadow failures: %d total (%d injected, %d real), %d unresolved\n",
		stats.Total, stats.Injected, stats.Real, stats.Unresolved)

	unresolved, err := jrnl.ListUnresolved(ctx, 20)
	if err != nil {
		return fmt.Errorf("list unresolved: %w", err)
	}
	for _, row := range unresolved {
		kind := "real"
		if row.Injected {
			kind = "injected"
		}
		fmt.Fprintf(w, "  #%d %s %s %s (%s) at %s: %s\n",
			row.ID, row.EntityType, row.EntityID, row.Operation, kind,
			row.OccurredAt.Format(time.RFC3339), row.ErrorMessage)
	}
	return nil
}
