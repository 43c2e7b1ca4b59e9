package shadowwrite

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rentfold/shadowwrite/chaos"
	"github.com/rentfold/shadowwrite/store"
)

// Options configure the optional collaborators of a Harness. The zero value
// is valid: no failure handler, no metric handler, no logging.
type Options struct {
	// OnShadowFailure receives one record per shadow failure. Errors and
	// panics from it are swallowed and logged.
	OnShadowFailure FailureHandler
	// OnMetric receives two events per write. Not guarded.
	OnMetric MetricHandler
	// Logger is used for swallowed handler failures. Defaults to a no-op
	// logger.
	Logger *zerolog.Logger
}

// Metrics is a point-in-time snapshot of a harness's counters.
// ShadowSuccesses+ShadowFailures always equals TotalWrites, and
// InjectedFaults+RealErrors always equals ShadowFailures.
type Metrics struct {
	TotalWrites     uint64
	ShadowSuccesses uint64
	ShadowFailures  uint64
	InjectedFaults  uint64
	RealErrors      uint64
	// AvgShadowDuration is cumulative shadow time divided by TotalWrites,
	// an exact mean over the instance's lifetime rather than a windowed or
	// decaying average.
	AvgShadowDuration time.Duration
}

// Harness orchestrates dual writes for one entity type. The primary store's
// outcome is authoritative; the shadow store is written under fault
// injection and its failures are absorbed. Instances are safe for
// concurrent use; the stores referenced must be too.
type Harness[T store.Entity] struct {
	primary    store.Store[T]
	shadow     store.Store[T]
	injector   *chaos.Injector
	entityType string

	onFailure FailureHandler
	onMetric  MetricHandler
	logger    zerolog.Logger

	mu               sync.Mutex
	totalWrites      uint64
	shadowSuccesses  uint64
	shadowFailures   uint64
	injectedFaults   uint64
	realErrors       uint64
	cumulativeShadow time.Duration
}

// New builds a harness over a primary and a shadow store. A nil injector is
// replaced with a disabled one, so every shadow write is attempted for
// real. A nil opts is valid.
func New[T store.Entity](primary, shadow store.Store[T], injector *chaos.Injector, opts *Options) *Harness[T] {
	if opts == nil {
		opts = &Options{}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if injector == nil {
		// A disabled config never trips the production guard.
		injector, _ = chaos.New(chaos.Config{})
	}

	return &Harness[T]{
		primary:    primary,
		shadow:     shadow,
		injector:   injector,
		entityType: store.TableNameOf[T](),
		onFailure:  opts.OnShadowFailure,
		onMetric:   opts.OnMetric,
		logger:     logger,
	}
}

// Create writes the entity to the primary store, then attempts the same
// create against the shadow store with the canonical primary result. A
// primary error aborts and propagates; a shadow error of either kind is
// absorbed into the Result.
func (h *Harness[T]) Create(ctx context.Context, entity *T) (*Result[T], error) {
	created, err := h.primary.Create(ctx, entity)
	if err != nil {
		return nil, err
	}

	outcome := h.runShadow(ctx, OpCreate, (*created).EntityID(), func(ctx context.Context) error {
		_, err := h.shadow.Create(ctx, created)
		return err
	})
	return outcome.result(created), nil
}

// Update applies the partial changes to the primary store, then replays the
// same changes against the shadow store.
func (h *Harness[T]) Update(ctx context.Context, id string, changes store.Changes) (*Result[T], error) {
	updated, err := h.primary.Update(ctx, id, changes)
	if err != nil {
		return nil, err
	}

	outcome := h.runShadow(ctx, OpUpdate, id, func(ctx context.Context) error {
		_, err := h.shadow.Update(ctx, id, changes)
		return err
	})
	return outcome.result(updated), nil
}

// Delete removes the entity from the primary store, then from the shadow
// store. The Result carries no entity; the shadow outcome fields keep the
// same shape as the other writes.
func (h *Harness[T]) Delete(ctx context.Context, id string) (*Result[T], error) {
	if err := h.primary.Delete(ctx, id); err != nil {
		return nil, err
	}

	outcome := h.runShadow(ctx, OpDelete, id, func(ctx context.Context) error {
		return h.shadow.Delete(ctx, id)
	})
	return outcome.result(nil), nil
}

// Read delegates to the primary store alone; the shadow store never serves
// traffic.
func (h *Harness[T]) Read(ctx context.Context, id string) (*T, error) {
	return h.primary.FindByID(ctx, id)
}

// List delegates to the primary store alone.
func (h *Harness[T]) List(ctx context.Context, opts store.ListOptions) ([]*T, error) {
	return h.primary.FindAll(ctx, opts)
}

type shadowOutcome[T store.Entity] struct {
	err      error
	faultID  string
	duration time.Duration
}

func (o shadowOutcome[T]) result(entity *T) *Result[T] {
	return &Result[T]{
		Entity:         entity,
		ShadowSuccess:  o.err == nil,
		ShadowError:    o.err,
		FaultID:        o.faultID,
		ShadowDuration: o.duration,
	}
}

// runShadow performs the guarded shadow attempt and all of its bookkeeping:
// classify, record, emit events, update counters, in that order.
func (h *Harness[T]) runShadow(ctx context.Context, op Operation, entityID string, fn func(context.Context) error) shadowOutcome[T] {
	label := h.entityType + ":" + string(op)

	start := time.Now()
	shadowErr := h.injector.WrapContext(ctx, chaos.ScopeShadowWriteOnly, label, fn)
	duration := time.Since(start)

	outcome := shadowOutcome[T]{err: shadowErr, duration: duration}
	injected := false
	if shadowErr != nil {
		var fault *chaos.Error
		if errors.As(shadowErr, &fault) {
			injected = true
			outcome.faultID = fault.FaultID
		}
		h.recordFailure(ctx, FailureRecord{
			EntityType:     h.entityType,
			EntityID:       entityID,
			Operation:      op,
			Err:            shadowErr,
			FaultID:        outcome.faultID,
			RequestID:      RequestIDFrom(ctx),
			OccurredAt:     time.Now().UTC(),
			PrimarySuccess: true,
		})
	}
	h.emitMetricEvents(op, shadowErr == nil, duration)
	h.updateMetrics(shadowErr == nil, injected, duration)

	return outcome
}

// recordFailure invokes the failure handler behind a recover barrier. The
// orchestration result must survive anything the handler does.
func (h *Harness[T]) recordFailure(ctx context.Context, record FailureRecord) {
	if h.onFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().
				Interface("panic", r).
				Str("entity_type", record.EntityType).
				Str("entity_id", record.EntityID).
				Msg("shadow failure handler panicked")
		}
	}()
	if err := h.onFailure.HandleShadowFailure(ctx, record); err != nil {
		h.logger.Error().
			Err(err).
			Str("entity_type", record.EntityType).
			Str("entity_id", record.EntityID).
			Msg("shadow failure handler failed")
	}
}

func (h *Harness[T]) emitMetricEvents(op Operation, success bool, duration time.Duration) {
	if h.onMetric == nil {
		return
	}
	name := MetricShadowWriteFailure
	if success {
		name = MetricShadowWriteSuccess
	}
	h.onMetric.HandleMetric(MetricEvent{Name: name, EntityType: h.entityType, Operation: op, Value: 1})
	h.onMetric.HandleMetric(MetricEvent{
		Name:       MetricShadowWriteDuration,
		EntityType: h.entityType,
		Operation:  op,
		Value:      float64(duration) / float64(time.Millisecond),
	})
}

func (h *Harness[T]) updateMetrics(success, injected bool, duration time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalWrites++
	if success {
		h.shadowSuccesses++
	} else {
		h.shadowFailures++
		if injected {
			h.injectedFaults++
		} else {
			h.realErrors++
		}
	}
	h.cumulativeShadow += duration
}

// Metrics returns a snapshot of the running counters.
func (h *Harness[T]) Metrics() Metrics {
	h.mu.Lock()
	defer h.mu.Unlock()

	m := Metrics{
		TotalWrites:     h.totalWrites,
		ShadowSuccesses: h.shadowSuccesses,
		ShadowFailures:  h.shadowFailures,
		InjectedFaults:  h.injectedFaults,
		RealErrors:      h.realErrors,
	}
	if h.totalWrites > 0 {
		m.AvgShadowDuration = h.cumulativeShadow / time.Duration(h.totalWrites)
	}
	return m
}

// ResetMetrics zeroes every counter and the duration accumulator. Used
// between rehearsal scenarios, never implicitly.
func (h *Harness[T]) ResetMetrics() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalWrites = 0
	h.shadowSuccesses = 0
	h.shadowFailures = 0
	h.injectedFaults = 0
	h.realErrors = 0
	h.cumulativeShadow = 0
}

// EntityType returns the table label this harness writes, as used on
// operation names, failure records, and metric events.
func (h *Harness[T]) EntityType() string {
	return h.entityType
}
