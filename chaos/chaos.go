// Package chaos decides, deterministically when seeded, whether a given
// operation should fail right now. It exists so store-migration rehearsals
// can exercise shadow-write failure handling on demand, while staying
// impossible to switch on in a production environment.
package chaos

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rentfold/shadowwrite/internal/rand"
)

// Check reasons, reported for diagnostics alongside every decision.
const (
	ReasonDisabled      = "chaos_disabled"
	ReasonScopeMismatch = "scope_mismatch"
	ReasonRollPassed    = "roll_passed"
	ReasonFaultInjected = "fault_injected"
)

// CheckResult is the outcome of one decision. FaultID is set only when
// ShouldFail is true.
type CheckResult struct {
	ShouldFail bool
	FaultID    string
	Reason     string
}

// Stats is a read-only snapshot of an injector's counters.
type Stats struct {
	TotalChecks uint64
	TotalFaults uint64
}

// Injector answers "should this operation fail?" under an immutable
// configuration. Instances are safe for concurrent use.
type Injector struct {
	cfg Config
	src *rand.Source

	mut         sync.Mutex
	totalChecks uint64
	totalFaults uint64
	faultSeq    uint64
}

// New builds an injector from an explicit configuration, bypassing the
// environment except for the production guard: an empty Environment is
// filled from APP_ENV so the guard cannot be dodged by omission. FailRate
// and Scope are normalized the same way environment values are.
func New(cfg Config) (*Injector, error) {
	cfg.FailRate = clampRate(cfg.FailRate)
	cfg.Scope = normalizeScope(cfg.Scope)
	if cfg.Environment == "" {
		cfg.Environment = os.Getenv(EnvAppEnv)
	}
	if err := guardProduction(cfg); err != nil {
		return nil, err
	}
	return &Injector{cfg: cfg, src: newSource(cfg.Seed)}, nil
}

// FromEnv builds an injector from the CHAOS_* environment variables with the
// given overrides merged on top (overrides win field by field).
func FromEnv(o Overrides) (*Injector, error) {
	cfg := configFromEnv()
	if o.Enabled != nil {
		cfg.Enabled = *o.Enabled
	}
	if o.FailRate != nil {
		cfg.FailRate = clampRate(*o.FailRate)
	}
	if o.Seed != nil {
		cfg.Seed = *o.Seed
	}
	if o.Scope != nil {
		cfg.Scope = normalizeScope(*o.Scope)
	}
	if err := guardProduction(cfg); err != nil {
		return nil, err
	}
	return &Injector{cfg: cfg, src: newSource(cfg.Seed)}, nil
}

func guardProduction(cfg Config) error {
	if cfg.Enabled && cfg.Environment == envProduction {
		return fmt.Errorf("refusing to construct injector with %s=%s: %w",
			EnvAppEnv, cfg.Environment, ErrEnabledInProduction)
	}
	return nil
}

func newSource(seed string) *rand.Source {
	if seed == "" {
		return rand.New()
	}
	return rand.NewSeeded(seed)
}

// Check decides whether the operation labeled by target scope and operation
// name should fail. The PRNG is consulted only when the instance is enabled
// and the configured scope covers target, so the decision sequence for a
// seed depends solely on the covered checks made.
func (in *Injector) Check(target Scope, operation string) CheckResult {
	in.mut.Lock()
	in.totalChecks++
	in.mut.Unlock()

	if !in.cfg.Enabled {
		return CheckResult{Reason: ReasonDisabled}
	}
	if !in.cfg.Scope.Covers(target) {
		return CheckResult{Reason: ReasonScopeMismatch}
	}
	if in.src.Float64() >= in.cfg.FailRate {
		return CheckResult{Reason: ReasonRollPassed}
	}

	in.mut.Lock()
	in.totalFaults++
	in.faultSeq++
	seq := in.faultSeq
	in.mut.Unlock()

	// Counter plus wall clock keeps ids unique even when two instances
	// share a seed and therefore fail in lockstep.
	return CheckResult{
		ShouldFail: true,
		FaultID:    fmt.Sprintf("fault-%06d-%d", seq, time.Now().UnixNano()),
		Reason:     ReasonFaultInjected,
	}
}

// MaybeInjectFault runs Check and converts a failing decision into an
// *Error carrying the fault id, scope, and operation. Returns nil when the
// operation should proceed.
func (in *Injector) MaybeInjectFault(target Scope, operation string) error {
	res := in.Check(target, operation)
	if !res.ShouldFail {
		return nil
	}
	return &Error{FaultID: res.FaultID, Scope: target, Operation: operation}
}

// Wrap checks strictly before invoking fn, so a wrapped operation's side
// effects never occur when a fault is injected.
func (in *Injector) Wrap(target Scope, operation string, fn func() error) error {
	if err := in.MaybeInjectFault(target, operation); err != nil {
		return err
	}
	return fn()
}

// WrapContext is Wrap for context-aware operations.
func (in *Injector) WrapContext(ctx context.Context, target Scope, operation string, fn func(context.Context) error) error {
	if err := in.MaybeInjectFault(target, operation); err != nil {
		return err
	}
	return fn(ctx)
}

func (in *Injector) IsEnabled() bool {
	return in.cfg.Enabled
}

// Config returns a copy of the instance's configuration.
func (in *Injector) Config() Config {
	return in.cfg
}

func (in *Injector) Stats() Stats {
	in.mut.Lock()
	defer in.mut.Unlock()
	return Stats{TotalChecks: in.totalChecks, TotalFaults: in.totalFaults}
}

// ResetStats zeroes the counters without touching configuration or the
// fault-id sequence.
func (in *Injector) ResetStats() {
	in.mut.Lock()
	defer in.mut.Unlock()
	in.totalChecks = 0
	in.totalFaults = 0
}
