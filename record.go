package shadowwrite

import (
	"time"
)

// Operation is the kind of write that went through the harness.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Metric event names emitted per write: one outcome event and one duration
// event, both tagged with entity type and operation.
const (
	MetricShadowWriteSuccess  = "shadow_write_success"
	MetricShadowWriteFailure  = "shadow_write_failure"
	MetricShadowWriteDuration = "shadow_write_duration"
)

// MetricEvent is pushed to the MetricHandler. Value is 1 for outcome events
// and elapsed milliseconds for duration events.
type MetricEvent struct {
	Name       string
	EntityType string
	Operation  Operation
	Value      float64
}

// FailureRecord describes one observed shadow failure. PrimarySuccess is
// true by construction: the primary write completed before the shadow write
// was attempted.
type FailureRecord struct {
	EntityType     string
	EntityID       string
	Operation      Operation
	Err            error
	FaultID        string // empty when the failure was real, not injected
	RequestID      string // caller-supplied via WithRequestID, optional
	OccurredAt     time.Time
	PrimarySuccess bool
}

// Injected reports whether the failure was synthesized by the fault
// injector rather than raised by the shadow store.
func (r FailureRecord) Injected() bool {
	return r.FaultID != ""
}

// Result is returned by every harness write. Entity is the canonical value
// produced by the primary store, nil for deletes. FaultID is set only when
// the shadow failure was injected.
type Result[T any] struct {
	Entity         *T
	ShadowSuccess  bool
	ShadowError    error
	FaultID        string
	ShadowDuration time.Duration
}
