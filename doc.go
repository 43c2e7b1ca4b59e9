// The [shadowwrite] package dual-writes every mutation to a canonical
// primary store and a shadow store, so an operator can rehearse a live
// store migration before the cutover, failure handling included.
//
// # Orchestration
//
// [Harness] runs the write operations ([Harness.Create], [Harness.Update],
// [Harness.Delete]) against a pair of [store.Store] implementations. The
// primary write is authoritative: its error propagates to the caller
// unmodified and aborts the call. The shadow write is attempted afterwards
// under fault injection, and its outcome - success, a genuine store error,
// or an injected fault - is classified, recorded, metered, and suppressed.
// A failed shadow write is never a failed call. Reads go to the primary
// alone.
//
// # Observability
//
// Each shadow failure produces one [FailureRecord] for the optional
// [FailureHandler]; every write emits two [MetricEvent] values for the
// optional [MetricHandler]; and the harness accumulates [Metrics] with the
// failures split into injected and real, plus the exact mean shadow
// duration, until [Harness.ResetMetrics].
//
// # Fault injection
//
// The [github.com/rentfold/shadowwrite/chaos] package decides which shadow
// writes fail. Injected faults are distinguished from real store errors
// purely by error type, which keeps the injected/real split on metrics and
// failure records trustworthy: that split is how operators separate
// expected rehearsal noise from actual migration bugs.
package shadowwrite
