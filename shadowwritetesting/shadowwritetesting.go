// Package shadowwritetesting provides the collaborator doubles the package
// tests share: a store wrapper with scriptable failures, and recording
// implementations of the harness's handler interfaces.
package shadowwritetesting

import (
	"context"
	"sync"

	"github.com/rentfold/shadowwrite"
	"github.com/rentfold/shadowwrite/store"
)

// FailingStore wraps a delegate store and fails selected operations with
// scripted errors, so tests can exercise the real-shadow-error paths without
// a misbehaving backend. A nil error field passes the call through.
type FailingStore[T store.Entity] struct {
	Delegate store.Store[T]

	mu          sync.Mutex
	createErr   error
	updateErr   error
	deleteErr   error
	findErr     error
	createsLeft int // when > 0, only that many creates fail
}

func NewFailingStore[T store.Entity](delegate store.Store[T]) *FailingStore[T] {
	return &FailingStore[T]{Delegate: delegate}
}

// FailCreates makes Create return err. With n > 0 only the next n creates
// fail; n == 0 fails every create until cleared with a nil err.
func (s *FailingStore[T]) FailCreates(err error, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = err
	s.createsLeft = n
}

func (s *FailingStore[T]) FailUpdates(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErr = err
}

func (s *FailingStore[T]) FailDeletes(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr = err
}

func (s *FailingStore[T]) FailFinds(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findErr = err
}

func (s *FailingStore[T]) nextCreateErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr == nil {
		return nil
	}
	if s.createsLeft > 0 {
		s.createsLeft--
		if s.createsLeft == 0 {
			err := s.createErr
			s.createErr = nil
			return err
		}
	}
	return s.createErr
}

func (s *FailingStore[T]) Create(ctx context.Context, entity *T) (*T, error) {
	if err := s.nextCreateErr(); err != nil {
		return nil, err
	}
	return s.Delegate.Create(ctx, entity)
}

func (s *FailingStore[T]) Update(ctx context.Context, id string, changes store.Changes) (*T, error) {
	s.mu.Lock()
	err := s.updateErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Delegate.Update(ctx, id, changes)
}

func (s *FailingStore[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	err := s.deleteErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Delegate.Delete(ctx, id)
}

func (s *FailingStore[T]) FindByID(ctx context.Context, id string) (*T, error) {
	s.mu.Lock()
	err := s.findErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Delegate.FindByID(ctx, id)
}

func (s *FailingStore[T]) FindAll(ctx context.Context, opts store.ListOptions) ([]*T, error) {
	s.mu.Lock()
	err := s.findErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Delegate.FindAll(ctx, opts)
}

// FailureRecorder collects every FailureRecord it is handed. Err, when set,
// is returned from each call so tests can prove handler errors are
// swallowed.
type FailureRecorder struct {
	Err error

	mu      sync.Mutex
	records []shadowwrite.FailureRecord
}

func (r *FailureRecorder) HandleShadowFailure(ctx context.Context, record shadowwrite.FailureRecord) error {
	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()
	return r.Err
}

// Records returns a copy of everything recorded so far.
func (r *FailureRecorder) Records() []shadowwrite.FailureRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shadowwrite.FailureRecord, len(r.records))
	copy(out, r.records)
	return out
}

// PanickingFailureHandler records nothing and panics on every call.
type PanickingFailureHandler struct{}

func (PanickingFailureHandler) HandleShadowFailure(context.Context, shadowwrite.FailureRecord) error {
	panic("failure handler panic")
}

// MetricRecorder collects every MetricEvent it is handed.
type MetricRecorder struct {
	mu     sync.Mutex
	events []shadowwrite.MetricEvent
}

func (r *MetricRecorder) HandleMetric(event shadowwrite.MetricEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *MetricRecorder) Events() []shadowwrite.MetricEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shadowwrite.MetricEvent, len(r.events))
	copy(out, r.events)
	return out
}

// ByName filters recorded events to one metric name.
func (r *MetricRecorder) ByName(name string) []shadowwrite.MetricEvent {
	var out []shadowwrite.MetricEvent
	for _, event := range r.Events() {
		if event.Name == name {
			out = append(out, event)
		}
	}
	return out
}
