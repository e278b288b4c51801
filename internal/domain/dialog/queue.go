package dialog

import (
	"context"
	"sync"
	"time"
)

// Serialized wraps a Dialog so that at most one prompt is presented at a
// time per process; concurrent callers queue (§5: "Dialogs present one at
// a time per process; if multiple operations simultaneously escalate,
// they queue").
type Serialized struct {
	inner Dialog
	mu    sync.Mutex
}

// NewSerialized wraps inner with single-flight presentation.
func NewSerialized(inner Dialog) *Serialized {
	return &Serialized{inner: inner}
}

func (s *Serialized) RequestConfirmation(ctx context.Context, req ConfirmationRequest, promptID, callType string, opts Options, timeout time.Duration) (UserDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.RequestConfirmation(ctx, req, promptID, callType, opts, timeout)
}

func (s *Serialized) RequestBlockingConfirmation(ctx context.Context, req ConfirmationRequest, promptID, callType string, timeout time.Duration) (UserDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.RequestBlockingConfirmation(ctx, req, promptID, callType, timeout)
}
