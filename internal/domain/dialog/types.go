// Package dialog defines the confirmation-dialog capability (§4.2c): an
// abstract, blocking, timeout-bounded interface for surfacing a
// policy-escalated operation to the human for a decision. The pipeline
// depends only on the Dialog interface -- concrete adapters (an IDE-side
// responder, or the timeout-only default used when no responder is wired)
// are swapped in at the edges.
package dialog

import (
	"context"
	"time"
)

// UserDecision is one of the three buttons a confirmation dialog can
// resolve to.
type UserDecision string

const (
	// Allow permits this single operation to proceed.
	Allow UserDecision = "ALLOW"
	// AllowAlways permits this operation and remembers the decision for
	// identically-shaped future calls (offered only when CallType is set).
	AllowAlways UserDecision = "ALLOW_ALWAYS"
	// Block denies the operation.
	Block UserDecision = "BLOCK"
)

// ConfirmationRequest carries everything a dialog needs to render a
// human-readable prompt.
type ConfirmationRequest struct {
	// Stage is "CLIENT REQUEST" or "TOOL RESPONSE".
	Stage string
	// ToolName is the tool or resource/prompt URI being inspected.
	ToolName string
	// Reasons is the policy verdict's human-readable reasons.
	Reasons []string
	// Severity is the verdict's severity, for display purposes only.
	Severity string
}

// Options control which buttons a dialog offers in addition to its
// baseline set.
type Options struct {
	// ShowAlwaysAllow is true iff CallType != "" on the originating verdict.
	ShowAlwaysAllow bool
	// ShowAlwaysBlock is always false for the confirmation path (§4.2c);
	// retained as an explicit field so a future dialog surface can turn it
	// on without changing the interface.
	ShowAlwaysBlock bool
}

// Dialog is the abstract blocking confirmation capability. Both methods
// must return within timeout, defaulting their open-ended wait to Block on
// expiry, and must be safe to call from multiple goroutines -- dialogs
// present one at a time per process; callers that want serialized
// presentation should wrap a Dialog with WithQueue.
type Dialog interface {
	// RequestConfirmation offers {ALLOW, ALLOW_ALWAYS, BLOCK} (when
	// opts.ShowAlwaysAllow) or {ALLOW, BLOCK}. Used for the
	// required_explicit_user_confirmation and block+override paths.
	RequestConfirmation(ctx context.Context, req ConfirmationRequest, promptID, callType string, opts Options, timeout time.Duration) (UserDecision, error)

	// RequestBlockingConfirmation offers exactly {BLOCK (default), ALLOW}.
	// Used when a block survives the severity filter and overrides are
	// disabled is NOT this path -- that path fails immediately without a
	// dialog. This method exists for capability symmetry with §4.2c and is
	// available to callers that want a plain two-button prompt.
	RequestBlockingConfirmation(ctx context.Context, req ConfirmationRequest, promptID, callType string, timeout time.Duration) (UserDecision, error)
}
