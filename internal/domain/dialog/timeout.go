package dialog

import (
	"context"
	"time"
)

// TimeoutDialog is the default Dialog adapter for the MCP wrapper proxy.
// The wrapper has no interactive side channel back to the human over the
// stdio transport it shares with the wrapped server, so every prompt waits
// out its configured timeout (honoring early cancellation) and then
// resolves to Block, exactly matching the "timeout -> BLOCK" contract of
// §4.2c for a process with no responder wired. An IDE-side hook process,
// by contrast, has its own synchronous terminal/editor channel and
// supplies a different Dialog implementation.
type TimeoutDialog struct{}

// NewTimeoutDialog returns the no-responder default Dialog.
func NewTimeoutDialog() *TimeoutDialog {
	return &TimeoutDialog{}
}

func (d *TimeoutDialog) RequestConfirmation(ctx context.Context, _ ConfirmationRequest, _, _ string, _ Options, timeout time.Duration) (UserDecision, error) {
	return wait(ctx, timeout)
}

func (d *TimeoutDialog) RequestBlockingConfirmation(ctx context.Context, _ ConfirmationRequest, _, _ string, timeout time.Duration) (UserDecision, error) {
	return wait(ctx, timeout)
}

func wait(ctx context.Context, timeout time.Duration) (UserDecision, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		return Block, nil
	case <-ctx.Done():
		return Block, nil
	}
}
