package enforce

import (
	"context"
	"time"

	"github.com/mcpower/mcpower-gate/internal/domain/dialog"
)

// Config mirrors internal/config.EnforcementConfig (§4.2b's two knobs),
// kept as its own small struct so this package has no dependency on the
// viper-backed config loader.
type Config struct {
	// MinBlockSeverity: blocks with severity strictly below this threshold
	// are downgraded to auto-allow. Default "low".
	MinBlockSeverity Severity
	// AllowBlockOverride: when a block survives the severity filter, true
	// shows an override dialog (Block / Allow-Anyway); false denies
	// immediately with no dialog. Default true.
	AllowBlockOverride bool
	// ConfirmationTimeout bounds every dialog call. Default 60s.
	ConfirmationTimeout time.Duration
}

// OperationContext is the non-verdict half of the enforcement input: the
// operation's identity, used for dialog text, audit correlation, and the
// need-more-info error's stage label.
type OperationContext struct {
	EventID     string
	PromptID    string
	ToolName    string
	ServerName  string
	IsRequest   bool
}

// Recorder mirrors POST /confirm (record_user_confirmation): fire-and-forget,
// best-effort, errors logged only (§4.2a) -- implementations must not block
// the pipeline's visible outcome on delivery failure.
type Recorder func(ctx context.Context, eventID, direction string, decision dialog.UserDecision, callType string)

const (
	directionRequest  = "request"
	directionResponse = "response"
)

// stageLabel returns "CLIENT REQUEST" or "TOOL RESPONSE" per §4.2b.
func (o OperationContext) stageLabel() string {
	if o.IsRequest {
		return "CLIENT REQUEST"
	}
	return "TOOL RESPONSE"
}

func (o OperationContext) direction() string {
	if o.IsRequest {
		return directionRequest
	}
	return directionResponse
}

// Enforce runs the §4.2b transition table. A nil return means the
// operation continues (allow, or an auto-allowed downgraded block). A
// non-nil error is either *PolicyError (fail the operation, surface
// Message verbatim to the MCP client) or *NeedMoreInfoError (fail the
// operation with the structured retry message).
func Enforce(ctx context.Context, verdict Verdict, opCtx OperationContext, cfg Config, dlg dialog.Dialog, record Recorder) error {
	switch verdict.Decision {
	case DecisionAllow:
		return nil

	case DecisionNeedMoreInfo:
		// Never shown to a dialog; a structured, actionable error only.
		return newNeedMoreInfoError(opCtx.stageLabel(), verdict.Reasons, verdict.NeedFields)

	case DecisionBlock:
		return enforceBlock(ctx, verdict, opCtx, cfg, dlg, record)

	case DecisionRequiredExplicitConfirmation:
		return enforceRequiredConfirmation(ctx, verdict, opCtx, cfg, dlg, record)

	default:
		// An unrecognized decision from the policy service is treated as a
		// fail-closed internal error (§7 item 6).
		return newBlockError()
	}
}

func enforceBlock(ctx context.Context, verdict Verdict, opCtx OperationContext, cfg Config, dlg dialog.Dialog, record Recorder) error {
	min := cfg.MinBlockSeverity
	if min == "" {
		min = SeverityLow
	}

	// Critical always blocks regardless of MIN_BLOCK_SEVERITY.
	severe := verdict.Severity == SeverityCritical || verdict.Severity.AtLeast(min)
	if !severe {
		if record != nil {
			record(ctx, opCtx.EventID, opCtx.direction(), dialog.Allow, "")
		}
		return nil
	}

	if !cfg.AllowBlockOverride {
		if record != nil {
			record(ctx, opCtx.EventID, opCtx.direction(), dialog.Block, "")
		}
		return newBlockError()
	}

	req := dialog.ConfirmationRequest{
		Stage:    opCtx.stageLabel(),
		ToolName: opCtx.ToolName,
		Reasons:  verdict.Reasons,
		Severity: string(verdict.Severity),
	}
	decision, err := dlg.RequestBlockingConfirmation(ctx, req, opCtx.PromptID, verdict.CallType, timeoutOrDefault(cfg))
	if err != nil {
		decision = dialog.Block
	}
	if record != nil {
		record(ctx, opCtx.EventID, opCtx.direction(), decision, "")
	}
	if decision == dialog.Allow || decision == dialog.AllowAlways {
		return nil
	}
	return newBlockError()
}

func enforceRequiredConfirmation(ctx context.Context, verdict Verdict, opCtx OperationContext, cfg Config, dlg dialog.Dialog, record Recorder) error {
	opts := dialog.Options{ShowAlwaysAllow: verdict.CallType != ""}
	req := dialog.ConfirmationRequest{
		Stage:    opCtx.stageLabel(),
		ToolName: opCtx.ToolName,
		Reasons:  verdict.Reasons,
		Severity: string(verdict.Severity),
	}
	decision, err := dlg.RequestConfirmation(ctx, req, opCtx.PromptID, verdict.CallType, opts, timeoutOrDefault(cfg))
	if err != nil {
		decision = dialog.Block
	}
	if record != nil {
		record(ctx, opCtx.EventID, opCtx.direction(), decision, verdict.CallType)
	}
	if decision == dialog.Allow || decision == dialog.AllowAlways {
		return nil
	}
	return newBlockError()
}

func timeoutOrDefault(cfg Config) time.Duration {
	if cfg.ConfirmationTimeout <= 0 {
		return 60 * time.Second
	}
	return cfg.ConfirmationTimeout
}
