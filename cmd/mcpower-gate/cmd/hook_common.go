package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"os"
	"time"

	"github.com/mcpower/mcpower-gate/internal/adapter/outbound/identity"
	"github.com/mcpower/mcpower-gate/internal/adapter/outbound/policyclient"
	"github.com/mcpower/mcpower-gate/internal/config"
	"github.com/mcpower/mcpower-gate/internal/domain/dialog"
	"github.com/mcpower/mcpower-gate/internal/domain/enforce"
	"github.com/mcpower/mcpower-gate/internal/domain/hookio"
)

// newHookEventID allocates a "<millis>-<8 hex>" event id, the same shape
// the stdio wrapper pipeline uses (§3), so hook-originated and MCP-call
// audit/confirmation records correlate the same way.
func newHookEventID() string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return time.Now().Format("20060102150405.000") + "-" + hex.EncodeToString(buf[:])
}

// hookDeps is the dependency graph a single hook invocation needs. Unlike
// the long-lived "run" process, every claude-hook/cursor-hook invocation is
// its own short-lived subprocess: there is no state to share across calls
// beyond what identity.Store persists to disk (§6.4) and what the remote
// policy service itself remembers.
type hookDeps struct {
	cfg      *config.OSSConfig
	policy   *policyclient.Client
	identity *identity.Store
	logger   *slog.Logger
	enforce  enforce.Config
}

// newHookDeps loads config and wires the same policyclient/enforce
// machinery the stdio wrapper pipeline uses, so a hook denies or allows by
// exactly the same rules as an MCP tool call would (§6.3's hooks are a
// second surface over the one decision engine, not a parallel one).
func newHookDeps() (*hookDeps, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if os.Getenv("MCPOWER_DEBUG") == "1" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	timeout, err := time.ParseDuration(cfg.PolicyService.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 15 * time.Second
	}
	policy := policyclient.New(cfg.PolicyService.BaseURL, cfg.PolicyService.APIKey, logger,
		policyclient.WithTimeout(timeout))

	return &hookDeps{
		cfg:      cfg,
		policy:   policy,
		identity: identity.NewStore(logger),
		logger:   logger,
		enforce:  buildEnforceConfig(cfg),
	}, nil
}

// buildEnforceConfig mirrors internal/config.EnforcementConfig into the
// dependency-free enforce.Config, dereferencing the tri-state
// AllowBlockOverride (nil only before SetDefaults runs, which LoadConfig
// always calls).
func buildEnforceConfig(cfg *config.OSSConfig) enforce.Config {
	allowOverride := true
	if cfg.Enforcement.AllowBlockOverride != nil {
		allowOverride = *cfg.Enforcement.AllowBlockOverride
	}
	confirmTimeout, err := time.ParseDuration(cfg.Enforcement.ConfirmationTimeout)
	if err != nil || confirmTimeout <= 0 {
		confirmTimeout = 60 * time.Second
	}
	return enforce.Config{
		MinBlockSeverity:    enforce.ParseSeverity(cfg.Enforcement.MinBlockSeverity),
		AllowBlockOverride:  allowOverride,
		ConfirmationTimeout: confirmTimeout,
	}
}

// resolveWorkspaceRoot picks a single root out of the hook envelope: Claude
// Code supplies a single cwd, Cursor a list of workspace_roots.
func resolveWorkspaceRoot(in hookio.Input) string {
	if cwd := in.Cwd(); cwd != "" {
		return cwd
	}
	if roots := in.WorkspaceRoots(); len(roots) > 0 {
		return roots[0]
	}
	return ""
}

// buildEnvContext assembles the env_context shared by every inspected
// operation (§3), resolving app_uid via the identity store (C9).
func (d *hookDeps) buildEnvContext(in hookio.Input, client string) (policyclient.EnvContext, string) {
	root := resolveWorkspaceRoot(in)
	appUID, err := d.identity.Resolve(root)
	if err != nil {
		d.logger.Warn("failed to resolve app_uid", "error", err)
	}
	roots := in.WorkspaceRoots()
	if len(roots) == 0 && root != "" {
		roots = []string{root}
	}
	return policyclient.EnvContext{
		SessionID: in.SessionID(),
		Workspace: policyclient.Workspace{Roots: roots},
		Client:    client,
	}, appUID
}

// recordConfirmation satisfies enforce.Recorder, forwarding a dialog
// outcome to the policy service's /confirm endpoint (fire-and-forget,
// §4.2a) exactly as the wrapper pipeline does.
func (d *hookDeps) recordConfirmation(ctx context.Context, eventID, direction string, decision dialog.UserDecision, callType string) {
	d.policy.RecordUserConfirmation(ctx, policyclient.UserConfirmation{
		EventID:      eventID,
		Direction:    direction,
		UserDecision: decision,
		CallType:     callType,
	})
}

// denyReason renders an enforce.Enforce error into the single-line message
// a hook's JSON verdict carries. A nil err means allow; callers check that
// first.
func denyReason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
