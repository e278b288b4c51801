// Package wrapper implements the MCP wrapper middleware (C7): the
// request->inspect->forward->response->inspect->return pipeline of
// spec.md §4.3, built on top of the redaction (C1), policy-client (C3),
// decision-enforcement (C4) and audit (C6) packages. Pipeline implements
// proxy.MessageInterceptor so it drops straight into the stdio transport's
// existing copy loop.
package wrapper

import (
	"context"
	"sync"
	"time"

	"github.com/mcpower/mcpower-gate/internal/adapter/outbound/policyclient"
	"github.com/mcpower/mcpower-gate/internal/domain/audit"
	"github.com/mcpower/mcpower-gate/internal/domain/dialog"
	"github.com/mcpower/mcpower-gate/internal/domain/enforce"
	"github.com/mcpower/mcpower-gate/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// PolicyClient is the subset of policyclient.Client the pipeline depends
// on, kept as an interface so tests can substitute a fake.
type PolicyClient interface {
	InitTools(ctx context.Context, req policyclient.InitRequest)
	InspectRequest(ctx context.Context, req policyclient.PolicyRequest) enforce.Verdict
	InspectResponse(ctx context.Context, req policyclient.PolicyResponse) enforce.Verdict
	RecordUserConfirmation(ctx context.Context, confirmation policyclient.UserConfirmation)
}

// IdentityResolver resolves the per-workspace app_uid (C9).
type IdentityResolver interface {
	Resolve(workspaceRoot string) (string, error)
}

// ServerIdentity describes the wrapped MCP server for PolicyRequest/Response
// bodies and for init_tools registration.
type ServerIdentity struct {
	Name      string
	Transport string
}

// ClientIdentity describes the MCP client driving this proxy instance, when
// known (populated from the initialize request).
type ClientIdentity struct {
	Name    string
	Version string
}

// Config bundles everything the pipeline needs beyond the collaborating
// interfaces: identity, enforcement knobs, and the workspace-root source.
type Config struct {
	Server       ServerIdentity
	SessionID    string
	Enforcement  enforce.Config
	// RootsProvider returns the currently known workspace roots (§4.3.4).
	// A nil provider means "no roots known"; callers typically wire this
	// to a static, process-startup-time resolution (see roots.go) since a
	// true roots/list round trip requires an outbound-to-client request
	// channel the stdio transport does not expose (see DESIGN.md).
	RootsProvider func(ctx context.Context) []string
}

// Pipeline is the C7 operation pipeline plus C10 schema augmentation,
// implemented as a proxy.MessageInterceptor.
type Pipeline struct {
	logger Logger

	policy   PolicyClient
	identity IdentityResolver
	auditLog audit.AuditStore
	dlg      dialog.Dialog
	metrics  *telemetry.Metrics

	cfg Config

	appUIDOnce sync.Once
	appUID     string
	appUIDErr  error

	pendingMu sync.Mutex
	pending   map[string]*pendingOperation

	// firstRequestOfPrompt tracks, per prompt id, whether agent_request has
	// already carried the user_prompt field once (§4.3.1 step 3: "on first
	// request of the prompt").
	seenPromptMu sync.Mutex
	seenPrompt   map[string]bool
}

// Logger is the minimal logging surface the pipeline needs, satisfied by
// *slog.Logger.
type Logger interface {
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// pendingOperation is the state carried from the request half of an
// inspected operation to its response half, keyed by JSON-RPC id.
type pendingOperation struct {
	method        string
	operationType string
	eventID       string
	promptID      string
	toolName      string
	agentContext  policyclient.AgentContext
	envContext    policyclient.EnvContext
	startedAt     time.Time
	span          trace.Span
}

// New builds a Pipeline from its collaborators.
func New(policy PolicyClient, identity IdentityResolver, auditLog audit.AuditStore, dlg dialog.Dialog, cfg Config, logger Logger) *Pipeline {
	if dlg == nil {
		dlg = dialog.NewTimeoutDialog()
	}
	return &Pipeline{
		logger:     logger,
		policy:     policy,
		identity:   identity,
		auditLog:   auditLog,
		dlg:        dialog.NewSerialized(dlg),
		cfg:        cfg,
		pending:    make(map[string]*pendingOperation),
		seenPrompt: make(map[string]bool),
	}
}

// WithMetrics attaches a Prometheus metrics sink, returning p for chaining.
// Optional: a Pipeline built without it simply skips metric recording.
func (p *Pipeline) WithMetrics(m *telemetry.Metrics) *Pipeline {
	p.metrics = m
	return p
}
