package wrapper

import (
	"context"
	"encoding/json"

	"github.com/mcpower/mcpower-gate/internal/adapter/outbound/policyclient"
	"github.com/mcpower/mcpower-gate/internal/domain/audit"
	"github.com/mcpower/mcpower-gate/internal/domain/dialog"
	"github.com/mcpower/mcpower-gate/pkg/mcp"
)

// storePending records the in-flight half of a correlated operation, keyed
// by the JSON-RPC id of the request that started it.
func (p *Pipeline) storePending(id string, op *pendingOperation) {
	if id == "" {
		return
	}
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	p.pending[id] = op
}

// takePending retrieves and removes the pending operation for id, if any.
func (p *Pipeline) takePending(id string) *pendingOperation {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	op := p.pending[id]
	delete(p.pending, id)
	return op
}

// markPromptSeen reports whether this is the first operation seen for
// promptID, and records it as seen either way (§4.3.1 step 3: "on first
// request of the prompt").
func (p *Pipeline) markPromptSeen(promptID string) bool {
	p.seenPromptMu.Lock()
	defer p.seenPromptMu.Unlock()
	if p.seenPrompt[promptID] {
		return false
	}
	p.seenPrompt[promptID] = true
	return true
}

// roots returns the currently known workspace roots, or nil when no
// RootsProvider was configured.
func (p *Pipeline) roots(ctx context.Context) []string {
	if p.cfg.RootsProvider == nil {
		return nil
	}
	return p.cfg.RootsProvider(ctx)
}

// resolveAppUID lazily resolves and caches the per-workspace app_uid (C9).
// Resolution happens once per Pipeline lifetime since a wrapper process is
// bound to a single workspace for its whole run.
func (p *Pipeline) resolveAppUID(ctx context.Context) string {
	p.appUIDOnce.Do(func() {
		if p.identity == nil {
			return
		}
		root := ""
		if roots := p.roots(ctx); len(roots) > 0 {
			root = roots[0]
		}
		p.appUID, p.appUIDErr = p.identity.Resolve(root)
		if p.appUIDErr != nil && p.logger != nil {
			p.logger.Warn("failed to resolve app_uid", "error", p.appUIDErr)
		}
	})
	return p.appUID
}

// emit appends an audit record, logging (never failing the pipeline) on
// error -- audit delivery is best-effort and must never block enforcement.
// ToolArguments passes through a second, keyword-based redaction pass
// (audit.RedactSensitiveArgs) on top of the C1 engine already applied
// upstream: C1 targets PII/secret-shaped values by pattern, this pass
// catches anything sitting under an unmistakably sensitive key that C1's
// detectors didn't happen to match.
func (p *Pipeline) emit(ctx context.Context, rec audit.AuditRecord) {
	if rec.ToolArguments != nil {
		rec.ToolArguments = audit.RedactSensitiveArgs(rec.ToolArguments)
	}
	if p.metrics != nil {
		p.metrics.OperationsTotal.WithLabelValues(rec.ToolName, string(rec.Kind)).Inc()
	}
	if p.auditLog == nil {
		return
	}
	if err := p.auditLog.Append(ctx, rec); err != nil && p.logger != nil {
		p.logger.Warn("audit append failed", "kind", rec.Kind, "error", err)
		if p.metrics != nil {
			p.metrics.AuditDropsTotal.Inc()
		}
	}
}

// recordDecision increments the policy_decisions_total counter, a no-op
// when no metrics sink is configured.
func (p *Pipeline) recordDecision(decision string) {
	if p.metrics != nil {
		p.metrics.PolicyDecisionsTotal.WithLabelValues(decision).Inc()
	}
}

// recordConfirmation adapts enforce.Recorder to the policy client's
// RecordUserConfirmation call, fire-and-forget per §4.2a.
func (p *Pipeline) recordConfirmation(ctx context.Context, eventID, direction string, decision dialog.UserDecision, callType string) {
	if p.policy == nil {
		return
	}
	p.policy.RecordUserConfirmation(ctx, policyclient.UserConfirmation{
		EventID:      eventID,
		Direction:    direction,
		UserDecision: decision,
		CallType:     callType,
	})
}

// extractOperationName returns the tool/resource/prompt identifier a
// request names, per method (§3 "tool_name"): the tool name for
// tools/call, the URI for resources/read, the prompt name for prompts/get,
// and the bare method name for the synthetic sampling/elicitation contexts.
func extractOperationName(method string, params map[string]interface{}) string {
	switch method {
	case methodToolsCall, methodPromptsGet:
		if name, ok := params["name"].(string); ok {
			return name
		}
	case methodResourcesRead:
		if uri, ok := params["uri"].(string); ok {
			return uri
		}
	}
	return method
}

// toArgsMap coerces an arbitrary redacted value into the map shape
// AuditRecord.ToolArguments and PolicyRequest/Response.Arguments expect.
// Non-object results (e.g. a bare string or array response body) are
// wrapped under a single "value" key so nothing is silently dropped.
func toArgsMap(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"value": v}
}

// withUserPromptOnFirst attaches the user's original prompt text to the
// audit arguments only on the first request of a prompt (§4.3.1 step 3),
// avoiding redundant repetition of the same prompt text across every tool
// call made in service of it.
func withUserPromptOnFirst(args map[string]interface{}, first bool, userPrompt string) map[string]interface{} {
	if !first || userPrompt == "" {
		return args
	}
	out := make(map[string]interface{}, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out["__user_prompt"] = userPrompt
	return out
}

// rewriteToolArguments replaces a tools/call request's "arguments" object
// with toolArgs (the wrapper-args-stripped form) and re-serializes the
// message's Raw bytes, leaving every other field of the envelope untouched.
func rewriteToolArguments(msg *mcp.Message, toolArgs map[string]interface{}) (*mcp.Message, error) {
	var envelope map[string]interface{}
	if err := json.Unmarshal(msg.Raw, &envelope); err != nil {
		return msg, nil
	}
	params, ok := envelope["params"].(map[string]interface{})
	if !ok {
		return msg, nil
	}
	params["arguments"] = toolArgs
	envelope["params"] = params

	raw, err := json.Marshal(envelope)
	if err != nil {
		return msg, nil
	}
	msg.Raw = raw
	return msg, nil
}

// rewriteResult replaces a response envelope's "result" field with newResult
// (already-marshaled JSON) and re-serializes msg.Raw.
func rewriteResult(msg *mcp.Message, newResult []byte) (*mcp.Message, error) {
	var envelope map[string]interface{}
	if err := json.Unmarshal(msg.Raw, &envelope); err != nil {
		return msg, nil
	}
	var resultVal interface{}
	if err := json.Unmarshal(newResult, &resultVal); err != nil {
		return msg, nil
	}
	envelope["result"] = resultVal

	raw, err := json.Marshal(envelope)
	if err != nil {
		return msg, nil
	}
	msg.Raw = raw
	return msg, nil
}
