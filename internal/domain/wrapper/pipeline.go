package wrapper

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mcpower/mcpower-gate/internal/adapter/outbound/policyclient"
	"github.com/mcpower/mcpower-gate/internal/domain/action"
	"github.com/mcpower/mcpower-gate/internal/domain/audit"
	"github.com/mcpower/mcpower-gate/internal/domain/enforce"
	"github.com/mcpower/mcpower-gate/internal/domain/proxy"
	"github.com/mcpower/mcpower-gate/internal/domain/redact"
	"github.com/mcpower/mcpower-gate/internal/telemetry"
	"github.com/mcpower/mcpower-gate/pkg/mcp"
)

// responseScanner is shared across every inspected response: its patterns
// are compiled once at package init, not per call (§6 supplemented feature:
// prompt-injection / response scanning, advisory only, never blocking on
// its own).
var responseScanner = action.NewResponseScanner()

// Method names routed by §4.3's table. Methods not listed here are
// forwarded untouched (resources/list, resources/templates/list,
// prompts/list, initialize, and anything this wrapper doesn't recognize).
const (
	methodToolsCall       = "tools/call"
	methodResourcesRead   = "resources/read"
	methodPromptsGet      = "prompts/get"
	methodToolsList       = "tools/list"
	methodSamplingCreate  = "sampling/create_message"
	methodElicitationReq  = "elicitation/request"
	methodLogNotification = "notifications/message"
)

// Compile-time check that Pipeline implements proxy.MessageInterceptor.
var _ proxy.MessageInterceptor = (*Pipeline)(nil)

// Intercept implements proxy.MessageInterceptor: every MCP message passes
// through here, routed per §4.3's table.
func (p *Pipeline) Intercept(ctx context.Context, msg *mcp.Message) (*mcp.Message, error) {
	if msg == nil || msg.Decoded == nil {
		return msg, nil
	}

	if msg.IsRequest() {
		return p.interceptRequest(ctx, msg)
	}
	if msg.IsResponse() {
		return p.interceptResponse(ctx, msg)
	}
	return msg, nil
}

func (p *Pipeline) interceptRequest(ctx context.Context, msg *mcp.Message) (*mcp.Message, error) {
	method := msg.Method()
	id := msg.IDKey()

	switch method {
	case methodToolsCall:
		return p.handleInspectedRequest(ctx, msg, method, "tool")
	case methodResourcesRead:
		return p.handleInspectedRequest(ctx, msg, method, "resource")
	case methodPromptsGet:
		return p.handleInspectedRequest(ctx, msg, method, "prompt")
	case methodSamplingCreate, methodElicitationReq:
		return p.handleInspectedRequest(ctx, msg, method, "synthetic")
	case methodToolsList:
		if id != "" {
			p.storePending(id, &pendingOperation{method: methodToolsList, startedAt: time.Now()})
		}
		return msg, nil
	case methodLogNotification:
		return p.handleLogNotification(ctx, msg)
	default:
		// resources/list, resources/templates/list, prompts/list, progress
		// notifications, initialize, etc: forwarded untouched.
		return msg, nil
	}
}

func (p *Pipeline) interceptResponse(ctx context.Context, msg *mcp.Message) (*mcp.Message, error) {
	id := msg.IDKey()
	if id == "" {
		return msg, nil
	}
	op := p.takePending(id)
	if op == nil {
		return msg, nil
	}
	if op.method == methodToolsList {
		return p.handleToolsListResponse(ctx, msg)
	}
	return p.handleInspectedResponse(ctx, msg, op)
}

// handleInspectedRequest implements §4.3.1 steps 1-7 for tools/call,
// resources/read, prompts/get, and the synthetic sampling/elicitation
// contexts.
func (p *Pipeline) handleInspectedRequest(ctx context.Context, msg *mcp.Message, method, operationType string) (*mcp.Message, error) {
	params := msg.ParseParams()
	if params == nil {
		params = map[string]interface{}{}
	}

	var toolArgs, wrapperArgs map[string]interface{}
	if method == methodToolsCall {
		rawArgs, _ := params["arguments"].(map[string]interface{})
		toolArgs, wrapperArgs = splitWrapperArgs(rawArgs)
	} else {
		toolArgs = params
		wrapperArgs = map[string]interface{}{}
	}
	msg.WrapperArgs = wrapperArgs

	toolName := extractOperationName(method, params)
	promptID := derivePromptID(stringField(wrapperArgs, fieldUserPromptID), p.cfg.SessionID)
	eventID := newEventID()
	msg.EventID = eventID

	ctx, span := telemetry.StartOperationSpan(ctx, eventID, method)

	redactedArgs := toArgsMap(redact.Redact(toolArgs))

	firstOfPrompt := p.markPromptSeen(promptID)
	p.emit(ctx, audit.AuditRecord{
		Timestamp:     time.Now(),
		Kind:          audit.KindAgentRequest,
		EventID:       eventID,
		PromptID:      promptID,
		AppUID:        p.resolveAppUID(ctx),
		ServerName:    p.cfg.Server.Name,
		SessionID:     p.cfg.SessionID,
		ToolName:      toolName,
		ToolArguments: withUserPromptOnFirst(redactedArgs, firstOfPrompt, stringField(wrapperArgs, fieldUserPrompt)),
		Protocol:      "mcp",
	})

	agentCtx := buildAgentContext(wrapperArgs)
	envCtx := policyclient.EnvContext{
		SessionID: p.cfg.SessionID,
		Workspace: policyclient.Workspace{
			Roots:        p.roots(ctx),
			CurrentFiles: currentFiles(wrapperArgs),
		},
	}

	verdict := p.policy.InspectRequest(ctx, policyclient.PolicyRequest{
		EventID:      eventID,
		PromptID:     promptID,
		SessionID:    p.cfg.SessionID,
		AppUID:       p.resolveAppUID(ctx),
		Server:       policyclient.ServerInfo{Name: p.cfg.Server.Name, Transport: p.cfg.Server.Transport},
		Tool:         policyclient.ToolRef{Name: toolName, Method: method},
		AgentContext: agentCtx,
		EnvContext:   envCtx,
		Arguments:    redactedArgs,
	})

	opCtx := enforce.OperationContext{
		EventID:    eventID,
		PromptID:   promptID,
		ToolName:   toolName,
		ServerName: p.cfg.Server.Name,
		IsRequest:  true,
	}
	if err := enforce.Enforce(ctx, verdict, opCtx, p.cfg.Enforcement, p.dlg, p.recordConfirmation); err != nil {
		p.recordDecision("block")
		telemetry.EndOperationSpan(span, "block")
		return nil, err
	}

	p.emit(ctx, audit.AuditRecord{
		Timestamp:  time.Now(),
		Kind:       audit.KindAgentRequestForwarded,
		EventID:    eventID,
		PromptID:   promptID,
		AppUID:     p.resolveAppUID(ctx),
		ServerName: p.cfg.Server.Name,
		SessionID:  p.cfg.SessionID,
		ToolName:   toolName,
		Protocol:   "mcp",
	})

	p.storePending(msg.IDKey(), &pendingOperation{
		method:        method,
		operationType: operationType,
		eventID:       eventID,
		promptID:      promptID,
		toolName:      toolName,
		agentContext:  agentCtx,
		envContext:    envCtx,
		startedAt:     time.Now(),
		span:          span,
	})

	if method == methodToolsCall && len(wrapperArgs) > 0 {
		return rewriteToolArguments(msg, toolArgs)
	}
	return msg, nil
}

// handleInspectedResponse implements §4.3.1 steps 8-11.
func (p *Pipeline) handleInspectedResponse(ctx context.Context, msg *mcp.Message, op *pendingOperation) (*mcp.Message, error) {
	resp := msg.Response()
	var result interface{}
	if resp != nil && len(resp.Result) > 0 {
		_ = json.Unmarshal(resp.Result, &result)
	}
	redactedResult := redact.Redact(result)

	if scan := responseScanner.ScanJSON(result); scan.Detected {
		names := make([]string, 0, len(scan.Findings))
		for _, f := range scan.Findings {
			names = append(names, f.PatternName)
		}
		op.agentContext.ScanFindings = names
	}

	p.emit(ctx, audit.AuditRecord{
		Timestamp:     time.Now(),
		Kind:          audit.KindMCPResponse,
		EventID:       op.eventID,
		PromptID:      op.promptID,
		AppUID:        p.resolveAppUID(ctx),
		ServerName:    p.cfg.Server.Name,
		SessionID:     p.cfg.SessionID,
		ToolName:      op.toolName,
		ToolArguments: toArgsMap(redactedResult),
		Protocol:      "mcp",
	})

	verdict := p.policy.InspectResponse(ctx, policyclient.PolicyResponse{
		EventID:         op.eventID,
		PromptID:        op.promptID,
		SessionID:       p.cfg.SessionID,
		AppUID:          p.resolveAppUID(ctx),
		Server:          policyclient.ServerInfo{Name: p.cfg.Server.Name, Transport: p.cfg.Server.Transport},
		Tool:            policyclient.ToolRef{Name: op.toolName, Method: op.method},
		AgentContext:    op.agentContext,
		EnvContext:      op.envContext,
		ResponseContent: redactedResult,
	})

	opCtx := enforce.OperationContext{
		EventID:    op.eventID,
		PromptID:   op.promptID,
		ToolName:   op.toolName,
		ServerName: p.cfg.Server.Name,
		IsRequest:  false,
	}
	if err := enforce.Enforce(ctx, verdict, opCtx, p.cfg.Enforcement, p.dlg, p.recordConfirmation); err != nil {
		p.recordDecision("block")
		telemetry.EndOperationSpan(op.span, "block")
		// The response is suppressed (§4.3.1 step 10): replace it with a
		// protocol error carrying the same id instead of forwarding the
		// wrapped server's result to the client.
		errBytes := proxy.CreateJSONRPCError(msg.RawID(), -32600, proxy.SafeErrorMessage(err))
		return &mcp.Message{
			Raw:       errBytes,
			Direction: msg.Direction,
			Timestamp: time.Now(),
			EventID:   op.eventID,
		}, nil
	}

	p.emit(ctx, audit.AuditRecord{
		Timestamp:  time.Now(),
		Kind:       audit.KindMCPResponseForwarded,
		EventID:    op.eventID,
		PromptID:   op.promptID,
		AppUID:     p.resolveAppUID(ctx),
		ServerName: p.cfg.Server.Name,
		SessionID:  p.cfg.SessionID,
		ToolName:   op.toolName,
		Protocol:   "mcp",
	})

	p.recordDecision("allow")
	telemetry.EndOperationSpan(op.span, "allow")
	return msg, nil
}

// handleToolsListResponse implements the tools/list special case: forward
// (already happened, this is the response), inject schema fields (C10),
// then fire the debounced init_tools call (§4.3.3).
func (p *Pipeline) handleToolsListResponse(ctx context.Context, msg *mcp.Message) (*mcp.Message, error) {
	resp := msg.Response()
	if resp == nil || len(resp.Result) == 0 {
		return msg, nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return msg, nil
	}

	toolsRaw, _ := result["tools"].([]interface{})
	tools := make([]policyclient.ToolInfo, 0, len(toolsRaw))
	for _, t := range toolsRaw {
		toolObj, ok := t.(map[string]interface{})
		if !ok {
			continue
		}
		if schema, ok := toolObj["inputSchema"].(map[string]interface{}); ok {
			toolObj["inputSchema"] = AugmentToolSchema(schema)
		}
		name, _ := toolObj["name"].(string)
		desc, _ := toolObj["description"].(string)
		tools = append(tools, policyclient.ToolInfo{Name: name, Description: desc})
	}
	result["tools"] = toolsRaw

	newResult, err := json.Marshal(result)
	if err != nil {
		return msg, nil
	}

	p.policy.InitTools(ctx, policyclient.InitRequest{
		SessionID: p.cfg.SessionID,
		AppUID:    p.resolveAppUID(ctx),
		Server:    policyclient.ServerInfo{Name: p.cfg.Server.Name, Transport: p.cfg.Server.Transport},
		Tools:     tools,
	})

	return rewriteResult(msg, newResult)
}

// handleLogNotification applies redaction and an audit pass to a log
// notification with no response phase and no enforcement dialog: there is
// no request to deny and no caller waiting on a verdict, only a record
// that the event happened (§4.3 "sampling/..., elicitation/..., and log
// notifications [get a] pipeline with synthetic contexts").
func (p *Pipeline) handleLogNotification(ctx context.Context, msg *mcp.Message) (*mcp.Message, error) {
	params := msg.ParseParams()
	redacted := toArgsMap(redact.Redact(params))
	p.emit(ctx, audit.AuditRecord{
		Timestamp:     time.Now(),
		Kind:          audit.KindMCPResponse,
		EventID:       newEventID(),
		PromptID:      derivePromptID("", p.cfg.SessionID),
		AppUID:        p.resolveAppUID(ctx),
		ServerName:    p.cfg.Server.Name,
		SessionID:     p.cfg.SessionID,
		ToolName:      methodLogNotification,
		ToolArguments: redacted,
		Protocol:      "mcp",
	})
	return msg, nil
}

