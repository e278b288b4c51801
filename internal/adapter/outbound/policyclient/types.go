// Package policyclient implements the outbound HTTP client for the three
// policy-service endpoints of §4.2a/§6.2: init_tools, inspect_policy_request,
// inspect_policy_response, and record_user_confirmation.
package policyclient

import "github.com/mcpower/mcpower-gate/internal/domain/dialog"

// EnvContext mirrors §3's env_context: session/workspace/client identity
// attached to every policy request and response.
type EnvContext struct {
	SessionID     string      `json:"session_id"`
	Workspace     Workspace   `json:"workspace"`
	Client        string      `json:"client,omitempty"`
	ClientVersion string      `json:"client_version,omitempty"`
}

// Workspace carries the discovered roots (§4.3.4) and the agent's advertised
// current-files context.
type Workspace struct {
	Roots        []string `json:"roots,omitempty"`
	CurrentFiles []string `json:"current_files,omitempty"`
}

// AgentContext is the six wrapper advisory fields (§3), forwarded verbatim
// to the policy service as agent_context.
type AgentContext struct {
	UserPrompt           string `json:"userPrompt,omitempty"`
	UserPromptID         string `json:"userPromptId,omitempty"`
	ContextSummary       string `json:"contextSummary,omitempty"`
	ModelIntent          string `json:"modelIntent,omitempty"`
	ModelPlan            string `json:"modelPlan,omitempty"`
	ModelExpectedOutputs string `json:"modelExpectedOutputs,omitempty"`
	// ScanFindings carries advisory prompt-injection/response-scan pattern
	// names attached to a response's agent_context before inspect_policy_response
	// (§6 supplemented feature). Always empty on the request half.
	ScanFindings []string `json:"scan_findings,omitempty"`
	// SubCommands and Packages carry the IDE hook's shellcmd.Parse output
	// for a Bash PreToolUse call (§6 supplemented feature / SPEC_FULL.md
	// §5.8): the command's constituent sub-commands and any package-manager
	// install targets it names, so the policy service can reason about a
	// compound shell pipeline without re-parsing it.
	SubCommands []string `json:"sub_commands,omitempty"`
	Packages    []string `json:"packages,omitempty"`
}

// ServerInfo identifies the wrapped MCP server.
type ServerInfo struct {
	Name      string `json:"name"`
	Transport string `json:"transport"`
}

// ToolInfo is a wrapped tool's identity as registered with init_tools.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ToolRef identifies the tool/resource/prompt under inspection.
type ToolRef struct {
	Name   string `json:"name"`
	Method string `json:"method"`
}

// InitRequest is the body of POST /init, sent at most once per 60s per
// process (§4.3.3).
type InitRequest struct {
	SessionID   string            `json:"session_id"`
	AppUID      string            `json:"app_uid"`
	Environment map[string]string `json:"environment,omitempty"`
	Server      ServerInfo        `json:"server"`
	Tools       []ToolInfo        `json:"tools"`
}

// PolicyRequest is the body of POST /inspect/request.
type PolicyRequest struct {
	EventID      string       `json:"event_id"`
	PromptID     string       `json:"prompt_id,omitempty"`
	SessionID    string       `json:"session_id"`
	AppUID       string       `json:"app_uid"`
	Server       ServerInfo   `json:"server"`
	Tool         ToolRef      `json:"tool"`
	AgentContext AgentContext `json:"agent_context"`
	EnvContext   EnvContext   `json:"env_context"`
	Arguments    interface{}  `json:"arguments"`
}

// PolicyResponse is the body of POST /inspect/response.
type PolicyResponse struct {
	EventID         string       `json:"event_id"`
	PromptID        string       `json:"prompt_id,omitempty"`
	SessionID       string       `json:"session_id"`
	AppUID          string       `json:"app_uid"`
	Server          ServerInfo   `json:"server"`
	Tool            ToolRef      `json:"tool"`
	AgentContext    AgentContext `json:"agent_context"`
	EnvContext      EnvContext   `json:"env_context"`
	ResponseContent interface{}  `json:"response_content"`
}

// UserConfirmation is the body of POST /confirm.
type UserConfirmation struct {
	EventID      string               `json:"event_id"`
	Direction    string               `json:"direction"`
	UserDecision dialog.UserDecision  `json:"user_decision"`
	CallType     string               `json:"call_type,omitempty"`
}

// verdictWire is the over-the-wire shape of a PolicyVerdict response.
type verdictWire struct {
	Decision   string   `json:"decision"`
	Severity   string   `json:"severity"`
	Reasons    []string `json:"reasons"`
	NeedFields []string `json:"need_fields"`
	CallType   string   `json:"call_type"`
}
