package hookio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// claudePermission is the exact shape spec.md §6.3 requires for a Claude
// Code permission verdict.
type claudePermission struct {
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
}

// WriteClaudePermission emits a PreToolUse permission verdict.
func WriteClaudePermission(w io.Writer, allow bool, reason string) error {
	decision := "allow"
	if !allow {
		decision = "deny"
	}
	return json.NewEncoder(w).Encode(claudePermission{
		PermissionDecision:       decision,
		PermissionDecisionReason: reason,
	})
}

// claudePromptSubmit is the UserPromptSubmit verdict shape: "{}" to allow,
// or {"decision":"block","reason":...} to block.
type claudePromptSubmit struct {
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// WriteClaudeUserPromptSubmit emits a UserPromptSubmit verdict.
func WriteClaudeUserPromptSubmit(w io.Writer, block bool, reason string) error {
	if !block {
		_, err := w.Write([]byte("{}\n"))
		return err
	}
	return json.NewEncoder(w).Encode(claudePromptSubmit{Decision: "block", Reason: reason})
}

// cursorPermission is the {"permission", "user_message", "agent_message"}
// shape Cursor's permission-style hooks expect.
type cursorPermission struct {
	Permission   string `json:"permission"`
	UserMessage  string `json:"user_message,omitempty"`
	AgentMessage string `json:"agent_message,omitempty"`
}

// WriteCursorPermission emits a permission-style Cursor hook verdict
// (beforeMCPExecution, beforeReadFile, beforeShellExecution).
func WriteCursorPermission(w io.Writer, allow bool, userMessage, agentMessage string) error {
	permission := "allow"
	if !allow {
		permission = "deny"
	}
	return json.NewEncoder(w).Encode(cursorPermission{
		Permission:   permission,
		UserMessage:  userMessage,
		AgentMessage: agentMessage,
	})
}

// cursorContinue is the {"continue": bool} shape beforeSubmitPrompt expects.
type cursorContinue struct {
	Continue bool `json:"continue"`
}

// WriteCursorContinue emits a beforeSubmitPrompt verdict.
func WriteCursorContinue(w io.Writer, cont bool) error {
	return json.NewEncoder(w).Encode(cursorContinue{Continue: cont})
}

// cursorInit is the {"success", "message"} shape the Cursor "init" event
// expects, distinct from the permission/continue shapes every other Cursor
// hook uses.
type cursorInit struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteCursorInit emits the init handshake verdict.
func WriteCursorInit(w io.Writer, success bool, message string) error {
	return json.NewEncoder(w).Encode(cursorInit{Success: success, Message: message})
}

// Debugf writes a debug log line to stderr when MCPOWER_DEBUG=1 (§6.5),
// never to stdout, since stdout is reserved for the single JSON verdict a
// hook process emits.
func Debugf(format string, args ...interface{}) {
	if os.Getenv("MCPOWER_DEBUG") != "1" {
		return
	}
	fmt.Fprintf(os.Stderr, "[mcpower-gate-hook] "+format+"\n", args...)
}
