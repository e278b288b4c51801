// Package hookio normalizes the stdin envelope and stdout verdict shapes
// shared by the Claude Code and Cursor IDE hook subprocesses (§6.3,
// SPEC_FULL.md §5.8). Each hook is a short-lived process: read one JSON
// object from stdin, produce one JSON verdict on stdout, exit.
package hookio

import (
	"encoding/json"
	"io"
)

// Input is the generically-decoded hook stdin payload. Claude Code and
// Cursor use different field names for the same concepts (hook_event_name
// vs hook, cwd vs workspace_roots), so callers read through the typed
// accessors below rather than indexing the map directly.
type Input map[string]interface{}

// ReadInput reads and JSON-decodes the hook's stdin payload. A read or
// parse failure is the "input validation error" of spec.md §7 item 1: the
// caller is expected to respond with a deny-shaped verdict and exit 1.
func ReadInput(r io.Reader) (Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	return in, nil
}

// String returns the string value at key, or "" if absent or not a string.
func (in Input) String(key string) string {
	v, ok := in[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// StringSlice returns a []string at key, tolerating the []interface{} shape
// a generic JSON decode produces.
func (in Input) StringSlice(key string) []string {
	v, ok := in[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Slice returns the raw []interface{} at key, or nil if absent or not an
// array -- used for Cursor's "attachments" list, whose elements are
// themselves objects.
func (in Input) Slice(key string) []interface{} {
	v, ok := in[key]
	if !ok {
		return nil
	}
	s, _ := v.([]interface{})
	return s
}

// Object returns the object value at key as a map, or nil if absent or not
// an object.
func (in Input) Object(key string) map[string]interface{} {
	v, ok := in[key]
	if !ok {
		return nil
	}
	m, _ := v.(map[string]interface{})
	return m
}

// Raw returns the raw JSON bytes at key, re-serialized, for callers that
// need json.RawMessage semantics (e.g. feeding tool_input straight through
// to another decoder).
func (in Input) Raw(key string) json.RawMessage {
	v, ok := in[key]
	if !ok {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// SessionID returns the session_id field common to both IDEs' envelopes.
func (in Input) SessionID() string { return in.String("session_id") }

// HookEventName returns the hook_event_name discriminator both Claude Code
// (SessionStart, UserPromptSubmit, PreToolUse) and Cursor (init,
// beforeSubmitPrompt, beforeMCPExecution, beforeReadFile,
// beforeShellExecution, afterShellExecution) send on every invocation --
// the two IDEs share the field name, with disjoint value sets.
func (in Input) HookEventName() string { return in.String("hook_event_name") }

// Cwd returns the single-root cwd field Claude Code's PreToolUse/Bash
// payload carries.
func (in Input) Cwd() string { return in.String("cwd") }

// WorkspaceRoots returns Cursor's multi-root workspace_roots field.
func (in Input) WorkspaceRoots() []string { return in.StringSlice("workspace_roots") }
