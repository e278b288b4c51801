package wrapper

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mcpower/mcpower-gate/internal/adapter/outbound/policyclient"
	"github.com/mcpower/mcpower-gate/internal/domain/audit"
	"github.com/mcpower/mcpower-gate/internal/domain/dialog"
	"github.com/mcpower/mcpower-gate/internal/domain/enforce"
	"github.com/mcpower/mcpower-gate/pkg/mcp"
)

type fakePolicyClient struct {
	requestVerdict  enforce.Verdict
	responseVerdict enforce.Verdict
	lastRequest     policyclient.PolicyRequest
	lastResponse    policyclient.PolicyResponse
	initRequests    []policyclient.InitRequest
}

func (f *fakePolicyClient) InitTools(_ context.Context, req policyclient.InitRequest) {
	f.initRequests = append(f.initRequests, req)
}

func (f *fakePolicyClient) InspectRequest(_ context.Context, req policyclient.PolicyRequest) enforce.Verdict {
	f.lastRequest = req
	return f.requestVerdict
}

func (f *fakePolicyClient) InspectResponse(_ context.Context, req policyclient.PolicyResponse) enforce.Verdict {
	f.lastResponse = req
	return f.responseVerdict
}

func (f *fakePolicyClient) RecordUserConfirmation(_ context.Context, _ policyclient.UserConfirmation) {}

type fakeIdentity struct{ uid string }

func (f fakeIdentity) Resolve(string) (string, error) { return f.uid, nil }

type fakeAuditStore struct {
	records []audit.AuditRecord
}

func (f *fakeAuditStore) Append(_ context.Context, records ...audit.AuditRecord) error {
	f.records = append(f.records, records...)
	return nil
}
func (f *fakeAuditStore) Flush(context.Context) error { return nil }
func (f *fakeAuditStore) Close() error                { return nil }

func newTestPipeline(reqVerdict, respVerdict enforce.Verdict) (*Pipeline, *fakePolicyClient, *fakeAuditStore) {
	pc := &fakePolicyClient{requestVerdict: reqVerdict, responseVerdict: respVerdict}
	as := &fakeAuditStore{}
	p := New(pc, fakeIdentity{uid: "app-uid-1"}, as, dialog.NewTimeoutDialog(), Config{
		Server:      ServerIdentity{Name: "test-server", Transport: "stdio"},
		SessionID:   "session-123",
		Enforcement: enforce.Config{MinBlockSeverity: enforce.SeverityLow, AllowBlockOverride: true},
	}, nil)
	return p, pc, as
}

func toolCallRequest(t *testing.T, id int, toolName string, args map[string]interface{}) *mcp.Message {
	t.Helper()
	raw, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  methodToolsCall,
		"params": map[string]interface{}{
			"name":      toolName,
			"arguments": args,
		},
	})
	msg, err := mcp.WrapMessage(raw, mcp.ClientToServer)
	if err != nil {
		t.Fatalf("failed to build test request: %v", err)
	}
	return msg
}

func toolCallResponse(t *testing.T, id int, result map[string]interface{}) *mcp.Message {
	t.Helper()
	raw, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
	msg, err := mcp.WrapMessage(raw, mcp.ServerToClient)
	if err != nil {
		t.Fatalf("failed to build test response: %v", err)
	}
	return msg
}

// TestPipeline_AllowRoundTrip exercises a full tools/call request/response
// pair where the policy service allows both halves: the request's wrapper
// args are stripped before forwarding and both phases appear in the audit
// trail in order.
func TestPipeline_AllowRoundTrip(t *testing.T) {
	p, pc, as := newTestPipeline(
		enforce.Verdict{Decision: enforce.DecisionAllow},
		enforce.Verdict{Decision: enforce.DecisionAllow},
	)

	req := toolCallRequest(t, 1, "read_file", map[string]interface{}{
		"path":                  "/tmp/a.txt",
		"__wrapper_userPrompt":  "please read this file",
		"__wrapper_modelIntent": "inspect the file",
	})

	out, err := p.Intercept(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error on request: %v", err)
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(out.Raw, &envelope); err != nil {
		t.Fatalf("rewritten request did not serialize as JSON: %v", err)
	}
	params := envelope["params"].(map[string]interface{})
	forwardedArgs := params["arguments"].(map[string]interface{})
	if _, hasWrapper := forwardedArgs["__wrapper_userPrompt"]; hasWrapper {
		t.Fatal("expected __wrapper_userPrompt to be stripped before forwarding")
	}
	if forwardedArgs["path"] != "/tmp/a.txt" {
		t.Fatalf("expected tool argument to survive stripping, got %v", forwardedArgs)
	}

	if pc.lastRequest.AgentContext.UserPrompt != "please read this file" {
		t.Fatalf("expected agent context to carry user prompt, got %+v", pc.lastRequest.AgentContext)
	}
	if pc.lastRequest.AppUID != "app-uid-1" {
		t.Fatalf("expected resolved app_uid on request, got %q", pc.lastRequest.AppUID)
	}

	resp := toolCallResponse(t, 1, map[string]interface{}{"content": "file contents"})
	outResp, err := p.Intercept(context.Background(), resp)
	if err != nil {
		t.Fatalf("unexpected error on response: %v", err)
	}
	if string(outResp.Raw) != string(resp.Raw) {
		t.Fatalf("expected response passthrough unchanged on allow, got %s", outResp.Raw)
	}

	if pc.lastResponse.Tool.Name != "read_file" {
		t.Fatalf("expected response inspection correlated to tool name, got %+v", pc.lastResponse.Tool)
	}

	var kinds []string
	for _, rec := range as.records {
		kinds = append(kinds, rec.Kind)
	}
	want := []string{audit.KindAgentRequest, audit.KindAgentRequestForwarded, audit.KindMCPResponse, audit.KindMCPResponseForwarded}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d audit records, got %d: %v", len(want), len(kinds), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("audit record %d: expected kind %s, got %s", i, want[i], kinds[i])
		}
	}
}

// TestPipeline_RequestBlocked verifies a blocked request never reaches the
// wrapped server: Intercept returns an error instead of a forwardable
// message, and no pending correlation state is left behind.
func TestPipeline_RequestBlocked(t *testing.T) {
	p, _, as := newTestPipeline(
		enforce.Verdict{Decision: enforce.DecisionBlock, Severity: enforce.SeverityCritical},
		enforce.Verdict{Decision: enforce.DecisionAllow},
	)

	req := toolCallRequest(t, 7, "delete_repo", map[string]interface{}{"path": "/"})
	_, err := p.Intercept(context.Background(), req)
	if err == nil {
		t.Fatal("expected blocked request to return an error")
	}

	if len(p.pending) != 0 {
		t.Fatalf("expected no pending operation left after a blocked request, got %d", len(p.pending))
	}

	foundForwarded := false
	for _, rec := range as.records {
		if rec.Kind == audit.KindAgentRequestForwarded {
			foundForwarded = true
		}
	}
	if foundForwarded {
		t.Fatal("a blocked request must not emit an agent_request_forwarded audit record")
	}
}

// TestPipeline_ResponseBlockedReplacesResult verifies a denied response
// phase replaces the forwarded message with a JSON-RPC error carrying the
// original request id, rather than leaking the tool's result.
func TestPipeline_ResponseBlockedReplacesResult(t *testing.T) {
	p, _, _ := newTestPipeline(
		enforce.Verdict{Decision: enforce.DecisionAllow},
		enforce.Verdict{Decision: enforce.DecisionBlock, Severity: enforce.SeverityCritical},
	)

	req := toolCallRequest(t, 42, "run_query", map[string]interface{}{"sql": "select 1"})
	if _, err := p.Intercept(context.Background(), req); err != nil {
		t.Fatalf("unexpected error on request: %v", err)
	}

	resp := toolCallResponse(t, 42, map[string]interface{}{"rows": []interface{}{"secret row"}})
	out, err := p.Intercept(context.Background(), resp)
	if err != nil {
		t.Fatalf("response suppression must not return a Go error: %v", err)
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(out.Raw, &envelope); err != nil {
		t.Fatalf("suppressed response is not valid JSON: %v", err)
	}
	if _, hasResult := envelope["result"]; hasResult {
		t.Fatal("suppressed response must not carry the original result")
	}
	if _, hasError := envelope["error"]; !hasError {
		t.Fatal("suppressed response must carry a JSON-RPC error")
	}
	if id, ok := envelope["id"].(float64); !ok || int(id) != 42 {
		t.Fatalf("suppressed response must preserve the original request id, got %v", envelope["id"])
	}
}

// TestPipeline_PassthroughUnknownMethod verifies methods outside the
// routing table (e.g. resources/list) are forwarded untouched with no
// policy inspection and no pending state.
func TestPipeline_PassthroughUnknownMethod(t *testing.T) {
	p, pc, as := newTestPipeline(enforce.Verdict{Decision: enforce.DecisionAllow}, enforce.Verdict{Decision: enforce.DecisionAllow})

	raw, _ := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": 9, "method": "resources/list"})
	msg, err := mcp.WrapMessage(raw, mcp.ClientToServer)
	if err != nil {
		t.Fatalf("failed to build test message: %v", err)
	}

	out, err := p.Intercept(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out.Raw) != string(raw) {
		t.Fatal("expected untouched passthrough for resources/list")
	}
	if len(pc.initRequests) != 0 || len(as.records) != 0 {
		t.Fatal("expected no policy or audit side effects for an unrouted method")
	}
}

// TestAugmentToolSchema_Idempotent is testable property 9: re-running the
// augmentation on an already-augmented schema changes nothing.
func TestAugmentToolSchema_Idempotent(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"path"},
	}

	first := AugmentToolSchema(schema)
	props := first["properties"].(map[string]interface{})
	if len(props) != 8 {
		t.Fatalf("expected 7 wrapper properties + 1 original, got %d", len(props))
	}

	second := AugmentToolSchema(first)
	secondProps := second["properties"].(map[string]interface{})
	if len(secondProps) != len(props) {
		t.Fatalf("re-augmenting changed property count: %d vs %d", len(secondProps), len(props))
	}

	required := second["required"].([]interface{})
	if len(required) != 1 || required[0] != "path" {
		t.Fatalf("expected required to be left untouched, got %v", required)
	}
}

// TestAugmentToolSchema_NilPropertiesDefaultsToObject covers a tool schema
// that declares no properties at all.
func TestAugmentToolSchema_NilPropertiesDefaultsToObject(t *testing.T) {
	schema := map[string]interface{}{}
	out := AugmentToolSchema(schema)
	if out["type"] != "object" {
		t.Fatalf("expected type to default to object, got %v", out["type"])
	}
	props, ok := out["properties"].(map[string]interface{})
	if !ok || len(props) != 7 {
		t.Fatalf("expected exactly the 7 wrapper properties, got %v", props)
	}
	if _, hasRequired := out["required"]; hasRequired {
		t.Fatal("augmentation must not introduce a required array where none existed")
	}
}

func TestSplitWrapperArgs(t *testing.T) {
	toolArgs, wrapperArgs := splitWrapperArgs(map[string]interface{}{
		"path":                 "/tmp/a",
		"__wrapper_userPrompt": "do the thing",
		"__wrapper_modelPlan":  "step 1",
	})
	if len(toolArgs) != 1 || toolArgs["path"] != "/tmp/a" {
		t.Fatalf("expected only tool args to remain, got %v", toolArgs)
	}
	if wrapperArgs["userPrompt"] != "do the thing" || wrapperArgs["modelPlan"] != "step 1" {
		t.Fatalf("expected wrapper args unprefixed, got %v", wrapperArgs)
	}
}

func TestDerivePromptID_FallsBackToSessionPrefix(t *testing.T) {
	if got := derivePromptID("", "session-abcdefgh-1234"); got != "session-" {
		t.Fatalf("expected 8-char session prefix fallback, got %q", got)
	}
	if got := derivePromptID("explicit-id", "session-abcdefgh"); got != "explicit-id" {
		t.Fatalf("expected explicit wrapper prompt id to win, got %q", got)
	}
}

func TestDecodeFileRootURI(t *testing.T) {
	got := DecodeFileRootURI("file:///home/user/my%20project")
	if got != "/home/user/my project" {
		t.Fatalf("expected decoded absolute path, got %q", got)
	}
}
