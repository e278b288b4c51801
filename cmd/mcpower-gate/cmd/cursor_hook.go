package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mcpower/mcpower-gate/internal/adapter/outbound/policyclient"
	"github.com/mcpower/mcpower-gate/internal/domain/action"
	"github.com/mcpower/mcpower-gate/internal/domain/dialog"
	"github.com/mcpower/mcpower-gate/internal/domain/enforce"
	"github.com/mcpower/mcpower-gate/internal/domain/hookio"
	"github.com/mcpower/mcpower-gate/internal/domain/redact"
	"github.com/mcpower/mcpower-gate/internal/domain/shellcmd"
)

// maxReadFileContentLength mirrors the original handler's size cutoff:
// content beyond this length skips the policy round trip entirely and is
// allowed, since a prompt-injection/redaction scan of a file this large is
// not worth the latency (§9 Open Question 1).
const maxReadFileContentLength = 100_000

// cursorDebugReadDisk is a debugging-only escape hatch: when set, a
// beforeReadFile call additionally logs the real on-disk content length for
// comparison against the IDE-supplied content. It never changes which
// content is inspected -- the content-trusting variant always wins.
var cursorDebugReadDisk bool

var cursorHookCmd = &cobra.Command{
	Use:           "cursor-hook",
	Short:         "Internal: answer a Cursor before*/after* hook call",
	Hidden:        true,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCursorHook,
}

func init() {
	cursorHookCmd.Flags().BoolVar(&cursorDebugReadDisk, "debug-read-disk", false, "debug only: also log the on-disk size of a beforeReadFile target")
	rootCmd.AddCommand(cursorHookCmd)
}

func runCursorHook(cmd *cobra.Command, args []string) error {
	in, err := hookio.ReadInput(os.Stdin)
	if err != nil {
		hookio.Debugf("cursor-hook: read/parse stdin failed: %v", err)
		_ = hookio.WriteCursorPermission(os.Stdout, false, "mcpower-gate: malformed hook input", "")
		os.Exit(1)
		return nil
	}

	deps, err := newHookDeps()
	if err != nil {
		hookio.Debugf("cursor-hook: failed to load config: %v", err)
		_ = hookio.WriteCursorPermission(os.Stdout, false, "mcpower-gate: internal error loading config", "")
		os.Exit(1)
		return nil
	}

	switch in.HookEventName() {
	case "init":
		return hookio.WriteCursorInit(os.Stdout, true, "mcpower-gate ready")
	case "beforeSubmitPrompt":
		return runCursorBeforeSubmitPrompt(deps, in)
	case "beforeMCPExecution":
		return runCursorBeforeMCPExecution(deps, in)
	case "beforeReadFile":
		return runCursorBeforeReadFile(deps, in)
	case "beforeShellExecution":
		return runCursorBeforeShellExecution(deps, in)
	case "afterShellExecution":
		return runCursorAfterShellExecution(deps, in)
	default:
		return hookio.WriteCursorPermission(os.Stdout, true, "", "")
	}
}

func runCursorBeforeSubmitPrompt(deps *hookDeps, in hookio.Input) error {
	prompt := in.String("prompt")
	envCtx, appUID := deps.buildEnvContext(in, "cursor")

	req := policyclient.PolicyRequest{
		EventID:      newHookEventID(),
		SessionID:    in.SessionID(),
		AppUID:       appUID,
		Server:       policyclient.ServerInfo{Name: "cursor", Transport: "ide-hook"},
		Tool:         policyclient.ToolRef{Name: "beforeSubmitPrompt", Method: "beforeSubmitPrompt"},
		AgentContext: policyclient.AgentContext{UserPrompt: prompt},
		EnvContext:   envCtx,
		Arguments:    redact.Redact(map[string]interface{}{"prompt": prompt, "attachments": in.Slice("attachments")}),
	}
	verdict := deps.policy.InspectRequest(context.Background(), req)
	opCtx := enforce.OperationContext{EventID: req.EventID, ToolName: req.Tool.Name, ServerName: req.Server.Name, IsRequest: true}
	err := enforce.Enforce(context.Background(), verdict, opCtx, deps.enforce, dialog.NewTimeoutDialog(), deps.recordConfirmation)
	return hookio.WriteCursorContinue(os.Stdout, err == nil)
}

func runCursorBeforeMCPExecution(deps *hookDeps, in hookio.Input) error {
	toolName := in.String("tool_name")

	// Cursor sends tool_input as a JSON-encoded string, not a nested object.
	var toolArgs map[string]interface{}
	if raw := in.String("tool_input"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &toolArgs)
	}

	envCtx, appUID := deps.buildEnvContext(in, "cursor")
	req := policyclient.PolicyRequest{
		EventID:    newHookEventID(),
		SessionID:  in.SessionID(),
		AppUID:     appUID,
		Server:     policyclient.ServerInfo{Name: "cursor", Transport: "ide-hook"},
		Tool:       policyclient.ToolRef{Name: toolName, Method: "beforeMCPExecution"},
		EnvContext: envCtx,
		Arguments:  redact.Redact(toolArgs),
	}
	verdict := deps.policy.InspectRequest(context.Background(), req)
	opCtx := enforce.OperationContext{EventID: req.EventID, ToolName: toolName, ServerName: req.Server.Name, IsRequest: true}
	err := enforce.Enforce(context.Background(), verdict, opCtx, deps.enforce, dialog.NewTimeoutDialog(), deps.recordConfirmation)
	return hookio.WriteCursorPermission(os.Stdout, err == nil, denyReason(err), "")
}

// runCursorBeforeReadFile implements the content-trusting variant (§9 Open
// Question 1): it inspects exactly the content Cursor hands it, never
// re-reading the file from disk, so a stale or swapped file on disk can
// never disagree with what the agent actually sees.
func runCursorBeforeReadFile(deps *hookDeps, in hookio.Input) error {
	filePath := in.String("file_path")
	content := in.String("content")

	if cursorDebugReadDisk {
		if stat, err := os.Stat(filePath); err == nil {
			hookio.Debugf("beforeReadFile debug: ide content=%d bytes, on-disk size=%d bytes", len(content), stat.Size())
		}
	}

	if len(content) > maxReadFileContentLength {
		hookio.Debugf("beforeReadFile: content %d bytes exceeds %d limit, allowing without inspection", len(content), maxReadFileContentLength)
		return hookio.WriteCursorPermission(os.Stdout, true, "", "")
	}

	envCtx, appUID := deps.buildEnvContext(in, "cursor")
	req := policyclient.PolicyRequest{
		EventID:    newHookEventID(),
		SessionID:  in.SessionID(),
		AppUID:     appUID,
		Server:     policyclient.ServerInfo{Name: "cursor", Transport: "ide-hook"},
		Tool:       policyclient.ToolRef{Name: "Read", Method: "beforeReadFile"},
		EnvContext: envCtx,
		Arguments:  redact.Redact(map[string]interface{}{"file_path": filePath, "content": content, "attachments": in.Slice("attachments")}),
	}
	verdict := deps.policy.InspectRequest(context.Background(), req)
	opCtx := enforce.OperationContext{EventID: req.EventID, ToolName: "Read", ServerName: req.Server.Name, IsRequest: true}
	err := enforce.Enforce(context.Background(), verdict, opCtx, deps.enforce, dialog.NewTimeoutDialog(), deps.recordConfirmation)
	return hookio.WriteCursorPermission(os.Stdout, err == nil, denyReason(err), "")
}

func runCursorBeforeShellExecution(deps *hookDeps, in hookio.Input) error {
	command := in.String("command")

	agentCtx := policyclient.AgentContext{}
	var inputFiles map[string]string
	if command != "" {
		parsed := shellcmd.Parse(command)
		agentCtx.SubCommands = parsed.SubCommands
		agentCtx.Packages = flattenPackages(parsed.Packages)
		inputFiles = readInputFiles(parsed.InputFiles, in.Cwd())
	}

	envCtx, appUID := deps.buildEnvContext(in, "cursor")
	req := policyclient.PolicyRequest{
		EventID:      newHookEventID(),
		SessionID:    in.SessionID(),
		AppUID:       appUID,
		Server:       policyclient.ServerInfo{Name: "cursor", Transport: "ide-hook"},
		Tool:         policyclient.ToolRef{Name: "Bash", Method: "beforeShellExecution"},
		AgentContext: agentCtx,
		EnvContext:   envCtx,
		Arguments:    redact.Redact(map[string]interface{}{"command": command, "input_files": inputFiles}),
	}
	verdict := deps.policy.InspectRequest(context.Background(), req)
	opCtx := enforce.OperationContext{EventID: req.EventID, ToolName: "Bash", ServerName: req.Server.Name, IsRequest: true}
	err := enforce.Enforce(context.Background(), verdict, opCtx, deps.enforce, dialog.NewTimeoutDialog(), deps.recordConfirmation)
	return hookio.WriteCursorPermission(os.Stdout, err == nil, denyReason(err), "")
}

// runCursorAfterShellExecution inspects a command's output the way the
// wrapper pipeline's response phase inspects an MCP tool result: a fresh
// synthetic operation (there is no earlier pending state to correlate
// against across separate hook subprocesses), scanned for injected
// instructions before the policy call (§6 supplemented feature).
func runCursorAfterShellExecution(deps *hookDeps, in hookio.Input) error {
	command := in.String("command")
	output := in.String("output")

	scan := responseScanner.Scan(output)
	var findings []string
	for _, f := range scan.Findings {
		findings = append(findings, f.PatternName)
	}

	envCtx, appUID := deps.buildEnvContext(in, "cursor")
	resp := policyclient.PolicyResponse{
		EventID:         newHookEventID(),
		SessionID:       in.SessionID(),
		AppUID:          appUID,
		Server:          policyclient.ServerInfo{Name: "cursor", Transport: "ide-hook"},
		Tool:            policyclient.ToolRef{Name: "Bash", Method: "afterShellExecution"},
		AgentContext:    policyclient.AgentContext{ScanFindings: findings},
		EnvContext:      envCtx,
		ResponseContent: redact.Redact(map[string]interface{}{"command": command, "output": output}),
	}
	verdict := deps.policy.InspectResponse(context.Background(), resp)
	opCtx := enforce.OperationContext{EventID: resp.EventID, ToolName: "Bash", ServerName: resp.Server.Name, IsRequest: false}
	err := enforce.Enforce(context.Background(), verdict, opCtx, deps.enforce, dialog.NewTimeoutDialog(), deps.recordConfirmation)
	return hookio.WriteCursorPermission(os.Stdout, err == nil, denyReason(err), "")
}

// responseScanner is shared with the wrapper pipeline's response phase
// (same detection patterns, same §6 supplemented feature).
var responseScanner = action.NewResponseScanner()

// readInputFiles best-effort reads and redacts each file a shell command
// names as an input, bounded and resolved against cwd. A missing or
// oversized file is skipped, never an error -- this is advisory context for
// the policy service, not something the command's success depends on.
func readInputFiles(paths []string, cwd string) map[string]string {
	if len(paths) == 0 {
		return nil
	}
	const maxFileBytes = 64 * 1024
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		path := p
		if cwd != "" && !filepath.IsAbs(path) {
			path = filepath.Join(cwd, path)
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.Size() > maxFileBytes {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		out[p] = redact.RedactString(string(data))
	}
	return out
}
