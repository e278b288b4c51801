package wrapper

import (
	"strings"

	"github.com/mcpower/mcpower-gate/internal/adapter/outbound/policyclient"
)

// wrapperPrefix is the fixed prefix for the six advisory string fields plus
// currentFiles (§3 "Wrapper advisory arguments").
const wrapperPrefix = "__wrapper_"

// Advisory field names, unprefixed, as they appear in tool call arguments
// once the "__wrapper_" prefix is stripped.
const (
	fieldUserPrompt           = "userPrompt"
	fieldUserPromptID         = "userPromptId"
	fieldContextSummary       = "contextSummary"
	fieldModelIntent          = "modelIntent"
	fieldModelPlan            = "modelPlan"
	fieldModelExpectedOutputs = "modelExpectedOutputs"
	fieldCurrentFiles         = "currentFiles"
)

// splitWrapperArgs separates the six/seven "__wrapper_*" advisory fields
// from the tool's own arguments (§4.3.1 step 2). The returned toolArgs map
// is a shallow copy of args with every "__wrapper_*" key removed; wrapper
// holds the stripped fields, unprefixed.
func splitWrapperArgs(args map[string]interface{}) (toolArgs map[string]interface{}, wrapperArgs map[string]interface{}) {
	toolArgs = make(map[string]interface{}, len(args))
	wrapperArgs = make(map[string]interface{})
	for k, v := range args {
		if strings.HasPrefix(k, wrapperPrefix) {
			wrapperArgs[strings.TrimPrefix(k, wrapperPrefix)] = v
			continue
		}
		toolArgs[k] = v
	}
	return toolArgs, wrapperArgs
}

// buildAgentContext converts the unprefixed wrapper fields into the
// AgentContext shape forwarded verbatim to the policy service.
func buildAgentContext(wrapperArgs map[string]interface{}) policyclient.AgentContext {
	return policyclient.AgentContext{
		UserPrompt:           stringField(wrapperArgs, fieldUserPrompt),
		UserPromptID:         stringField(wrapperArgs, fieldUserPromptID),
		ContextSummary:       stringField(wrapperArgs, fieldContextSummary),
		ModelIntent:          stringField(wrapperArgs, fieldModelIntent),
		ModelPlan:            stringField(wrapperArgs, fieldModelPlan),
		ModelExpectedOutputs: stringField(wrapperArgs, fieldModelExpectedOutputs),
	}
}

// currentFiles extracts the __wrapper_currentFiles list, tolerating both
// []interface{} and []string shapes (the former is what a generic JSON
// decode produces).
func currentFiles(wrapperArgs map[string]interface{}) []string {
	raw, ok := wrapperArgs[fieldCurrentFiles]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// derivePromptID returns the wrapper-supplied __wrapper_userPromptId, or
// falls back to the first 8 characters of the session id (§3: "a short
// opaque token supplied by the IDE or derived from the session").
func derivePromptID(wrapperPromptID, sessionID string) string {
	if wrapperPromptID != "" {
		return wrapperPromptID
	}
	if len(sessionID) >= 8 {
		return sessionID[:8]
	}
	return sessionID
}
