package enforce

// needFieldTranslation maps the policy service's dotted server-side paths
// to the wrapper advisory argument name the agent should populate and
// retry with (§4.2b). Adding a new advisory field requires extending both
// this table and the schema augmenter (§4.3.2).
var needFieldTranslation = map[string]string{
	"context.agent.intent":            "__wrapper_modelIntent",
	"context.agent.plan":              "__wrapper_modelPlan",
	"context.agent.expectedOutputs":   "__wrapper_modelExpectedOutputs",
	"context.agent.user_prompt":       "__wrapper_userPrompt",
	"context.agent.user_prompt_id":    "__wrapper_userPromptId",
	"context.agent.context_summary":   "__wrapper_contextSummary",
	"context.workspace.current_files": "__wrapper_currentFiles",
}

// translateNeedFields converts dotted server paths into their wrapper
// advisory field names. A path with no known mapping passes through
// unchanged so an operator can still see what the policy service asked
// for even if the table hasn't caught up with a new server-side field.
func translateNeedFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if w, ok := needFieldTranslation[f]; ok {
			out = append(out, w)
		} else {
			out = append(out, f)
		}
	}
	return out
}
