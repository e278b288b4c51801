package wrapper

// wrapperSchemaProperties is the seven-field advisory block merged into
// every wrapped tool's input schema (§4.3.2). Keys are the full
// "__wrapper_*" names as they appear on the wire.
var wrapperSchemaProperties = []struct {
	name string
	prop map[string]interface{}
}{
	{
		name: "__wrapper_userPrompt",
		prop: map[string]interface{}{
			"type":        "string",
			"description": "the user's original prompt that led to this tool call",
		},
	},
	{
		name: "__wrapper_userPromptId",
		prop: map[string]interface{}{
			"type":        "string",
			"description": "opaque id grouping every tool call made in service of the same user prompt",
		},
	},
	{
		name: "__wrapper_contextSummary",
		prop: map[string]interface{}{
			"type":        "string",
			"description": "brief summary of the conversation context relevant to this tool call",
		},
	},
	{
		name: "__wrapper_modelIntent",
		prop: map[string]interface{}{
			"type":        "string",
			"description": "single-sentence intent of the tool call",
		},
	},
	{
		name: "__wrapper_modelPlan",
		prop: map[string]interface{}{
			"type":        "string",
			"description": "the agent's short-term plan this tool call is a step of",
		},
	},
	{
		name: "__wrapper_modelExpectedOutputs",
		prop: map[string]interface{}{
			"type":        "string",
			"description": "what the agent expects this tool call to return or accomplish",
		},
	},
	{
		name: "__wrapper_currentFiles",
		prop: map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"description": "files the agent currently has open or in focus",
		},
	},
}

// AugmentToolSchema merges the seven "__wrapper_*" advisory properties into
// a tool's input schema (§4.3.2, C10). The merge is non-destructive:
// existing properties and "required" entries are preserved, and none of
// the wrapper fields are ever added to "required". Re-running the
// augmentation on an already-augmented schema is a no-op (testable
// property 9): existing "__wrapper_*" keys are left untouched rather than
// overwritten.
//
// schema is mutated in place and also returned for convenience; a nil or
// non-map schema is returned unchanged (a tool need not declare an object
// schema to be wrapped, though in practice MCP tool schemas always do).
func AugmentToolSchema(schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return schema
	}

	if schema["type"] == nil {
		schema["type"] = "object"
	}

	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		props = make(map[string]interface{})
	}

	for _, wp := range wrapperSchemaProperties {
		if _, exists := props[wp.name]; exists {
			continue
		}
		props[wp.name] = wp.prop
	}
	schema["properties"] = props

	// "required" is read-only from this function's perspective: whatever
	// was there (present or absent) is left exactly as-is; no wrapper
	// field is ever added to it.

	return schema
}
