package providers

// Option keys read out of ChatRequest.Options. Thinking-related keys are
// deliberately generic (OptThinkingLevel) or provider-specific passthrough
// (OptEnableThinking, OptThinkingBudget for DashScope; OptReasoningEffort
// for OpenAI o-series) so callers configure one field and each provider's
// buildRequestBody maps it onto its own wire shape.
const (
	OptMaxTokens       = "max_tokens"
	OptTemperature     = "temperature"
	OptThinkingLevel   = "thinking_level" // "off" | "low" | "medium" | "high"
	OptReasoningEffort = "reasoning_effort"
	OptEnableThinking  = "enable_thinking"
	OptThinkingBudget  = "thinking_budget"
)

// CleanToolSchemas strips JSON-schema fields a given provider's tool-calling
// API rejects from every tool's parameter schema.
func CleanToolSchemas(providerName string, tools []ToolDefinition) []ToolDefinition {
	cleaned := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		cleaned[i] = t
		cleaned[i].Function.Parameters = CleanSchemaForProvider(providerName, t.Function.Parameters)
	}
	return cleaned
}

// CleanSchemaForProvider recursively strips schema keywords a provider's
// function-calling implementation doesn't accept. Gemini (via the OpenAI
// compat shape) rejects "$schema" and "additionalProperties" outright;
// other OpenAI-compatible backends tolerate them but gain nothing from
// carrying them over the wire, so the same strip is safe everywhere.
func CleanSchemaForProvider(providerName string, params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	return cleanSchemaValue(params).(map[string]interface{})
}

func cleanSchemaValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			switch k {
			case "$schema", "additionalProperties", "title":
				continue
			}
			out[k] = cleanSchemaValue(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = cleanSchemaValue(child)
		}
		return out
	default:
		return v
	}
}
