package providers

import (
	"context"

	"github.com/nextlevelbuilder/engageops/internal/llm"
)

// LLMAdapter wraps a concrete Provider (Anthropic, OpenAI, ...) so it
// satisfies the Agent Driver's llm.Provider contract (§6 "LLM collaborator
// contract"). The Agent Driver is written only against llm.Provider — this
// is the one place the two shapes meet.
type LLMAdapter struct {
	inner Provider
}

// NewLLMAdapter wraps a concrete Provider for use by the Agent Driver.
func NewLLMAdapter(inner Provider) *LLMAdapter {
	return &LLMAdapter{inner: inner}
}

func (a *LLMAdapter) Name() string         { return a.inner.Name() }
func (a *LLMAdapter) DefaultModel() string { return a.inner.DefaultModel() }

// Chat converts an llm.ChatRequest (block-based content) into the
// provider's flattened Message+ToolCalls shape, calls through, and
// reconstructs a block-based llm.ChatResponse from the reply.
func (a *LLMAdapter) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	preq := ChatRequest{
		Messages: toProviderMessages(req.System, req.Messages),
		Tools:    toProviderTools(req.Tools),
		Model:    req.Model,
	}

	presp, err := a.inner.Chat(ctx, preq)
	if err != nil {
		return llm.ChatResponse{}, err
	}

	var blocks []llm.ContentBlock
	if presp.Content != "" {
		blocks = append(blocks, llm.TextBlock(presp.Content))
	}
	for _, tc := range presp.ToolCalls {
		blocks = append(blocks, llm.ToolUseBlock(tc.ID, tc.Name, tc.Arguments))
	}

	resp := llm.ChatResponse{
		Message:      llm.Message{Role: "assistant", Content: blocks},
		FinishReason: presp.FinishReason,
	}
	if presp.Usage != nil {
		resp.Usage = llm.Usage{
			PromptTokens:     presp.Usage.PromptTokens,
			CompletionTokens: presp.Usage.CompletionTokens,
			TotalTokens:      presp.Usage.TotalTokens,
		}
	}
	return resp, nil
}

func toProviderMessages(system string, msgs []llm.Message) []Message {
	out := make([]Message, 0, len(msgs)+1)
	if system != "" {
		out = append(out, Message{Role: "system", Content: system})
	}
	for _, m := range msgs {
		out = append(out, toProviderMessage(m)...)
	}
	return out
}

// toProviderMessage flattens a block-based message into the provider's
// content-string + separate-tool-calls shape. An assistant message's
// tool_use blocks become ToolCalls on a single message; a user message's
// tool_result blocks each become their own role="tool" message, since the
// provider shape carries exactly one ToolCallID per message.
func toProviderMessage(m llm.Message) []Message {
	var toolResults []Message
	out := Message{Role: m.Role}
	for _, b := range m.Content {
		switch b.Type {
		case llm.BlockText:
			out.Content += b.Text
		case llm.BlockToolUse:
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: b.ToolUseID, Name: b.ToolName, Arguments: b.ToolInput})
		case llm.BlockToolResult:
			toolResults = append(toolResults, Message{Role: "tool", Content: b.ToolResultText, ToolCallID: b.ToolResultForID})
		}
	}
	if out.Content == "" && len(out.ToolCalls) == 0 {
		return toolResults
	}
	return append([]Message{out}, toolResults...)
}

func toProviderTools(tools []llm.ToolDefinition) []ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	out := make([]ToolDefinition, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolDefinition{
			Type: "function",
			Function: ToolFunctionSchema{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}
