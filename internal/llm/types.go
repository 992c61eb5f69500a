// Package llm models the out-of-scope LLM provider contract: the shapes the
// Agent Driver programs against. No real provider is implemented here — only
// the interface and message/content-block types a caller supplies.
package llm

import "context"

// Provider is the collaborator the Agent Driver calls into. A concrete
// implementation (Anthropic, OpenAI, ...) lives outside this package.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	DefaultModel() string
	Name() string
}

// ContentBlockType is the tag of the Claude-style content sum type (§9
// design note: model the content model as a sum type with two variants,
// not a loosely-typed map).
type ContentBlockType string

const (
	BlockText     ContentBlockType = "text"
	BlockToolUse  ContentBlockType = "tool_use"
	BlockToolResult ContentBlockType = "tool_result"
)

// ContentBlock is one element of a message's Content list. Exactly one of
// the variant-specific fields is populated, selected by Type.
type ContentBlock struct {
	Type ContentBlockType `json:"type"`

	// BlockText variant.
	Text string `json:"text,omitempty"`

	// BlockToolUse variant.
	ToolUseID string                 `json:"id,omitempty"`
	ToolName  string                 `json:"name,omitempty"`
	ToolInput map[string]interface{} `json:"input,omitempty"`

	// BlockToolResult variant (submitted back in a user message).
	ToolResultForID string `json:"tool_use_id,omitempty"`
	ToolResultText  string `json:"content,omitempty"`
	ToolResultError bool   `json:"is_error,omitempty"`
}

// TextBlock constructs a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock constructs a tool-use content block.
func ToolUseBlock(id, name string, input map[string]interface{}) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// ToolResultBlock constructs a tool-result content block.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolResultForID: toolUseID, ToolResultText: content, ToolResultError: isError}
}

// Message is one turn of the conversation: a role and an ordered list of
// content blocks. An assistant message may interleave text and tool_use
// blocks; a user message may carry tool_result blocks.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ToolCall is a convenience projection of a tool_use block, used by the
// Agent Driver's dispatch logic.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// ToolCalls extracts every tool_use block from a message, in the order the
// model produced them.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			calls = append(calls, ToolCall{ID: b.ToolUseID, Name: b.ToolName, Input: b.ToolInput})
		}
	}
	return calls
}

// Text concatenates every text block in a message.
func (m Message) Text() string {
	out := ""
	for _, b := range m.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolDefinition is the declarative shape of one LLM-exposed tool.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ChatRequest is submitted to the provider on every turn.
type ChatRequest struct {
	System    string
	Messages  []Message
	Tools     []ToolDefinition // nil/empty means "no tools parameter" (propose phase)
	Model     string
	MaxTokens int
}

// Usage reports token accounting for a single provider call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the provider's reply: a single assistant-role message plus
// accounting.
type ChatResponse struct {
	Message      Message
	FinishReason string
	Usage        Usage
}

// HasToolUse reports whether the response contains any tool_use block.
func (r ChatResponse) HasToolUse() bool {
	return len(r.Message.ToolCalls()) > 0
}
