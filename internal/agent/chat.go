package agent

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/engageops/internal/llm"
	"github.com/nextlevelbuilder/engageops/internal/session"
	"github.com/nextlevelbuilder/engageops/pkg/protocol"
)

// Chat drives one chat-mode turn (§4.J): append the operator's message,
// replay transcript + system prompt to the provider, execute any tool
// calls it proposes through runToolCall (no approval gate in chat mode —
// only autonomous mode requires the propose/execute split, §5), feed the
// results back, and repeat until the model stops asking for tools or the
// iteration cap is hit.
func (d *Driver) Chat(ctx context.Context, sessionID, text, user string) (string, error) {
	sess, ok := d.sessions.Get(sessionID)
	if !ok {
		return "", fmt.Errorf("agent: unknown session %s", sessionID)
	}

	if err := sess.AddMessage("user", text, user); err != nil {
		return "", err
	}
	d.broadcast(sess.ID, protocol.EventChatMessage, protocol.ChatMessagePayload{Role: "user", Content: text})

	ctx, span := startSpan(ctx, "agent.chat_turn", sess)
	defer span.End()

	messages := d.transcript(sess)
	messages = append(messages, llm.Message{Role: "user", Content: []llm.ContentBlock{llm.TextBlock(sess.Vault.Tokenize(text))}})

	var finalText string
	for i := 0; i < d.cfg.MaxToolIterations; i++ {
		resp, err := d.provider.Chat(ctx, llm.ChatRequest{
			System:    d.cfg.SystemPrompt,
			Messages:  messages,
			Tools:     ToolSchema(),
			Model:     d.pickModel(),
			MaxTokens: d.cfg.MaxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("agent: provider call failed: %w", err)
		}

		messages = append(messages, resp.Message)
		finalText = resp.Message.Text()

		if !resp.HasToolUse() {
			break
		}

		var resultBlocks []llm.ContentBlock
		for _, call := range resp.Message.ToolCalls() {
			resultBlocks = append(resultBlocks, d.runToolCall(ctx, sess, call, "chat"))
		}
		messages = append(messages, llm.Message{Role: "user", Content: resultBlocks})
	}

	if err := sess.AddMessage("assistant", finalText, ""); err != nil {
		return "", err
	}
	d.broadcast(sess.ID, protocol.EventChatMessage, protocol.ChatMessagePayload{Role: "assistant", Content: finalText})

	return finalText, nil
}

// transcript replays a session's recorded chat messages as provider-facing
// turns. Tool-call/result detail from prior turns is not replayed — only
// the final assistant text and operator messages, matching the teacher's
// "history is the durable conversation, not the tool-call trace" split.
// The persisted log keeps the operator's original (un-tokenized) text for
// human visibility, so every user-role turn is re-tokenized on replay —
// raw credentials must never reach an outbound LLM request (§8 invariant 1),
// even on a conversation's second or third trip through this function.
func (d *Driver) transcript(sess *session.Session) []llm.Message {
	var out []llm.Message
	for _, m := range sess.Messages {
		text := m.Text
		if m.Role == "user" {
			text = sess.Vault.Tokenize(text)
		}
		out = append(out, llm.Message{Role: m.Role, Content: []llm.ContentBlock{llm.TextBlock(text)}})
	}
	return out
}

func (d *Driver) pickModel() string {
	if d.cfg.Model != "" {
		return d.cfg.Model
	}
	return d.provider.DefaultModel()
}
