// Package model defines the provider boundary: a role-tagged message
// history, a system instruction and a tool schema go in; an incremental
// stream of text deltas and tool-call requests comes out.
package model

import (
	"context"

	"zenith/pkg/domain"
	"zenith/pkg/tools"
)

// Message content types.
const (
	ContentTypeText       = "text"
	ContentTypeToolCall   = "tool_call"
	ContentTypeToolResult = "tool_result"
)

// Message represents a message in the model's conversation context.
type Message struct {
	// Role indicates the sender (user, assistant, system).
	Role domain.Role
	// Content holds the message parts.
	Content []Content
}

// Content represents a single component of a message.
type Content struct {
	Type string // "text", "tool_call", "tool_result"

	// Text content (when Type == "text").
	Text string

	// Tool call (when Type == "tool_call").
	ToolCall *ToolCall

	// Tool result (when Type == "tool_result").
	ToolResult *ToolCallResult
}

// ToolCall is a tool invocation requested by the model. ID is always
// populated: when the provider does not supply one, the binding mints a
// process-local token and the same token is threaded through the result.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolCallResult carries a tool's outcome back to the model.
type ToolCallResult struct {
	ToolCallID string
	Name       string
	Result     *domain.ToolResult
}

// Event is one item from a model stream: either a text delta or a tool-call
// request. Exactly one field is set.
type Event struct {
	// Text is a delta to append to the assistant's running text.
	Text string
	// ToolCall is a requested tool invocation.
	ToolCall *ToolCall
}

// Stream is one round of model output. Recv returns io.EOF when the model
// has finished the round; whether the turn is over depends on whether any
// tool calls were emitted.
type Stream interface {
	// Recv blocks until the next event is available. Returns io.EOF at the
	// end of the round and the underlying transport error otherwise.
	Recv() (Event, error)

	// Close cancels the stream transport. Safe to call at any time.
	Close() error
}

// ModelInfo identifies an available model.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider represents an LLM service (Gemini, OpenAI, Groq, ...).
type Provider interface {
	// Name returns the provider's identifier (e.g. "google", "openai").
	Name() string

	// List returns the available models from this provider.
	List(ctx context.Context) ([]ModelInfo, error)

	// Stream sends a conversation context to the LLM and returns a stream of
	// events. instructions is the system prompt; defs is the tool schema.
	Stream(ctx context.Context, modelName, instructions string, messages []Message, defs []tools.Def) (Stream, error)
}
