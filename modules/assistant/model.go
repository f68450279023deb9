// Package assistant runs the chat assistant: a bounded tool-calling loop over
// a hosted language model, with the task tools as its only side effects.
package assistant

import (
	"context"
	"errors"
	"iter"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrModelNotConfigured is returned when no model API key is set.
var ErrModelNotConfigured = errors.New("assistant model is not configured")

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the outcome of a ToolCall as fed back to the model. Failed
// results carry an "error" key in Result.
type ToolResult struct {
	CallID string         `json:"call_id,omitempty"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Result map[string]any `json:"result"`
}

// Failed reports whether the tool could not be executed.
func (r ToolResult) Failed() bool {
	_, ok := r.Result["error"]
	return ok
}

// Message is one entry of a conversation.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// Conversation is everything the model sees in one step.
type Conversation struct {
	System   string
	Messages []Message
	Tools    []mcp.Tool
}

// Chunk is one streamed piece of a model response: either a text delta or a
// complete tool call.
type Chunk struct {
	Text     string
	ToolCall *ToolCall
}

// Model is a hosted language model. Converse returns a lazy, single-use
// sequence; its end marks the end of the model's turn.
type Model interface {
	Converse(ctx context.Context, conv Conversation) iter.Seq2[Chunk, error]
}
