package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role of a message author
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool carries tool results back to the model
	RoleTool Role = "tool"
)

// ToolCall is a tool invocation requested by the model
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult answers one ToolCall
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is one turn of a conversation
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// ToolSpec is what a provider sends to the model about a tool
type ToolSpec struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Schema      *Schema `json:"input_schema"`
}

// CompletionRequest is one model call
type CompletionRequest struct {
	System      string
	Messages    []Message
	Tools       []ToolSpec
	MaxTokens   int
	Temperature float32
}

// CompletionResponse is the model's answer: text, tool calls or both
type CompletionResponse struct {
	Content      string
	ToolCalls    []ToolCall
	StopReason   string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Provider is a model API able to call tools
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ConversationStore keeps chat history between requests. Load returns an empty history
// for unknown conversations.
type ConversationStore interface {
	Load(ctx context.Context, tenantID uuid.UUID, conversationID string) ([]Message, error)
	Save(ctx context.Context, tenantID uuid.UUID, conversationID string, messages []Message, ttl time.Duration) error
	Delete(ctx context.Context, tenantID uuid.UUID, conversationID string) error
}
