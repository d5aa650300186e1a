package agent

import (
	"encoding/json"

	"github.com/erp/gestao/internal/domain/agent"
)

// ChatRequest is one user turn
type ChatRequest struct {
	ConversationID string `json:"conversation_id" binding:"omitempty,max=100"`
	Message        string `json:"message" binding:"required,min=1,max=8000"`
	Provider       string `json:"provider" binding:"omitempty,oneof=openai anthropic"`
	ReadOnly       bool   `json:"read_only"`
}

// ToolRun records one tool execution of a turn
type ToolRun struct {
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	Result     any             `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// ChatResponse is the assistant reply plus what it did to produce it
type ChatResponse struct {
	ConversationID string    `json:"conversation_id"`
	Reply          string    `json:"reply"`
	ToolRuns       []ToolRun `json:"tool_runs"`
	Steps          int       `json:"steps"`
	Truncated      bool      `json:"truncated,omitempty"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	InputTokens    int       `json:"input_tokens"`
	OutputTokens   int       `json:"output_tokens"`
}

// ToolInfo describes a tool exposed to the model
type ToolInfo struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Mutates     bool          `json:"mutates"`
	Schema      *agent.Schema `json:"input_schema"`
}
