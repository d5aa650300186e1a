package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/erp/gestao/internal/domain/agent"
	"go.uber.org/zap"
)

const (
	anthropicAPIVersion   = "2023-06-01"
	defaultAnthropicURL   = "https://api.anthropic.com"
	defaultAnthropicModel = "claude-sonnet-4-5"
	defaultMaxTokens      = 4096
	maxErrorBody          = 4 << 10
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

// anthropicBlock is a content block: text, tool_use or tool_result
type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	InputSchema *agent.Schema `json:"input_schema"`
}

type anthropicResponse struct {
	ID         string           `json:"id"`
	Model      string           `json:"model"`
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnthropicOptions configures NewAnthropicProvider
type AnthropicOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// AnthropicProvider calls the Messages API with tool_use blocks
type AnthropicProvider struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	logger     *zap.Logger
}

// NewAnthropicProvider creates an Anthropic provider
func NewAnthropicProvider(opts AnthropicOptions, logger *zap.Logger) *AnthropicProvider {
	if opts.Model == "" {
		opts.Model = defaultAnthropicModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultAnthropicURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnthropicProvider{
		httpClient: &http.Client{Timeout: opts.Timeout},
		apiKey:     opts.APIKey,
		model:      opts.Model,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		logger:     logger,
	}
}

// Name implements agent.Provider
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Model implements agent.Provider
func (p *AnthropicProvider) Model() string { return p.model }

// Complete implements agent.Provider
func (p *AnthropicProvider) Complete(ctx context.Context, req agent.CompletionRequest) (*agent.CompletionResponse, error) {
	payload := anthropicRequest{
		Model:     p.model,
		MaxTokens: req.MaxTokens,
		System:    req.System,
		Messages:  toAnthropicMessages(req.Messages),
	}
	if payload.MaxTokens <= 0 {
		payload.MaxTokens = defaultMaxTokens
	}
	if req.Temperature > 0 {
		payload.Temperature = &req.Temperature
	}
	for _, t := range req.Tools {
		payload.Tools = append(payload.Tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.Schema})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("content-type", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var eb anthropicErrorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
			apiErr.Type = eb.Error.Type
			apiErr.Message = eb.Error.Message
		}
		return nil, apiErr
	}

	var ar anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	if len(ar.Content) == 0 {
		return nil, fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}

	out := &agent.CompletionResponse{
		StopReason:   ar.StopReason,
		Model:        ar.Model,
		InputTokens:  ar.Usage.InputTokens,
		OutputTokens: ar.Usage.OutputTokens,
	}
	var text []string
	for _, b := range ar.Content {
		switch b.Type {
		case "text":
			text = append(text, b.Text)
		case "tool_use":
			args := b.Input
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			out.ToolCalls = append(out.ToolCalls, agent.ToolCall{ID: b.ID, Name: b.Name, Arguments: args})
		}
	}
	out.Content = strings.Join(text, "\n")

	p.logger.Debug("anthropic completion",
		zap.String("model", out.Model),
		zap.String("stop_reason", out.StopReason),
		zap.Int("tool_calls", len(out.ToolCalls)),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

// toAnthropicMessages maps the history to alternating user/assistant turns.
// Tool results travel in user turns; consecutive turns of one role are merged.
func toAnthropicMessages(messages []agent.Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		role := "user"
		var blocks []anthropicBlock
		switch m.Role {
		case agent.RoleAssistant:
			role = "assistant"
			if m.Content != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := tc.Arguments
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropicBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
			}
		case agent.RoleTool:
			for _, r := range m.ToolResults {
				blocks = append(blocks, anthropicBlock{Type: "tool_result", ToolUseID: r.CallID, Content: r.Content, IsError: r.IsError})
			}
		default:
			blocks = append(blocks, anthropicBlock{Type: "text", Text: m.Content})
		}
		if len(blocks) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			continue
		}
		out = append(out, anthropicMessage{Role: role, Content: blocks})
	}
	return out
}

var _ agent.Provider = (*AnthropicProvider)(nil)
