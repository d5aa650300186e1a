// Package llm adapts model vendor APIs to agent.Provider.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/erp/gestao/internal/domain/agent"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider calls the Chat Completions API with function tools
type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// OpenAIOptions configures NewOpenAIProvider
type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewOpenAIProvider creates an OpenAI provider
func NewOpenAIProvider(opts OpenAIOptions, logger *zap.Logger) *OpenAIProvider {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Model == "" {
		opts.Model = defaultOpenAIModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
		logger: logger,
	}
}

// Name implements agent.Provider
func (p *OpenAIProvider) Name() string { return "openai" }

// Model implements agent.Provider
func (p *OpenAIProvider) Model() string { return p.model }

// Complete implements agent.Provider
func (p *OpenAIProvider) Complete(ctx context.Context, req agent.CompletionRequest) (*agent.CompletionResponse, error) {
	request := openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            toOpenAIMessages(req.System, req.Messages),
		MaxCompletionTokens: req.MaxTokens,
		Temperature:         req.Temperature,
	}
	for _, t := range req.Tools {
		request.Tools = append(request.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, request)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &APIError{Provider: p.Name(), StatusCode: apiErr.HTTPStatusCode, Type: apiErr.Type, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	out := &agent.CompletionResponse{
		Content:      choice.Message.Content,
		StopReason:   string(choice.FinishReason),
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	for _, tc := range choice.Message.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		out.ToolCalls = append(out.ToolCalls, agent.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}

	p.logger.Debug("openai completion",
		zap.String("model", out.Model),
		zap.String("finish_reason", out.StopReason),
		zap.Int("tool_calls", len(out.ToolCalls)),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

func toOpenAIMessages(system string, messages []agent.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range messages {
		switch m.Role {
		case agent.RoleTool:
			// one message per result, linked by call id
			for _, r := range m.ToolResults {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    r.Content,
					ToolCallID: r.CallID,
				})
			}
		case agent.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:       tc.ID,
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: tc.Name, Arguments: string(tc.Arguments)},
				})
			}
			out = append(out, msg)
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	return out
}

var _ agent.Provider = (*OpenAIProvider)(nil)
