package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/gestao/internal/domain/agent"
	"github.com/erp/gestao/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history() []agent.Message {
	return []agent.Message{
		{Role: agent.RoleUser, Content: "Quanto tenho a receber?"},
		{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{
			{ID: "call_1", Name: "resumir_dados", Arguments: json.RawMessage(`{"modulo":"financeiro"}`)},
		}},
		{Role: agent.RoleTool, ToolResults: []agent.ToolResult{
			{CallID: "call_1", Name: "resumir_dados", Content: `{"valor":"R$ 10,00"}`},
		}},
	}
}

func tools() []agent.ToolSpec {
	return []agent.ToolSpec{{
		Name:        "resumir_dados",
		Description: "agrega",
		Schema:      agent.Object(map[string]*agent.Schema{"modulo": agent.String("módulo")}, "modulo"),
	}}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1", "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
				"role": "assistant", "content": "",
				"tool_calls": [{"id": "call_2", "type": "function",
					"function": {"name": "listar_registros", "arguments": "{\"modulo\":\"vendas\"}"}}]
			}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 15, "total_tokens": 135}
		}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, nil)
	resp, err := p.Complete(context.Background(), agent.CompletionRequest{
		System:   "Você é um assistente.",
		Messages: history(),
		Tools:    tools(),
	})
	require.NoError(t, err)

	assert.Equal(t, "tool_calls", resp.StopReason)
	assert.Equal(t, 120, resp.InputTokens)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "listar_registros", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"modulo":"vendas"}`, string(resp.ToolCalls[0].Arguments))

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "call_1", msgs[2].(map[string]any)["tool_calls"].([]any)[0].(map[string]any)["id"])
	assert.Equal(t, "tool", msgs[3].(map[string]any)["role"])
	assert.Equal(t, "call_1", msgs[3].(map[string]any)["tool_call_id"])

	fn := got["tools"].([]any)[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "resumir_dados", fn["name"])
	assert.Equal(t, "object", fn["parameters"].(map[string]any)["type"])
}

func TestOpenAIProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"message": "Incorrect API key", "type": "invalid_request_error"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIOptions{APIKey: "bad", BaseURL: srv.URL + "/v1"}, nil)
	_, err := p.Complete(context.Background(), agent.CompletionRequest{Messages: history()[:1]})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Incorrect API key", apiErr.Message)
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = io.WriteString(w, `{
			"id": "msg_1", "model": "claude-test", "stop_reason": "end_turn",
			"content": [{"type": "text", "text": "Você tem R$ 10,00 a receber."}],
			"usage": {"input_tokens": 200, "output_tokens": 12}
		}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider(AnthropicOptions{APIKey: "sk-ant", BaseURL: srv.URL + "/", Model: "claude-test"}, nil)
	resp, err := p.Complete(context.Background(), agent.CompletionRequest{
		System:   "Você é um assistente.",
		Messages: history(),
		Tools:    tools(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Você tem R$ 10,00 a receber.", resp.Content)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, 12, resp.OutputTokens)

	assert.Equal(t, "Você é um assistente.", got.System)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "tool_use", got.Messages[1].Content[0].Type)
	assert.Equal(t, "user", got.Messages[2].Role)
	assert.Equal(t, "tool_result", got.Messages[2].Content[0].Type)
	assert.Equal(t, "call_1", got.Messages[2].Content[0].ToolUseID)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, []string{"modulo"}, got.Tools[0].InputSchema.Required)
}

func TestAnthropicProvider_ToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{
			"model": "claude-test", "stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Vou consultar."},
				{"type": "tool_use", "id": "toolu_1", "name": "buscar_registro", "input": {"id": "7"}}
			]
		}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider(AnthropicOptions{APIKey: "k", BaseURL: srv.URL}, nil)
	resp, err := p.Complete(context.Background(), agent.CompletionRequest{Messages: history()[:1]})
	require.NoError(t, err)
	assert.Equal(t, "Vou consultar.", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_1", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"id":"7"}`, string(resp.ToolCalls[0].Arguments))
}

func TestAnthropicProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider(AnthropicOptions{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := p.Complete(context.Background(), agent.CompletionRequest{Messages: history()[:1]})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "rate_limit_error", apiErr.Type)
	assert.Contains(t, err.Error(), "slow down")
}

func TestToAnthropicMessages_MergesSameRole(t *testing.T) {
	msgs := toAnthropicMessages([]agent.Message{
		{Role: agent.RoleTool, ToolResults: []agent.ToolResult{{CallID: "a", Content: "1"}}},
		{Role: agent.RoleUser, Content: "e agora?"},
	})
	require.Len(t, msgs, 1)
	assert.Len(t, msgs[0].Content, 2)
}

func TestProviders(t *testing.T) {
	p := NewProviders(config.LLMConfig{DefaultProvider: "anthropic", OpenAIAPIKey: "sk"}, nil)
	assert.Equal(t, []string{"openai"}, p.Names())

	// default not configured falls back to the first available
	got, err := p.Get("")
	require.NoError(t, err)
	assert.Equal(t, "openai", got.Name())

	_, err = p.Get("anthropic")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	got, err = p.Get("openai")
	require.NoError(t, err)
	assert.Equal(t, "openai", got.Name())

	both := NewProviders(config.LLMConfig{DefaultProvider: "anthropic", OpenAIAPIKey: "sk", AnthropicAPIKey: "ak"}, nil)
	got, err = both.Get("")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", got.Name())

	empty := NewProviders(config.LLMConfig{}, nil)
	_, err = empty.Get("")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
