package handler

import (
	"net/http"
	"testing"

	agentapp "github.com/erp/gestao/internal/application/agent"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/infrastructure/ratelimit"
	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newAgentRouter(svc *MockChatService) *gin.Engine {
	h := NewAgentHandler(svc)
	r := newEngine()
	r.POST("/agent/chat", h.Chat)
	r.GET("/agent/tools", h.Tools)
	r.DELETE("/agent/conversations/:id", h.DeleteConversation)
	return r
}

func TestAgentHandler_Chat(t *testing.T) {
	limiter := ratelimit.NewKeyed(30, 5)
	svc := &MockChatService{limiter: limiter}
	r := newAgentRouter(svc)

	svc.On("Chat", mock.Anything, testTenant, agentapp.ChatRequest{Message: "Quanto devo este mês?", ConversationID: "c1"}).
		Return(&agentapp.ChatResponse{
			ConversationID: "c1",
			Reply:          "R$ 1.500,00 em 3 contas.",
			ToolRuns:       []agentapp.ToolRun{{Name: "aggregate_records"}},
			Steps:          2,
			Provider:       "openai",
		}, nil).
		Run(func(mock.Arguments) { limiter.Allow(testTenant.String()) })

	w := doRequest(r, http.MethodPost, "/agent/chat", map[string]any{"message": "Quanto devo este mês?", "conversation_id": "c1"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got agentapp.ChatResponse
	decodeData(t, decode(t, w).Data, &got)
	assert.Equal(t, "c1", got.ConversationID)
	assert.Len(t, got.ToolRuns, 1)
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	svc.AssertExpectations(t)
}

func TestAgentHandler_ChatValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing message", map[string]any{}},
		{"unknown provider", map[string]any{"message": "oi", "provider": "gemini"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockChatService{}
			r := newAgentRouter(svc)

			w := doRequest(r, http.MethodPost, "/agent/chat", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, dto.ErrCodeValidation, decode(t, w).Error.Code)
			svc.AssertNotCalled(t, "Chat")
		})
	}
}

func TestAgentHandler_ChatRateLimited(t *testing.T) {
	svc := &MockChatService{limiter: ratelimit.NewKeyed(1, 1)}
	r := newAgentRouter(svc)
	svc.On("Chat", mock.Anything, testTenant, mock.Anything).Return(nil, shared.ErrRateLimited)

	w := doRequest(r, http.MethodPost, "/agent/chat", map[string]any{"message": "oi"})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, dto.ErrCodeRateLimited, decode(t, w).Error.Code)
}

func TestAgentHandler_ChatUnavailable(t *testing.T) {
	svc := &MockChatService{}
	r := newAgentRouter(svc)
	svc.On("Chat", mock.Anything, testTenant, mock.Anything).Return(nil, agentapp.ErrAgentUnavailable)

	w := doRequest(r, http.MethodPost, "/agent/chat", map[string]any{"message": "oi"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, dto.ErrCodeAgentUnavailable, decode(t, w).Error.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestAgentHandler_Tools(t *testing.T) {
	r := newAgentRouter(&MockChatService{})

	w := doRequest(r, http.MethodGet, "/agent/tools", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got ToolsResponse
	decodeData(t, decode(t, w).Data, &got)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "list_records", got.Tools[0].Name)
	assert.NotNil(t, got.Providers)
	assert.Empty(t, got.Providers)
}

func TestAgentHandler_DeleteConversation(t *testing.T) {
	svc := &MockChatService{}
	r := newAgentRouter(svc)
	svc.On("DeleteConversation", mock.Anything, testTenant, "c1").Return(nil)

	w := doRequest(r, http.MethodDelete, "/agent/conversations/c1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Conversa excluída", decode(t, w).Message)
	svc.AssertExpectations(t)
}
