package handler

import (
	"context"
	"errors"

	agentapp "github.com/erp/gestao/internal/application/agent"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/infrastructure/ratelimit"
	"github.com/erp/gestao/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChatService is the part of the chat service the handlers use
type ChatService interface {
	Chat(ctx context.Context, tenantID uuid.UUID, req agentapp.ChatRequest) (*agentapp.ChatResponse, error)
	Tools() []agentapp.ToolInfo
	Providers() []string
	Limiter() *ratelimit.Keyed
	DeleteConversation(ctx context.Context, tenantID uuid.UUID, conversationID string) error
}

// AgentHandler serves the tool-calling assistant
type AgentHandler struct {
	BaseHandler
	chat ChatService
}

// NewAgentHandler creates a new AgentHandler
func NewAgentHandler(chat ChatService) *AgentHandler {
	return &AgentHandler{chat: chat}
}

// ToolsResponse lists the tools and providers available to the assistant
type ToolsResponse struct {
	Tools     []agentapp.ToolInfo `json:"tools"`
	Providers []string            `json:"providers"`
}

// Chat runs one user turn. The tenant's remaining agent budget is reported in the
// X-RateLimit-* headers, also on 429.
//
// @ID           chatAgent
// @Summary      Send a message to the assistant
// @Tags         agent
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        body body     agentapp.ChatRequest true "Message"
// @Success      200  {object} dto.Response{data=agentapp.ChatResponse}
// @Failure      429  {object} dto.Response
// @Failure      502  {object} dto.Response
// @Router       /agent/chat [post]
func (h *AgentHandler) Chat(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req agentapp.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindError(c, err)
		return
	}

	resp, err := h.chat.Chat(c.Request.Context(), tenantID, req)
	if limiter := h.chat.Limiter(); limiter != nil {
		middleware.SetRateLimitHeaders(c, limiter, tenantID.String())
	}
	if err != nil {
		if errors.Is(err, shared.ErrRateLimited) {
			c.Header("Retry-After", "60")
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Tools lists the tools exposed to the model
//
// @ID           listAgentTools
// @Summary      List assistant tools
// @Tags         agent
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Success      200 {object} dto.Response{data=ToolsResponse}
// @Router       /agent/tools [get]
func (h *AgentHandler) Tools(c *gin.Context) {
	providers := h.chat.Providers()
	if providers == nil {
		providers = []string{}
	}
	h.Success(c, ToolsResponse{Tools: h.chat.Tools(), Providers: providers})
}

// DeleteConversation forgets a conversation
//
// @ID           deleteAgentConversation
// @Summary      Forget a conversation
// @Tags         agent
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        id path string true "Conversation id"
// @Success      200 {object} dto.Response
// @Router       /agent/conversations/{id} [delete]
func (h *AgentHandler) DeleteConversation(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	if err := h.chat.DeleteConversation(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, nil, "Conversa excluída")
}
