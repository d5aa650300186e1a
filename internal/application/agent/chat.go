// Package agent runs the tool-calling chat loop over the business tools.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erp/gestao/internal/domain/agent"
	"github.com/erp/gestao/internal/domain/catalog"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/infrastructure/config"
	"github.com/erp/gestao/internal/infrastructure/logger"
	"github.com/erp/gestao/internal/infrastructure/ratelimit"
	"github.com/erp/gestao/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxSteps   = 8
	defaultMaxHistory = 40
	defaultTTL        = 24 * time.Hour
	// maxToolContent bounds a serialized tool result sent back to the model
	maxToolContent = 16000
)

const defaultSystemPrompt = `Você é o assistente do sistema de gestão da empresa. Responda em português do Brasil.
Use as ferramentas para consultar ou alterar dados; nunca invente valores.
Antes de consultar um recurso que não conhece, use listar_recursos.
Valores monetários são em reais. Seja objetivo e apresente listas em tópicos curtos.`

// ErrAgentUnavailable is returned when no LLM provider is configured
var ErrAgentUnavailable = shared.NewDomainError("AGENT_UNAVAILABLE", "Nenhum provedor de IA configurado")

// ProviderSource resolves a provider by name; an empty name selects the default
type ProviderSource interface {
	Get(name string) (agent.Provider, error)
	Names() []string
}

// Metrics receives per-turn usage figures
type Metrics interface {
	ToolCalled(ctx context.Context, tool string, d time.Duration, failed bool)
	TokensUsed(ctx context.Context, provider string, input, output int)
}

// ChatService runs conversations between the user, a provider and the tool registry
type ChatService struct {
	providers   ProviderSource
	tools       *agent.Registry
	store       agent.ConversationStore
	limiter     *ratelimit.Keyed
	cfg         config.AgentConfig
	maxTokens   int
	temperature float32
	catalog     string
	metrics     Metrics
	now         func() time.Time
}

// NewChatService creates the chat service. registry supplies the resource listing
// embedded in the system prompt.
func NewChatService(
	providers ProviderSource,
	tools *agent.Registry,
	store agent.ConversationStore,
	registry *catalog.Registry,
	cfg config.AgentConfig,
	llmCfg config.LLMConfig,
) *ChatService {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = defaultMaxHistory
	}
	if cfg.ConversationTTL <= 0 {
		cfg.ConversationTTL = defaultTTL
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	s := &ChatService{
		providers:   providers,
		tools:       tools,
		store:       store,
		limiter:     ratelimit.NewKeyed(cfg.RatePerMinute, cfg.Burst),
		cfg:         cfg,
		maxTokens:   llmCfg.MaxTokens,
		temperature: llmCfg.Temperature,
		now:         time.Now,
	}
	if registry != nil {
		s.catalog = registry.Describe()
	}
	return s
}

// WithMetrics sets the usage sink
func (s *ChatService) WithMetrics(m Metrics) *ChatService {
	s.metrics = m
	return s
}

// Limiter exposes the per-tenant limiter so callers can report remaining quota
func (s *ChatService) Limiter() *ratelimit.Keyed {
	return s.limiter
}

// Providers lists the configured provider names
func (s *ChatService) Providers() []string {
	return s.providers.Names()
}

// Tools lists the tools the model may call under the configured mutation policy
func (s *ChatService) Tools() []ToolInfo {
	all := s.tools.All(s.cfg.AllowMutations)
	out := make([]ToolInfo, len(all))
	for i, t := range all {
		out[i] = ToolInfo{Name: t.Name, Description: t.Description, Mutates: t.Mutates, Schema: t.Schema}
	}
	return out
}

// DeleteConversation forgets a conversation history
func (s *ChatService) DeleteConversation(ctx context.Context, tenantID uuid.UUID, conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return shared.NewValidationError("conversation_id", "obrigatório")
	}
	return s.store.Delete(ctx, tenantID, conversationID)
}

// Chat appends the user message to the conversation and loops provider completions and
// tool executions until the model answers without tool calls or MaxSteps is reached
func (s *ChatService) Chat(ctx context.Context, tenantID uuid.UUID, req ChatRequest) (*ChatResponse, error) {
	if !s.limiter.Allow(tenantID.String()) {
		return nil, shared.ErrRateLimited
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, shared.NewValidationError("message", "mensagem vazia")
	}

	provider, err := s.providers.Get(req.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAgentUnavailable, err)
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	ctx = logger.WithConversationID(ctx, conversationID)
	log := logger.L(ctx)

	ctx, span := telemetry.StartServiceSpan(ctx, "agent", "chat",
		telemetry.WithAttribute("conversation_id", conversationID),
		telemetry.WithAttribute("provider", provider.Name()),
	)
	defer span.End()

	history, err := s.store.Load(ctx, tenantID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	history = append(history, agent.Message{Role: agent.RoleUser, Content: message})

	allowMutations := s.cfg.AllowMutations && !req.ReadOnly
	completion := agent.CompletionRequest{
		System:      s.systemPrompt(),
		Tools:       s.tools.Specs(allowMutations),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}

	resp := &ChatResponse{
		ConversationID: conversationID,
		ToolRuns:       []ToolRun{},
		Provider:       provider.Name(),
		Model:          provider.Model(),
	}

	answered := false
	for step := 1; step <= s.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		completion.Messages = history
		out, err := provider.Complete(ctx, completion)
		if err != nil {
			log.Warn("provider completion failed",
				zap.String("provider", provider.Name()),
				zap.Int("step", step),
				zap.Error(err),
			)
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("%w: %s: %w", shared.ErrUpstream, provider.Name(), err)
		}
		resp.Steps = step
		resp.InputTokens += out.InputTokens
		resp.OutputTokens += out.OutputTokens
		if out.Model != "" {
			resp.Model = out.Model
		}

		history = append(history, agent.Message{
			Role:      agent.RoleAssistant,
			Content:   out.Content,
			ToolCalls: out.ToolCalls,
		})
		if len(out.ToolCalls) == 0 {
			resp.Reply = out.Content
			answered = true
			break
		}

		results := make([]agent.ToolResult, 0, len(out.ToolCalls))
		for _, call := range out.ToolCalls {
			result, run := s.runTool(ctx, tenantID, call, allowMutations)
			results = append(results, result)
			resp.ToolRuns = append(resp.ToolRuns, run)
		}
		history = append(history, agent.Message{Role: agent.RoleTool, ToolResults: results})
	}

	if !answered {
		resp.Truncated = true
		resp.Reply = "Não consegui concluir a resposta dentro do limite de etapas. Reformule o pedido ou divida-o em partes menores."
		log.Warn("agent step limit reached", zap.Int("max_steps", s.cfg.MaxSteps))
	}

	if s.metrics != nil {
		s.metrics.TokensUsed(ctx, resp.Provider, resp.InputTokens, resp.OutputTokens)
	}
	telemetry.SetAttributes(span, "steps", resp.Steps, "truncated", resp.Truncated)

	history = trimHistory(history, s.cfg.MaxHistory)
	if err := s.store.Save(ctx, tenantID, conversationID, history, s.cfg.ConversationTTL); err != nil {
		log.Warn("failed to save conversation", zap.Error(err))
	}

	log.Info("agent turn completed",
		zap.String("provider", resp.Provider),
		zap.String("model", resp.Model),
		zap.Int("steps", resp.Steps),
		zap.Int("tool_runs", len(resp.ToolRuns)),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
	)
	return resp, nil
}

func (s *ChatService) runTool(ctx context.Context, tenantID uuid.UUID, call agent.ToolCall, allowMutations bool) (agent.ToolResult, ToolRun) {
	ctx, span := telemetry.StartServiceSpan(ctx, "agent.tool", call.Name)
	defer span.End()

	start := s.now()
	value, err := s.tools.Execute(ctx, tenantID, call, allowMutations)
	elapsed := s.now().Sub(start)
	if s.metrics != nil {
		s.metrics.ToolCalled(ctx, call.Name, elapsed, err != nil)
	}
	run := ToolRun{
		Name:       call.Name,
		Arguments:  call.Arguments,
		DurationMs: elapsed.Milliseconds(),
	}
	result := agent.ToolResult{CallID: call.ID, Name: call.Name}

	if err != nil {
		telemetry.RecordError(span, err)
		logger.L(ctx).Info("tool call failed", zap.String("tool", call.Name), zap.Error(err))
		run.Error = err.Error()
		result.Content = "Erro: " + err.Error()
		result.IsError = true
		return result, run
	}

	run.Result = value
	content, err := json.Marshal(value)
	if err != nil {
		run.Error = err.Error()
		result.Content = "Erro: resultado não serializável"
		result.IsError = true
		return result, run
	}
	result.Content = truncate(string(content), maxToolContent)
	return result, run
}

func (s *ChatService) systemPrompt() string {
	var b strings.Builder
	b.WriteString(s.cfg.SystemPrompt)
	fmt.Fprintf(&b, "\n\nData de hoje: %s.", s.now().Format("02/01/2006"))
	if s.catalog != "" {
		b.WriteString("\n\nRecursos disponíveis:\n")
		b.WriteString(s.catalog)
	}
	return b.String()
}

// trimHistory keeps at most limit messages and makes the kept window start at a user
// message, so no tool result is left without the call that produced it
func trimHistory(history []agent.Message, limit int) []agent.Message {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	for i, m := range history {
		if m.Role == agent.RoleUser {
			return history[i:]
		}
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…(truncado)"
}
