package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the instruments of the record, agent and dashboard flows.
// It satisfies the observer interfaces of the record and chat services.
type AppMetrics struct {
	recordMutations  *Counter
	toolCalls        *Counter
	toolDuration     *Histogram
	llmTokens        *Counter
	dashboardPatches *Counter
}

// NewAppMetrics creates every instrument on meter.
func NewAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	recordMutations, err := NewCounter(meter,
		"gestao_record_mutations_total",
		"Record mutations by resource and operation",
		"{mutation}",
	)
	if err != nil {
		return nil, err
	}
	toolCalls, err := NewCounter(meter,
		"gestao_agent_tool_calls_total",
		"Agent tool calls by tool and outcome",
		"{call}",
	)
	if err != nil {
		return nil, err
	}
	toolDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "gestao_agent_tool_duration_seconds",
		Description: "Agent tool call latency",
		Unit:        "s",
		Boundaries:  ToolDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	llmTokens, err := NewCounter(meter,
		"gestao_llm_tokens_total",
		"LLM tokens consumed by provider and direction",
		"{token}",
	)
	if err != nil {
		return nil, err
	}
	dashboardPatches, err := NewCounter(meter,
		"gestao_dashboard_patches_total",
		"Dashboard patch operations applied",
		"{op}",
	)
	if err != nil {
		return nil, err
	}

	return &AppMetrics{
		recordMutations:  recordMutations,
		toolCalls:        toolCalls,
		toolDuration:     toolDuration,
		llmTokens:        llmTokens,
		dashboardPatches: dashboardPatches,
	}, nil
}

// RecordMutated counts a create, update or delete on a resource.
func (m *AppMetrics) RecordMutated(ctx context.Context, resource, op string) {
	m.recordMutations.Inc(ctx, AttrResource.String(resource), AttrOperation.String(op))
}

// ToolCalled counts a tool call and records its latency.
func (m *AppMetrics) ToolCalled(ctx context.Context, tool string, d time.Duration, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	m.toolCalls.Inc(ctx, AttrTool.String(tool), AttrStatus.String(status))
	m.toolDuration.RecordDuration(ctx, d, AttrTool.String(tool))
}

// TokensUsed adds the token usage of one agent turn.
func (m *AppMetrics) TokensUsed(ctx context.Context, provider string, input, output int) {
	if input > 0 {
		m.llmTokens.Add(ctx, int64(input), AttrProvider.String(provider), AttrDirection.String("input"))
	}
	if output > 0 {
		m.llmTokens.Add(ctx, int64(output), AttrProvider.String(provider), AttrDirection.String("output"))
	}
}

// DashboardPatched counts applied patch operations.
func (m *AppMetrics) DashboardPatched(ctx context.Context, ops int) {
	m.dashboardPatches.Add(ctx, int64(ops))
}
