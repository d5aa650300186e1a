package telemetry_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/gestao/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func scrape(t *testing.T, h http.Handler) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestMeterProvider_Disabled(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(telemetry.MetricsConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	code, _ := scrape(t, mp.Handler())
	assert.Equal(t, http.StatusNotFound, code)
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestMeterProvider_ExposesAppMetrics(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(telemetry.MetricsConfig{Enabled: true, ServiceName: "gestao-test"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	require.True(t, mp.IsEnabled())

	m, err := telemetry.NewAppMetrics(mp.Meter("gestao"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordMutated(ctx, "financeiro.contas_pagar", "create")
	m.RecordMutated(ctx, "financeiro.contas_pagar", "create")
	m.ToolCalled(ctx, "listar_registros", 12*time.Millisecond, false)
	m.ToolCalled(ctx, "criar_registro", time.Millisecond, true)
	m.TokensUsed(ctx, "openai", 120, 30)
	m.DashboardPatched(ctx, 3)

	code, body := scrape(t, mp.Handler())
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "gestao_record_mutations_total")
	assert.Contains(t, body, `resource="financeiro.contas_pagar"`)
	assert.Contains(t, body, "gestao_agent_tool_calls_total")
	assert.Contains(t, body, `status="error"`)
	assert.Contains(t, body, "gestao_agent_tool_duration_seconds")
	assert.Contains(t, body, "gestao_llm_tokens_total")
	assert.Contains(t, body, `direction="output"`)
	assert.Contains(t, body, "gestao_dashboard_patches_total")
	// runtime collectors are registered alongside
	assert.Contains(t, body, "go_goroutines")
}

func TestHistogram_RecordDuration(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(telemetry.MetricsConfig{Enabled: true, ServiceName: "gestao-test"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	h, err := telemetry.NewHistogram(mp.Meter("test"), telemetry.HistogramOpts{
		Name:       "test_latency_seconds",
		Unit:       "s",
		Boundaries: telemetry.HTTPDurationBuckets,
	})
	require.NoError(t, err)
	h.RecordDuration(context.Background(), 30*time.Millisecond, telemetry.AttrHTTPRoute.String("/api/v1/catalog"))

	_, body := scrape(t, mp.Handler())
	assert.Contains(t, body, "test_latency_seconds_bucket")
	assert.Contains(t, body, `le="0.05"`)
}
