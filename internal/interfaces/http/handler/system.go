package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/erp/gestao/internal/infrastructure/config"
	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// ReadinessCheck is a dependency pinged by /ready
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// IntegrationsStatus reports which third-party services are configured. Secrets never
// leave the server, only whether they are set.
type IntegrationsStatus struct {
	Composio     bool     `json:"composio"`
	AgentMail    bool     `json:"agentmail"`
	ElevenLabs   bool     `json:"elevenlabs"`
	BigQuery     bool     `json:"bigquery"`
	LLMProviders []string `json:"llm_providers"`
	Storage      bool     `json:"storage"`
	PDFExport    bool     `json:"pdf_export"`
}

// NewIntegrationsStatus derives the status from configuration and the providers
// actually registered
func NewIntegrationsStatus(cfg *config.Config, providers []string) IntegrationsStatus {
	if providers == nil {
		providers = []string{}
	}
	return IntegrationsStatus{
		Composio:     cfg.Integrations.ComposioAPIKey != "",
		AgentMail:    cfg.Integrations.AgentMailAPIKey != "",
		ElevenLabs:   cfg.Integrations.ElevenLabsAPIKey != "",
		BigQuery:     cfg.Integrations.BigQueryProjectID != "",
		LLMProviders: providers,
		Storage:      cfg.Storage.Enabled(),
		PDFExport:    cfg.Export.Enabled,
	}
}

// SystemHandler serves health checks and service information
type SystemHandler struct {
	BaseHandler
	name         string
	version      string
	startTime    time.Time
	integrations IntegrationsStatus
	checks       []ReadinessCheck
	checkTimeout time.Duration
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string, integrations IntegrationsStatus, checks ...ReadinessCheck) *SystemHandler {
	return &SystemHandler{
		name:         name,
		version:      version,
		startTime:    time.Now(),
		integrations: integrations,
		checks:       checks,
		checkTimeout: 3 * time.Second,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health is the liveness check; it never touches dependencies
func (h *SystemHandler) Health(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ready pings every dependency concurrently and answers 503 when any fails
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.checkTimeout)
	defer cancel()

	results := make([]string, len(h.checks))
	var g errgroup.Group
	for i, check := range h.checks {
		g.Go(func() error {
			if err := check.Ping(ctx); err != nil {
				results[i] = err.Error()
				return err
			}
			results[i] = "ok"
			return nil
		})
	}
	failed := g.Wait() != nil

	status := make(map[string]string, len(h.checks))
	for i, check := range h.checks {
		status[check.Name] = results[i]
	}
	if failed {
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeInternal, "Serviço indisponível", "")
		resp.Data = status
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	h.Success(c, status)
}

// Integrations lists which third-party services are configured
//
// @ID           getSystemIntegrations
// @Summary      List configured integrations
// @Tags         system
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Success      200 {object} dto.Response{data=IntegrationsStatus}
// @Router       /system/integrations [get]
func (h *SystemHandler) Integrations(c *gin.Context) {
	h.Success(c, h.integrations)
}
