package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	dashboardapp "github.com/erp/gestao/internal/application/dashboard"
	"github.com/erp/gestao/internal/domain/dashboard"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/erp/gestao/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DashboardService is the part of the dashboard service the handlers use
type DashboardService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req dashboardapp.CreateDashboardRequest) (*dashboardapp.DashboardResponse, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*dashboardapp.DashboardResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter dashboardapp.ListFilter) (shared.Paginated[dashboardapp.DashboardListItem], error)
	Update(ctx context.Context, tenantID, id uuid.UUID, req dashboardapp.UpdateDashboardRequest) (*dashboardapp.DashboardResponse, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	ApplyPatch(ctx context.Context, tenantID, id uuid.UUID, req dashboardapp.PatchRequest) (*dashboardapp.DashboardResponse, error)
	Parse(data []byte) (*dashboardapp.ParseResponse, error)
	Render(ctx context.Context, tenantID, id uuid.UUID) (*dashboard.RenderedDashboard, error)
	ExportPDF(ctx context.Context, tenantID, id uuid.UUID, landscape bool) ([]byte, string, error)
}

// DashboardHandler serves the dashboard document routes
type DashboardHandler struct {
	BaseHandler
	dashboards DashboardService
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(svc DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: svc}
}

// List returns a page of dashboard summaries
//
// @ID           listDashboards
// @Summary      List dashboards
// @Tags         dashboards
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        params query dashboardapp.ListFilter false "Filter"
// @Success      200 {object} dto.Response{data=[]dashboardapp.DashboardListItem,meta=dto.Meta}
// @Router       /dashboards [get]
func (h *DashboardHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter dashboardapp.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleBindError(c, err)
		return
	}
	page, err := h.dashboards.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Create stores a new dashboard
//
// @ID           createDashboard
// @Summary      Create a dashboard
// @Tags         dashboards
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        body body dashboardapp.CreateDashboardRequest true "Dashboard"
// @Success      201 {object} dto.Response{data=dashboardapp.DashboardResponse}
// @Failure      422 {object} dto.Response
// @Router       /dashboards [post]
func (h *DashboardHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req dashboardapp.CreateDashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindError(c, err)
		return
	}
	resp, err := h.dashboards.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get returns a dashboard with its document
//
// @ID           getDashboard
// @Summary      Get a dashboard
// @Tags         dashboards
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        id path string true "Dashboard id" format(uuid)
// @Success      200 {object} dto.Response{data=dashboardapp.DashboardResponse}
// @Failure      404 {object} dto.Response
// @Router       /dashboards/{id} [get]
func (h *DashboardHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.dashboards.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Update replaces name, description or the whole document. A stale version yields 409.
//
// @ID           updateDashboard
// @Summary      Update a dashboard
// @Tags         dashboards
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        id   path string                              true "Dashboard id" format(uuid)
// @Param        body body dashboardapp.UpdateDashboardRequest true "Changes"
// @Success      200 {object} dto.Response{data=dashboardapp.DashboardResponse}
// @Failure      409 {object} dto.Response
// @Router       /dashboards/{id} [put]
func (h *DashboardHandler) Update(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req dashboardapp.UpdateDashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindError(c, err)
		return
	}
	resp, err := h.dashboards.Update(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete removes a dashboard
//
// @ID           deleteDashboard
// @Summary      Delete a dashboard
// @Tags         dashboards
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        id path string true "Dashboard id" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /dashboards/{id} [delete]
func (h *DashboardHandler) Delete(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.dashboards.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, nil, "Dashboard excluído")
}

// Patch applies a batch of patch operations; either all apply or none do
//
// @ID           patchDashboard
// @Summary      Apply patches to a dashboard
// @Tags         dashboards
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        id   path string                    true "Dashboard id" format(uuid)
// @Param        body body dashboardapp.PatchRequest true "Patches"
// @Success      200 {object} dto.Response{data=dashboardapp.DashboardResponse}
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /dashboards/{id}/patches [post]
func (h *DashboardHandler) Patch(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req dashboardapp.PatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindError(c, err)
		return
	}
	resp, err := h.dashboards.ApplyPatch(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Parse validates a JSON or YAML document and returns its normalized form without storing it
//
// @ID           parseDashboard
// @Summary      Validate a dashboard document
// @Tags         dashboards
// @Accept       json,plain
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        body body string true "JSON or YAML document"
// @Success      200 {object} dto.Response{data=dashboardapp.ParseResponse}
// @Failure      422 {object} dto.Response
// @Router       /dashboards/parse [post]
func (h *DashboardHandler) Parse(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.HandleBindError(c, err)
			return
		}
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Falha ao ler o documento")
		return
	}
	resp, err := h.dashboards.Parse(data)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Render resolves the data of every widget. Widget failures are reported per widget
// and never fail the request.
//
// @ID           renderDashboard
// @Summary      Render a dashboard
// @Tags         dashboards
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        id path string true "Dashboard id" format(uuid)
// @Success      200 {object} dto.Response{data=dashboard.RenderedDashboard}
// @Failure      404 {object} dto.Response
// @Router       /dashboards/{id}/render [get]
func (h *DashboardHandler) Render(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	rendered, err := h.dashboards.Render(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rendered)
}

// ExportPDF prints the rendered dashboard. ?landscape=false switches to portrait.
//
// @ID           exportDashboardPDF
// @Summary      Export a dashboard as PDF
// @Tags         dashboards
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        id        path  string true  "Dashboard id" format(uuid)
// @Param        landscape query bool   false "Landscape orientation" default(true)
// @Success      200 {file}   binary
// @Failure      503 {object} dto.Response
// @Router       /dashboards/{id}/export.pdf [get]
func (h *DashboardHandler) ExportPDF(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	landscape := true
	if raw := c.Query("landscape"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.ValidationError(c, []dto.ValidationDetail{{Field: "landscape", Message: "Deve ser true ou false"}})
			return
		}
		landscape = v
	}

	pdf, name, err := h.dashboards.ExportPDF(c.Request.Context(), tenantID, id, landscape)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
