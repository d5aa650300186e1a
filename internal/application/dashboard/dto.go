package dashboard

import (
	"encoding/json"
	"time"

	"github.com/erp/gestao/internal/domain/dashboard"
	"github.com/google/uuid"
)

// ============================================================================
// Request DTOs
// ============================================================================

// CreateDashboardRequest creates a dashboard from a document. Document may be omitted
// for an empty dashboard.
type CreateDashboardRequest struct {
	Name        string          `json:"name" binding:"required,min=1,max=200"`
	Description string          `json:"description" binding:"max=2000"`
	Document    json.RawMessage `json:"document"`
}

// UpdateDashboardRequest replaces name, description and/or the whole document.
// Version is the version the client last read.
type UpdateDashboardRequest struct {
	Name        *string         `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string         `json:"description" binding:"omitempty,max=2000"`
	Document    json.RawMessage `json:"document"`
	Version     int             `json:"version" binding:"required,min=1"`
}

// PatchRequest applies a batch of patches atomically
type PatchRequest struct {
	Version int               `json:"version" binding:"required,min=1"`
	Patches []dashboard.Patch `json:"patches" binding:"required,min=1,max=50"`
}

// ListFilter represents filter options for the dashboard list
type ListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=name created_at updated_at"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ============================================================================
// Response DTOs
// ============================================================================

// DashboardResponse is a dashboard with its full document
type DashboardResponse struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Document    dashboard.Document `json:"document"`
	Version     int                `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// DashboardListItem is a dashboard summary in list responses
type DashboardListItem struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Widgets     int       `json:"widgets"`
	Version     int       `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ParseResponse is the normalized form of a submitted document
type ParseResponse struct {
	Document  dashboard.Document `json:"document"`
	WidgetIDs []string           `json:"widget_ids"`
}

// ============================================================================
// Conversion Functions
// ============================================================================

// ToDashboardResponse converts a domain Dashboard to DashboardResponse
func ToDashboardResponse(d *dashboard.Dashboard) DashboardResponse {
	return DashboardResponse{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Document:    d.Document,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// ToDashboardListItem converts a domain Dashboard to DashboardListItem
func ToDashboardListItem(d *dashboard.Dashboard) DashboardListItem {
	return DashboardListItem{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Widgets:     len(d.Document.WidgetIDs()),
		Version:     d.Version,
		UpdatedAt:   d.UpdatedAt,
	}
}
