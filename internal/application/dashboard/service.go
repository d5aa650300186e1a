// Package dashboard manages stored dashboards: CRUD, LLM-issued patches, rendering with
// live record data and PDF export.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/gestao/internal/domain/dashboard"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/infrastructure/export"
	"github.com/erp/gestao/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrExportUnavailable is returned by ExportPDF when no PDF renderer is configured
var ErrExportUnavailable = shared.NewDomainError("EXPORT_UNAVAILABLE", "Exportação de PDF indisponível")

// PatchObserver is told how many patch operations were applied
type PatchObserver interface {
	DashboardPatched(ctx context.Context, ops int)
}

// Service is the dashboard application service
type Service struct {
	repo     dashboard.Repository
	records  RecordSource
	renderer *dashboard.Renderer
	pdf      export.PDFRenderer
	datasets map[string]dashboard.Query
	observer PatchObserver
	now      func() time.Time
}

// NewService creates a new dashboard Service. pdf may be nil when export is disabled.
func NewService(repo dashboard.Repository, records RecordSource, renderer *dashboard.Renderer, pdf export.PDFRenderer) *Service {
	if renderer == nil {
		renderer = dashboard.NewRenderer()
	}
	return &Service{
		repo:     repo,
		records:  records,
		renderer: renderer,
		pdf:      pdf,
		datasets: DefaultDatasets(),
		now:      time.Now,
	}
}

// WithDatasets replaces the named queries available to dataSource.ref
func (s *Service) WithDatasets(datasets map[string]dashboard.Query) *Service {
	s.datasets = datasets
	return s
}

// WithObserver sets the patch observer
func (s *Service) WithObserver(o PatchObserver) *Service {
	s.observer = o
	return s
}

// Datasets returns the names usable as dataSource.ref
func (s *Service) Datasets() map[string]dashboard.Query {
	return s.datasets
}

// Create parses the document and stores a new dashboard
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req CreateDashboardRequest) (*DashboardResponse, error) {
	doc := &dashboard.Document{}
	if len(req.Document) > 0 && string(req.Document) != "null" {
		parsed, err := dashboard.Parse(req.Document)
		if err != nil {
			return nil, err
		}
		doc = parsed
	}

	d, err := dashboard.NewDashboard(tenantID, req.Name, req.Description, doc)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("dashboard created",
		zap.String("dashboard_id", d.ID.String()),
		zap.Int("widgets", len(d.Document.WidgetIDs())))
	resp := ToDashboardResponse(d)
	return &resp, nil
}

// Get returns one dashboard
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*DashboardResponse, error) {
	d, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToDashboardResponse(d)
	return &resp, nil
}

// List returns a page of dashboard summaries
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) (shared.Paginated[DashboardListItem], error) {
	f := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.OrderDir == "" {
		f.OrderDir = "desc"
	}

	list, total, err := s.repo.List(ctx, tenantID, f)
	if err != nil {
		return shared.Paginated[DashboardListItem]{}, err
	}
	items := make([]DashboardListItem, len(list))
	for i := range list {
		items[i] = ToDashboardListItem(&list[i])
	}
	return shared.NewPaginated(items, total, f.Page, f.PageSize), nil
}

// Update renames the dashboard and/or replaces its document
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, req UpdateDashboardRequest) (*DashboardResponse, error) {
	d, err := s.load(ctx, tenantID, id, req.Version)
	if err != nil {
		return nil, err
	}

	if req.Name != nil || req.Description != nil {
		name, desc := d.Name, d.Description
		if req.Name != nil {
			name = *req.Name
		}
		if req.Description != nil {
			desc = *req.Description
		}
		if err := d.Rename(name, desc); err != nil {
			return nil, err
		}
	}
	if len(req.Document) > 0 && string(req.Document) != "null" {
		doc, err := dashboard.Parse(req.Document)
		if err != nil {
			return nil, err
		}
		if err := d.Replace(doc); err != nil {
			return nil, err
		}
	}
	if d.Version == req.Version {
		return nil, shared.NewValidationError("document", "nenhuma alteração informada")
	}
	// several changes in one request still advance the version once
	d.Version = req.Version + 1

	if err := s.repo.Update(ctx, d, req.Version); err != nil {
		return nil, err
	}
	logger.L(ctx).Info("dashboard updated",
		zap.String("dashboard_id", d.ID.String()),
		zap.Int("version", d.Version))
	resp := ToDashboardResponse(d)
	return &resp, nil
}

// Delete removes a dashboard
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	logger.L(ctx).Info("dashboard deleted", zap.String("dashboard_id", id.String()))
	return nil
}

// ApplyPatch applies a patch batch to the version the client read. The batch is atomic:
// either every patch applies and the result validates, or nothing is stored.
func (s *Service) ApplyPatch(ctx context.Context, tenantID, id uuid.UUID, req PatchRequest) (*DashboardResponse, error) {
	d, err := s.load(ctx, tenantID, id, req.Version)
	if err != nil {
		return nil, err
	}
	if err := d.ApplyPatches(req.Patches); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, d, req.Version); err != nil {
		return nil, err
	}

	if s.observer != nil {
		s.observer.DashboardPatched(ctx, len(req.Patches))
	}
	ops := make([]string, len(req.Patches))
	for i, p := range req.Patches {
		ops[i] = string(p.Op)
	}
	logger.L(ctx).Info("dashboard patched",
		zap.String("dashboard_id", d.ID.String()),
		zap.Strings("ops", ops),
		zap.Int("version", d.Version))
	resp := ToDashboardResponse(d)
	return &resp, nil
}

// Parse validates and normalizes a JSON or YAML document without storing it
func (s *Service) Parse(data []byte) (*ParseResponse, error) {
	doc, err := dashboard.Parse(data)
	if err != nil {
		return nil, err
	}
	return &ParseResponse{Document: *doc, WidgetIDs: doc.WidgetIDs()}, nil
}

// Render loads a dashboard and resolves the data of every widget
func (s *Service) Render(ctx context.Context, tenantID, id uuid.UUID) (*dashboard.RenderedDashboard, error) {
	d, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return s.RenderDocument(ctx, tenantID, &d.Document), nil
}

// RenderDocument renders a document that is not necessarily stored
func (s *Service) RenderDocument(ctx context.Context, tenantID uuid.UUID, doc *dashboard.Document) *dashboard.RenderedDashboard {
	resolver := NewResolver(s.records, tenantID, s.datasets)
	rendered := s.renderer.Render(ctx, doc, resolver)
	if rendered.Errors > 0 {
		logger.L(ctx).Warn("dashboard rendered with widget errors", zap.Int("errors", rendered.Errors))
	}
	return &rendered
}

// ExportPDF renders a dashboard and prints it. It returns the PDF and a file name.
func (s *Service) ExportPDF(ctx context.Context, tenantID, id uuid.UUID, landscape bool) ([]byte, string, error) {
	if s.pdf == nil {
		return nil, "", ErrExportUnavailable
	}
	d, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, "", err
	}

	rendered := s.RenderDocument(ctx, tenantID, &d.Document)
	if rendered.Title == "" {
		rendered.Title = d.Name
	}
	html, err := export.DashboardHTML(*rendered)
	if err != nil {
		return nil, "", err
	}
	pdf, err := s.pdf.RenderPDF(ctx, export.PDFRequest{HTML: html, Landscape: landscape})
	if err != nil {
		return nil, "", fmt.Errorf("%w: export dashboard %s: %w", shared.ErrUpstream, d.ID, err)
	}
	return pdf, fileName(d.Name, s.now()), nil
}

// load fetches the dashboard and rejects stale versions before any work is done
func (s *Service) load(ctx context.Context, tenantID, id uuid.UUID, version int) (*dashboard.Dashboard, error) {
	d, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if d.Version != version {
		return nil, shared.ErrConcurrencyConflict
	}
	return d, nil
}

func fileName(name string, at time.Time) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, name)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "dashboard"
	}
	return fmt.Sprintf("%s-%s.pdf", slug, at.Format("20060102"))
}
