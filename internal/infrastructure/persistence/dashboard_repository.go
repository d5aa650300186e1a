package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/erp/gestao/internal/domain/dashboard"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/infrastructure/persistence/models"
	"github.com/erp/gestao/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DashboardSortFields defines allowed sort fields for dashboards
var DashboardSortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
}

// GormDashboardRepository implements dashboard.Repository using GORM
type GormDashboardRepository struct {
	db *tenant.DB
}

// NewGormDashboardRepository creates a new GormDashboardRepository
func NewGormDashboardRepository(db *gorm.DB) *GormDashboardRepository {
	return &GormDashboardRepository{db: tenant.New(db)}
}

var _ dashboard.Repository = (*GormDashboardRepository)(nil)

// FindByID finds a dashboard by ID within a tenant
func (r *GormDashboardRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*dashboard.Dashboard, error) {
	var model models.DashboardModel
	if err := r.db.For(ctx, tenantID).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "find dashboard")
	}
	return model.ToDomain()
}

// List returns a page of dashboards and the total count. Search matches the name.
func (r *GormDashboardRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]dashboard.Dashboard, int64, error) {
	query := r.db.For(ctx, tenantID).Model(&models.DashboardModel{})
	if s := strings.TrimSpace(filter.Search); s != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(escapeLike(s))+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count dashboards")
	}

	orderBy := "updated_at"
	if DashboardSortFields[filter.OrderBy] {
		orderBy = filter.OrderBy
	}
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.DashboardModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, translateError(err, "list dashboards")
	}

	out := make([]dashboard.Dashboard, 0, len(rows))
	for i := range rows {
		d, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, nil
}

// Create inserts a new dashboard
func (r *GormDashboardRepository) Create(ctx context.Context, d *dashboard.Dashboard) error {
	model, err := models.DashboardModelFromDomain(d)
	if err != nil {
		return err
	}
	if err := r.db.Unscoped().WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, "create dashboard")
	}
	return nil
}

// Update stores d when the stored version still equals expectedVersion
func (r *GormDashboardRepository) Update(ctx context.Context, d *dashboard.Dashboard, expectedVersion int) error {
	model, err := models.DashboardModelFromDomain(d)
	if err != nil {
		return err
	}

	result := r.db.For(ctx, d.TenantID).
		Model(&models.DashboardModel{}).
		Where("id = ? AND version = ?", d.ID, expectedVersion).
		Updates(map[string]any{
			"name":        model.Name,
			"description": model.Description,
			"document":    model.Document,
			"version":     model.Version,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return translateError(result.Error, "update dashboard")
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.For(ctx, d.TenantID).Model(&models.DashboardModel{}).Where("id = ?", d.ID).Count(&count).Error; err != nil {
		return translateError(err, "update dashboard")
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return shared.ErrConcurrencyConflict
}

// Delete removes a dashboard
func (r *GormDashboardRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.For(ctx, tenantID).Delete(&models.DashboardModel{}, "id = ?", id)
	if result.Error != nil {
		return translateError(result.Error, "delete dashboard")
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
