package persistence

import (
	"context"
	"strings"

	"github.com/erp/gestao/internal/domain/drive"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/infrastructure/persistence/models"
	"github.com/erp/gestao/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DriveFileSortFields maps API sort names to drive.arquivos columns
var DriveFileSortFields = map[string]string{
	"name":       "nome",
	"size":       "tamanho",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// GormDriveFileRepository implements drive.Repository using GORM
type GormDriveFileRepository struct {
	db *tenant.DB
}

// NewGormDriveFileRepository creates a new GormDriveFileRepository
func NewGormDriveFileRepository(db *gorm.DB) *GormDriveFileRepository {
	return &GormDriveFileRepository{db: tenant.New(db)}
}

var _ drive.Repository = (*GormDriveFileRepository)(nil)

// FindByID finds a file by ID within a tenant
func (r *GormDriveFileRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*drive.File, error) {
	var model models.DriveFileModel
	if err := r.db.For(ctx, tenantID).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "find file")
	}
	return model.ToDomain(), nil
}

// List returns a page of files. An empty folder lists every folder; Search matches the name.
func (r *GormDriveFileRepository) List(ctx context.Context, tenantID uuid.UUID, folder string, filter shared.Filter) ([]drive.File, int64, error) {
	query := r.db.For(ctx, tenantID).Model(&models.DriveFileModel{})
	if folder != "" {
		query = query.Where("pasta = ?", folder)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		query = query.Where(`LOWER(nome) LIKE ? ESCAPE '\'`, "%"+strings.ToLower(escapeLike(s))+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count files")
	}

	orderBy, ok := DriveFileSortFields[filter.OrderBy]
	if !ok {
		orderBy = "created_at"
	}
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.DriveFileModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, translateError(err, "list files")
	}
	out := make([]drive.File, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Folders lists the distinct folders holding files, sorted
func (r *GormDriveFileRepository) Folders(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	var folders []string
	err := r.db.For(ctx, tenantID).
		Model(&models.DriveFileModel{}).
		Distinct("pasta").
		Order("pasta").
		Pluck("pasta", &folders).Error
	if err != nil {
		return nil, translateError(err, "list folders")
	}
	return folders, nil
}

// Create inserts the metadata row
func (r *GormDriveFileRepository) Create(ctx context.Context, f *drive.File) error {
	if err := r.db.Unscoped().WithContext(ctx).Create(models.DriveFileModelFromDomain(f)).Error; err != nil {
		return translateError(err, "create file")
	}
	return nil
}

// Delete removes the metadata row
func (r *GormDriveFileRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.For(ctx, tenantID).Delete(&models.DriveFileModel{}, "id = ?", id)
	if result.Error != nil {
		return translateError(result.Error, "delete file")
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
