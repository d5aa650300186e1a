package shared

import (
	"time"

	"github.com/google/uuid"
)

// TenantEntity provides the common columns of app-owned tables
type TenantEntity struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTenantEntity creates a tenant entity with a generated ID
func NewTenantEntity(tenantID uuid.UUID) TenantEntity {
	now := time.Now()
	return TenantEntity{
		ID:        uuid.New(),
		TenantID:  tenantID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch bumps the update timestamp
func (e *TenantEntity) Touch() {
	e.UpdatedAt = time.Now()
}
