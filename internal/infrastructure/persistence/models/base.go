package models

import (
	"time"

	"github.com/erp/gestao/internal/domain/shared"
	"github.com/google/uuid"
)

// TenantModel provides the common columns of app-owned tables
type TenantModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts TenantModel to the domain TenantEntity
func (m *TenantModel) ToDomain() shared.TenantEntity {
	return shared.TenantEntity{
		ID:        m.ID,
		TenantID:  m.TenantID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainTenantEntity populates TenantModel from the domain TenantEntity
func (m *TenantModel) FromDomainTenantEntity(e shared.TenantEntity) {
	m.ID = e.ID
	m.TenantID = e.TenantID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}
