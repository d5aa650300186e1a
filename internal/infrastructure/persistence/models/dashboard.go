package models

import (
	"encoding/json"
	"fmt"

	"github.com/erp/gestao/internal/domain/dashboard"
)

// DashboardModel is the GORM model for apps.dashboards
type DashboardModel struct {
	TenantModel
	Name        string `gorm:"type:varchar(200);not null"`
	Description string `gorm:"type:text"`
	Document    string `gorm:"type:jsonb;not null"`
	Version     int    `gorm:"not null;default:1"`
}

// TableName returns the table name for DashboardModel
func (DashboardModel) TableName() string {
	return "apps.dashboards"
}

// ToDomain converts DashboardModel to the domain Dashboard
func (m *DashboardModel) ToDomain() (*dashboard.Dashboard, error) {
	var doc dashboard.Document
	if err := json.Unmarshal([]byte(m.Document), &doc); err != nil {
		return nil, fmt.Errorf("decode dashboard %s: %w", m.ID, err)
	}
	if doc.Widgets == nil {
		doc.Widgets = []dashboard.Widget{}
	}
	return &dashboard.Dashboard{
		TenantEntity: m.TenantModel.ToDomain(),
		Name:         m.Name,
		Description:  m.Description,
		Document:     doc,
		Version:      m.Version,
	}, nil
}

// DashboardModelFromDomain creates a DashboardModel from the domain Dashboard
func DashboardModelFromDomain(d *dashboard.Dashboard) (*DashboardModel, error) {
	doc, err := json.Marshal(d.Document)
	if err != nil {
		return nil, fmt.Errorf("encode dashboard %s: %w", d.ID, err)
	}
	m := &DashboardModel{
		Name:        d.Name,
		Description: d.Description,
		Document:    string(doc),
		Version:     d.Version,
	}
	m.FromDomainTenantEntity(d.TenantEntity)
	return m, nil
}
