package dashboard

import (
	"context"
	"strings"

	"github.com/erp/gestao/internal/domain/shared"
	"github.com/google/uuid"
)

// Dashboard is a named, versioned document owned by a tenant
type Dashboard struct {
	shared.TenantEntity
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Document    Document `json:"document"`
	Version     int      `json:"version"`
}

// NewDashboard creates a dashboard at version 1 from a validated document
func NewDashboard(tenantID uuid.UUID, name, description string, doc *Document) (*Dashboard, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("name", "campo obrigatório")
	}
	if len(name) > 200 {
		return nil, shared.NewValidationError("name", "deve ter no máximo 200 caracteres")
	}
	if doc == nil {
		doc = &Document{}
	}
	Normalize(doc)
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return &Dashboard{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Name:         name,
		Description:  strings.TrimSpace(description),
		Document:     *doc,
		Version:      1,
	}, nil
}

// Rename changes name and description
func (d *Dashboard) Rename(name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("name", "campo obrigatório")
	}
	d.Name = name
	d.Description = strings.TrimSpace(description)
	d.bump()
	return nil
}

// Replace swaps the whole document
func (d *Dashboard) Replace(doc *Document) error {
	Normalize(doc)
	if err := Validate(doc); err != nil {
		return err
	}
	d.Document = *doc
	d.bump()
	return nil
}

// ApplyPatches applies a batch of patches atomically
func (d *Dashboard) ApplyPatches(patches []Patch) error {
	next, err := ApplyPatches(&d.Document, patches)
	if err != nil {
		return err
	}
	d.Document = *next
	d.bump()
	return nil
}

func (d *Dashboard) bump() {
	d.Version++
	d.Touch()
}

// Repository persists dashboards. Every lookup is scoped to the tenant.
type Repository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Dashboard, error)
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Dashboard, int64, error)
	Create(ctx context.Context, d *Dashboard) error
	// Update stores d only when the stored version is expectedVersion, else ErrConcurrencyConflict
	Update(ctx context.Context, d *Dashboard, expectedVersion int) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
