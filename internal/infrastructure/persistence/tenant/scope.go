// Package tenant scopes GORM queries on app-owned tables to one tenant.
//
//	db.Scopes(tenant.Scope(tenantID)).Find(&dashboards)
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantRequired is returned when a scoped query is attempted without a tenant
var ErrTenantRequired = errors.New("tenant: tenant_id is required")

// Column is the tenant column shared by every table
const Column = "tenant_id"

// Scope restricts a query to tenantID. A nil tenant poisons the query instead of
// silently returning every tenant's rows.
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantRequired)
			return db
		}
		return db.Where(db.Statement.Quote(Column)+" = ?", tenantID)
	}
}

// DB hands out tenant-scoped sessions
type DB struct {
	db *gorm.DB
}

// New wraps db
func New(db *gorm.DB) *DB {
	return &DB{db: db}
}

// For returns a session bound to ctx and restricted to tenantID
func (t *DB) For(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return t.db.WithContext(ctx).Scopes(Scope(tenantID))
}

// Transaction runs fn in a transaction whose session is restricted to tenantID
func (t *DB) Transaction(ctx context.Context, tenantID uuid.UUID, fn func(tx *gorm.DB) error) error {
	if tenantID == uuid.Nil {
		return ErrTenantRequired
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx.Scopes(Scope(tenantID)))
	})
}

// Unscoped returns the raw handle, for inserts and migrations
func (t *DB) Unscoped() *gorm.DB {
	return t.db
}
