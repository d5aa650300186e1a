package persistence

import (
	"context"
	"fmt"
	"testing"

	"github.com/erp/gestao/internal/domain/drive"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDriveDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec(`ATTACH DATABASE ':memory:' AS drive`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE drive.arquivos (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		nome TEXT NOT NULL,
		pasta TEXT NOT NULL DEFAULT '/',
		tipo_conteudo TEXT NOT NULL,
		tamanho INTEGER NOT NULL,
		checksum TEXT,
		chave_storage TEXT NOT NULL UNIQUE,
		enviado_por TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error)
	return db
}

func newDriveFile(t *testing.T, tenantID uuid.UUID, folder, name string, size int64) *drive.File {
	t.Helper()
	f, err := drive.NewFile(tenantID, folder, name, "application/pdf", size)
	require.NoError(t, err)
	return f
}

func TestGormDriveFileRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormDriveFileRepository(setupDriveDB(t))
	tenantA, tenantB := uuid.New(), uuid.New()
	uploader := uuid.New()

	contrato := newDriveFile(t, tenantA, "/contratos", "contrato_100%.pdf", 300)
	contrato.UploadedBy = &uploader
	contrato.Checksum = "abc"
	require.NoError(t, repo.Create(ctx, contrato))
	require.NoError(t, repo.Create(ctx, newDriveFile(t, tenantA, "/contratos", "aditivo.pdf", 100)))
	require.NoError(t, repo.Create(ctx, newDriveFile(t, tenantA, "/", "logo.pdf", 50)))
	require.NoError(t, repo.Create(ctx, newDriveFile(t, tenantB, "/outros", "x.pdf", 10)))

	got, err := repo.FindByID(ctx, tenantA, contrato.ID)
	require.NoError(t, err)
	assert.Equal(t, "contrato_100%.pdf", got.Name)
	assert.Equal(t, contrato.StorageKey, got.StorageKey)
	assert.Equal(t, "abc", got.Checksum)
	require.NotNil(t, got.UploadedBy)
	assert.Equal(t, uploader, *got.UploadedBy)

	_, err = repo.FindByID(ctx, tenantB, contrato.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	files, total, err := repo.List(ctx, tenantA, "/contratos", shared.Filter{Page: 1, PageSize: 10, OrderBy: "size", OrderDir: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, files, 2)
	assert.Equal(t, "aditivo.pdf", files[0].Name)

	_, total, err = repo.List(ctx, tenantA, "", shared.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	// LIKE wildcards in the search are literal
	files, total, err = repo.List(ctx, tenantA, "", shared.Filter{Search: "100%"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, contrato.ID, files[0].ID)

	folders, err := repo.Folders(ctx, tenantA)
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/contratos"}, folders)

	require.NoError(t, repo.Delete(ctx, tenantA, contrato.ID))
	assert.ErrorIs(t, repo.Delete(ctx, tenantA, contrato.ID), shared.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, tenantB, files[0].ID), shared.ErrNotFound)
}

func TestGormDriveFileRepository_DuplicateStorageKey(t *testing.T) {
	ctx := context.Background()
	repo := NewGormDriveFileRepository(setupDriveDB(t))
	tenantID := uuid.New()

	f := newDriveFile(t, tenantID, "/", "a.pdf", 1)
	require.NoError(t, repo.Create(ctx, f))

	dup := newDriveFile(t, tenantID, "/", "b.pdf", 1)
	dup.StorageKey = f.StorageKey
	assert.Error(t, repo.Create(ctx, dup))
}
