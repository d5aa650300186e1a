package drive

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/erp/gestao/internal/domain/drive"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/infrastructure/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is a mock implementation of drive.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*drive.File, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*drive.File), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, tenantID uuid.UUID, folder string, filter shared.Filter) ([]drive.File, int64, error) {
	args := m.Called(ctx, tenantID, folder, filter)
	return args.Get(0).([]drive.File), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) Folders(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, f *drive.File) error {
	return m.Called(ctx, f).Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func newTestService(maxSize int64) (*Service, *MockRepository, *storage.MemoryObjectStorage) {
	repo := &MockRepository{}
	objects := storage.NewMemoryObjectStorage("https://files.test")
	return NewService(repo, objects, maxSize, 0), repo, objects
}

func TestService_Upload(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("stores object and row", func(t *testing.T) {
		svc, repo, objects := newTestService(0)
		var saved *drive.File
		repo.On("Create", mock.Anything, mock.AnythingOfType("*drive.File")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*drive.File) }).
			Return(nil)

		resp, err := svc.Upload(ctx, tenantID, UploadRequest{
			Folder:      "notas",
			Name:        "nota.xml",
			ContentType: "application/xml",
			Body:        strings.NewReader("<nfe/>"),
		})
		require.NoError(t, err)

		assert.Equal(t, "/notas", resp.Folder)
		assert.Equal(t, int64(6), resp.Size)
		// sha256 of "<nfe/>"
		assert.Len(t, resp.Checksum, 64)
		require.NotNil(t, saved)
		assert.Equal(t, tenantID, saved.TenantID)

		data, contentType, ok := objects.Object(saved.StorageKey)
		require.True(t, ok)
		assert.Equal(t, "<nfe/>", string(data))
		assert.Equal(t, "application/xml", contentType)
	})

	t.Run("rejects files over the limit", func(t *testing.T) {
		svc, repo, _ := newTestService(4)
		_, err := svc.Upload(ctx, tenantID, UploadRequest{Name: "a.txt", Body: strings.NewReader("12345")})
		assert.ErrorIs(t, err, ErrFileTooLarge)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects empty and unnamed files", func(t *testing.T) {
		svc, _, _ := newTestService(0)
		_, err := svc.Upload(ctx, tenantID, UploadRequest{Name: "", Body: strings.NewReader("")})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = svc.Upload(ctx, tenantID, UploadRequest{Name: "a.txt"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("removes object when the row cannot be stored", func(t *testing.T) {
		svc, repo, objects := newTestService(0)
		var saved *drive.File
		repo.On("Create", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*drive.File) }).
			Return(errors.New("db down"))

		_, err := svc.Upload(ctx, tenantID, UploadRequest{Name: "a.txt", Body: strings.NewReader("abc")})
		require.Error(t, err)
		require.NotNil(t, saved)
		_, _, ok := objects.Object(saved.StorageKey)
		assert.False(t, ok)
	})
}

func TestService_List(t *testing.T) {
	svc, repo, _ := newTestService(0)
	ctx := context.Background()
	tenantID := uuid.New()

	f, err := drive.NewFile(tenantID, "/rh", "folha.pdf", "application/pdf", 10)
	require.NoError(t, err)
	repo.On("List", mock.Anything, tenantID, "/rh", shared.Filter{Page: 1, PageSize: 50, OrderDir: "desc"}).
		Return([]drive.File{*f}, int64(1), nil)
	repo.On("Folders", mock.Anything, tenantID).Return([]string{"/", "/rh"}, nil)

	resp, err := svc.List(ctx, tenantID, ListFilter{Folder: "rh/"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "folha.pdf", resp.Items[0].Name)
	assert.Equal(t, []string{"/", "/rh"}, resp.Folders)

	_, err = svc.List(ctx, tenantID, ListFilter{Folder: "../x"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestService_DownloadAndDelete(t *testing.T) {
	svc, repo, objects := newTestService(0)
	ctx := context.Background()
	tenantID := uuid.New()

	f, err := drive.NewFile(tenantID, "/", "contrato.pdf", "application/pdf", 3)
	require.NoError(t, err)
	require.NoError(t, objects.Upload(ctx, f.StorageKey, strings.NewReader("pdf"), 3, "application/pdf"))
	repo.On("FindByID", mock.Anything, tenantID, f.ID).Return(f, nil)
	repo.On("Delete", mock.Anything, tenantID, f.ID).Return(nil)

	dl, err := svc.Download(ctx, tenantID, f.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dl.URL, "https://files.test/"+f.StorageKey))
	assert.Equal(t, "contrato.pdf", dl.Name)

	require.NoError(t, svc.Delete(ctx, tenantID, f.ID))
	_, _, ok := objects.Object(f.StorageKey)
	assert.False(t, ok)

	_, err = svc.Content(ctx, tenantID, f.ID)
	assert.ErrorIs(t, err, drive.ErrObjectNotFound)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	missing := uuid.New()
	repo.On("FindByID", mock.Anything, tenantID, missing).Return(nil, shared.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, tenantID, missing), shared.ErrNotFound)
	_, err = svc.Download(ctx, tenantID, missing)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	repo.AssertExpectations(t)
}

func TestService_ContentURL(t *testing.T) {
	svc, repo, objects := newTestService(0)
	svc.WithContentURL("/api/v1/drive/files/")
	ctx := context.Background()
	tenantID := uuid.New()

	f, err := drive.NewFile(tenantID, "rh", "ferias.txt", "text/plain", 5)
	require.NoError(t, err)
	require.NoError(t, objects.Upload(ctx, f.StorageKey, strings.NewReader("julho"), 5, "text/plain"))
	repo.On("FindByID", mock.Anything, tenantID, f.ID).Return(f, nil)

	dl, err := svc.Download(ctx, tenantID, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/drive/files/"+f.ID.String()+"/content", dl.URL)
	assert.True(t, dl.ExpiresAt.IsZero())

	content, err := svc.Content(ctx, tenantID, f.ID)
	require.NoError(t, err)
	defer content.Body.Close()
	body, err := io.ReadAll(content.Body)
	require.NoError(t, err)
	assert.Equal(t, "julho", string(body))
	assert.Equal(t, "text/plain", content.ContentType)
	assert.Equal(t, "ferias.txt", content.Name)
}
