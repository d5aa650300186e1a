package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	driveapp "github.com/erp/gestao/internal/application/drive"
	"github.com/erp/gestao/internal/domain/drive"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/infrastructure/storage"
	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/erp/gestao/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newDriveRouter(svc *MockDriveService, maxUpload int64) *gin.Engine {
	h := NewDriveHandler(svc)
	r := newEngine()
	r.Use(middleware.BodyLimit(1<<20, map[string]int64{"/drive/files": maxUpload}))
	r.GET("/drive/files", h.List)
	r.POST("/drive/files", h.Upload)
	r.GET("/drive/files/:id/download", h.Download)
	r.GET("/drive/files/:id/content", h.Content)
	r.DELETE("/drive/files/:id", h.Delete)
	return r
}

func multipartUpload(t *testing.T, folder, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if folder != "" {
		require.NoError(t, mw.WriteField("folder", folder))
	}
	if name != "" {
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/drive/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDriveHandler_Upload(t *testing.T) {
	svc := &MockDriveService{}
	r := newDriveRouter(svc, 1<<20)
	id := uuid.New()
	content := []byte("nota fiscal")

	svc.On("Upload", mock.Anything, testTenant, mock.MatchedBy(func(req driveapp.UploadRequest) bool {
		body, err := io.ReadAll(req.Body)
		return err == nil && bytes.Equal(body, content) &&
			req.Folder == "notas/2026" && req.Name == "nf-001.txt" && req.UploadedBy == nil
	})).Return(&driveapp.FileResponse{ID: id, Name: "nf-001.txt", Folder: "notas/2026", Size: int64(len(content))}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartUpload(t, "notas/2026", "nf-001.txt", content))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got driveapp.FileResponse
	decodeData(t, decode(t, w).Data, &got)
	assert.Equal(t, id, got.ID)
	svc.AssertExpectations(t)
}

func TestDriveHandler_UploadMissingFile(t *testing.T) {
	svc := &MockDriveService{}
	r := newDriveRouter(svc, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartUpload(t, "notas", "", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "file", resp.Error.Details[0].Field)
	svc.AssertNotCalled(t, "Upload")
}

func TestDriveHandler_UploadTooLarge(t *testing.T) {
	svc := &MockDriveService{}
	r := newDriveRouter(svc, 64)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartUpload(t, "", "grande.bin", bytes.Repeat([]byte("x"), 4096)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	svc.AssertNotCalled(t, "Upload")
}

func TestDriveHandler_List(t *testing.T) {
	svc := &MockDriveService{}
	r := newDriveRouter(svc, 1<<20)

	list := &driveapp.FileListResponse{Folders: []string{"notas", "contratos"}}
	list.Items = []driveapp.FileResponse{{ID: uuid.New(), Name: "a.pdf", Folder: "notas"}}
	list.Total = 1
	svc.On("List", mock.Anything, testTenant, driveapp.ListFilter{Folder: "notas", OrderBy: "name"}).Return(list, nil)

	w := doRequest(r, http.MethodGet, "/drive/files?folder=notas&order_by=name", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got driveapp.FileListResponse
	decodeData(t, decode(t, w).Data, &got)
	assert.Equal(t, []string{"notas", "contratos"}, got.Folders)
	require.Len(t, got.Items, 1)

	w = doRequest(r, http.MethodGet, "/drive/files?order_by=owner", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestDriveHandler_Download(t *testing.T) {
	svc := &MockDriveService{}
	r := newDriveRouter(svc, 1<<20)
	id := uuid.New()
	url := "https://storage.example.com/bucket/key?X-Amz-Signature=abc"

	svc.On("Download", mock.Anything, testTenant, id).Return(&driveapp.DownloadResponse{
		URL:       url,
		ExpiresAt: time.Now().Add(15 * time.Minute),
		Name:      "a.pdf",
	}, nil)

	w := doRequest(r, http.MethodGet, "/drive/files/"+id.String()+"/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got driveapp.DownloadResponse
	decodeData(t, decode(t, w).Data, &got)
	assert.Equal(t, url, got.URL)

	w = doRequest(r, http.MethodGet, "/drive/files/"+id.String()+"/download?redirect=true", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, url, w.Header().Get("Location"))
}

func TestDriveHandler_Content(t *testing.T) {
	svc := &MockDriveService{}
	r := newDriveRouter(svc, 1<<20)
	id := uuid.New()

	svc.On("Content", mock.Anything, testTenant, id).Return(&driveapp.ContentResponse{
		Name:        "relatório março.csv",
		ContentType: "text/csv",
		Size:        9,
		Body:        io.NopCloser(strings.NewReader("a;b\n1;2\n")),
	}, nil)

	w := doRequest(r, http.MethodGet, "/drive/files/"+id.String()+"/content", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a;b\n1;2\n", w.Body.String())
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	other := uuid.New()
	svc.On("Content", mock.Anything, testTenant, other).Return(nil, shared.ErrNotFound)
	w = doRequest(r, http.MethodGet, "/drive/files/"+other.String()+"/content", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}

// memoryFiles is a drive.Repository over a map, scoped by tenant like the gorm one
type memoryFiles struct {
	mu    sync.Mutex
	files map[uuid.UUID]drive.File
}

func (m *memoryFiles) FindByID(_ context.Context, tenantID, id uuid.UUID) (*drive.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || f.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return &f, nil
}

func (m *memoryFiles) List(context.Context, uuid.UUID, string, shared.Filter) ([]drive.File, int64, error) {
	return nil, 0, nil
}

func (m *memoryFiles) Folders(context.Context, uuid.UUID) ([]string, error) { return nil, nil }

func (m *memoryFiles) Create(_ context.Context, f *drive.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = *f
	return nil
}

func (m *memoryFiles) Delete(_ context.Context, _, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, id)
	return nil
}

// Without object storage the download URL points at the content route of the API
func TestDriveHandler_MemoryStorageRoundTrip(t *testing.T) {
	svc := driveapp.NewService(&memoryFiles{files: map[uuid.UUID]drive.File{}},
		storage.NewMemoryObjectStorage(""), 0, 0).WithContentURL("/drive/files")
	h := NewDriveHandler(svc)

	r := newEngine()
	r.POST("/drive/files", h.Upload)
	r.GET("/drive/files/:id/download", h.Download)
	r.GET("/drive/files/:id/content", h.Content)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartUpload(t, "notas", "nf.txt", []byte("nota fiscal")))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var uploaded driveapp.FileResponse
	decodeData(t, decode(t, w).Data, &uploaded)

	w = doRequest(r, http.MethodGet, "/drive/files/"+uploaded.ID.String()+"/download?redirect=true", nil)
	require.Equal(t, http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	assert.Equal(t, "/drive/files/"+uploaded.ID.String()+"/content", location)

	w = doRequest(r, http.MethodGet, location, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nota fiscal", w.Body.String())

	other := gin.New()
	other.Use(middleware.RequestID(), withTenant(uuid.New()))
	other.GET("/drive/files/:id/content", h.Content)
	w = doRequest(other, http.MethodGet, location, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDriveHandler_Delete(t *testing.T) {
	svc := &MockDriveService{}
	r := newDriveRouter(svc, 1<<20)
	id := uuid.New()
	missing := uuid.New()

	svc.On("Delete", mock.Anything, testTenant, id).Return(nil)
	svc.On("Delete", mock.Anything, testTenant, missing).Return(shared.ErrNotFound)

	w := doRequest(r, http.MethodDelete, "/drive/files/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodDelete, "/drive/files/"+missing.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}
