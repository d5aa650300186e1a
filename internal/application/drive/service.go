// Package drive implements the tenant file drive on top of object storage.
package drive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/erp/gestao/internal/domain/drive"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultMaxFileSize applies when no limit is configured
	DefaultMaxFileSize int64 = 25 << 20
	defaultURLTTL            = 15 * time.Minute
)

// ErrFileTooLarge is returned for uploads above the configured limit
var ErrFileTooLarge = shared.NewDomainError("FILE_TOO_LARGE", "Arquivo excede o tamanho máximo permitido")

// Service uploads, lists and removes drive files
type Service struct {
	repo       drive.Repository
	storage    drive.ObjectStorage
	maxSize    int64
	urlTTL     time.Duration
	contentURL string
}

// NewService creates the drive service. maxSize <= 0 uses DefaultMaxFileSize.
func NewService(repo drive.Repository, storage drive.ObjectStorage, maxSize int64, urlTTL time.Duration) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if urlTTL <= 0 {
		urlTTL = defaultURLTTL
	}
	return &Service{repo: repo, storage: storage, maxSize: maxSize, urlTTL: urlTTL}
}

// WithContentURL makes Download point at prefix/<id>/content instead of presigning.
// Used when the storage has no URL of its own, like the in-memory store.
func (s *Service) WithContentURL(prefix string) *Service {
	s.contentURL = strings.TrimSuffix(prefix, "/")
	return s
}

// MaxSize is the largest accepted upload in bytes
func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// Upload stores the object and then its metadata row. A failed insert removes the object again.
func (s *Service) Upload(ctx context.Context, tenantID uuid.UUID, req UploadRequest) (*FileResponse, error) {
	if req.Body == nil {
		return nil, shared.NewValidationError("file", "arquivo obrigatório")
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrFileTooLarge
	}

	f, err := drive.NewFile(tenantID, req.Folder, req.Name, req.ContentType, int64(len(data)))
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	f.Checksum = hex.EncodeToString(sum[:])
	f.UploadedBy = req.UploadedBy

	if err := s.storage.Upload(ctx, f.StorageKey, bytes.NewReader(data), f.Size, f.ContentType); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrUpstream, err)
	}
	if err := s.repo.Create(ctx, f); err != nil {
		if derr := s.storage.DeleteObject(ctx, f.StorageKey); derr != nil {
			logger.L(ctx).Warn("failed to remove orphaned object",
				zap.String("storage_key", f.StorageKey),
				zap.Error(derr),
			)
		}
		return nil, err
	}

	logger.L(ctx).Info("file uploaded",
		zap.String("file_id", f.ID.String()),
		zap.String("folder", f.Folder),
		zap.Int64("size", f.Size),
	)
	resp := ToFileResponse(f)
	return &resp, nil
}

// Get returns the metadata of one file
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*FileResponse, error) {
	f, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToFileResponse(f)
	return &resp, nil
}

// List returns a page of files of a folder, or of every folder when none is given
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) (*FileListResponse, error) {
	folder := ""
	if filter.Folder != "" {
		cleaned, ok := drive.CleanFolder(filter.Folder)
		if !ok {
			return nil, shared.NewValidationError("folder", "pasta inválida")
		}
		folder = cleaned
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	files, total, err := s.repo.List(ctx, tenantID, folder, shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
	})
	if err != nil {
		return nil, err
	}
	folders, err := s.repo.Folders(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	items := make([]FileResponse, len(files))
	for i := range files {
		items[i] = ToFileResponse(&files[i])
	}
	return &FileListResponse{
		Paginated: shared.NewPaginated(items, total, filter.Page, filter.PageSize),
		Folders:   folders,
	}, nil
}

// Download returns a presigned URL valid for the configured TTL
func (s *Service) Download(ctx context.Context, tenantID, id uuid.UUID) (*DownloadResponse, error) {
	f, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := &DownloadResponse{Name: f.Name, ContentType: f.ContentType, Size: f.Size}
	if s.contentURL != "" {
		resp.URL = s.contentURL + "/" + f.ID.String() + "/content"
		return resp, nil
	}
	resp.URL, resp.ExpiresAt, err = s.storage.GenerateDownloadURL(ctx, f.StorageKey, f.Name, s.urlTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrUpstream, err)
	}
	return resp, nil
}

// Content opens the stored bytes of a file of the tenant
func (s *Service) Content(ctx context.Context, tenantID, id uuid.UUID) (*ContentResponse, error) {
	f, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	body, err := s.storage.Open(ctx, f.StorageKey)
	if err != nil {
		if errors.Is(err, drive.ErrObjectNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrUpstream, err)
	}
	return &ContentResponse{Name: f.Name, ContentType: f.ContentType, Size: f.Size, Body: body}, nil
}

// Delete removes the object first and then the row, so a failure leaves the row to retry with
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	f, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteObject(ctx, f.StorageKey); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrUpstream, err)
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	logger.L(ctx).Info("file deleted", zap.String("file_id", id.String()))
	return nil
}
