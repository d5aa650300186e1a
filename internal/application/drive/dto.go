package drive

import (
	"io"
	"time"

	"github.com/erp/gestao/internal/domain/drive"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/google/uuid"
)

// UploadRequest carries one multipart file part
type UploadRequest struct {
	Folder      string
	Name        string
	ContentType string
	Body        io.Reader
	UploadedBy  *uuid.UUID
}

// ListFilter selects files
type ListFilter struct {
	Folder   string `form:"folder" binding:"omitempty,max=500"`
	Search   string `form:"search" binding:"omitempty,max=100"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=name size created_at updated_at"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// FileResponse is the public view of a file
type FileResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Folder      string     `json:"folder"`
	ContentType string     `json:"content_type"`
	Size        int64      `json:"size"`
	Checksum    string     `json:"checksum"`
	UploadedBy  *uuid.UUID `json:"uploaded_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FileListResponse is a page of files plus every folder of the tenant
type FileListResponse struct {
	shared.Paginated[FileResponse]
	Folders []string `json:"folders"`
}

// DownloadResponse points at a short-lived presigned URL, or at the API content route
// (no expiry) when objects are kept in memory
type DownloadResponse struct {
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
}

// ContentResponse streams the bytes of a file
type ContentResponse struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// ToFileResponse converts a domain file
func ToFileResponse(f *drive.File) FileResponse {
	return FileResponse{
		ID:          f.ID,
		Name:        f.Name,
		Folder:      f.Folder,
		ContentType: f.ContentType,
		Size:        f.Size,
		Checksum:    f.Checksum,
		UploadedBy:  f.UploadedBy,
		CreatedAt:   f.CreatedAt,
	}
}
