// Package drive models files uploaded by a tenant and kept in object storage.
package drive

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erp/gestao/internal/domain/shared"
	"github.com/google/uuid"
)

const (
	// RootFolder is the folder of files uploaded without one
	RootFolder = "/"

	maxNameLength   = 255
	maxFolderLength = 500
)

// File is the metadata row of a stored object
type File struct {
	shared.TenantEntity
	Name        string     `json:"name"`
	Folder      string     `json:"folder"`
	ContentType string     `json:"content_type"`
	Size        int64      `json:"size"`
	Checksum    string     `json:"checksum"`
	StorageKey  string     `json:"-"`
	UploadedBy  *uuid.UUID `json:"uploaded_by,omitempty"`
}

// NewFile validates the metadata of an upload and assigns its storage key
func NewFile(tenantID uuid.UUID, folder, name, contentType string, size int64) (*File, error) {
	verr := &shared.ValidationError{}

	name = CleanName(name)
	switch {
	case name == "":
		verr.Add("name", "nome do arquivo obrigatório")
	case utf8.RuneCountInString(name) > maxNameLength:
		verr.Add("name", "nome do arquivo muito longo")
	}

	folder, ok := CleanFolder(folder)
	if !ok {
		verr.Add("folder", "pasta inválida")
	}
	if size <= 0 {
		verr.Add("file", "arquivo vazio")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	f := &File{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Name:         name,
		Folder:       folder,
		ContentType:  contentType,
		Size:         size,
	}
	f.StorageKey = StorageKey(tenantID, f.ID, name, f.CreatedAt)
	return f, nil
}

// CleanName strips any directory part and control characters from a client file name
func CleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// CleanFolder normalizes a folder to an absolute slash path. Paths escaping the root are rejected.
func CleanFolder(folder string) (string, bool) {
	folder = strings.TrimSpace(strings.ReplaceAll(folder, "\\", "/"))
	if folder == "" {
		return RootFolder, true
	}
	for _, seg := range strings.Split(folder, "/") {
		if seg == ".." {
			return "", false
		}
	}
	cleaned := path.Clean("/" + folder)
	if len(cleaned) > maxFolderLength {
		return "", false
	}
	return cleaned, true
}

// StorageKey places objects under the tenant and upload month, keeping the extension
func StorageKey(tenantID, id uuid.UUID, name string, at time.Time) string {
	ext := strings.ToLower(path.Ext(name))
	if len(ext) > 10 {
		ext = ""
	}
	return tenantID.String() + "/" + at.UTC().Format("2006/01") + "/" + id.String() + ext
}

// Repository persists file metadata. Every method is scoped to the tenant.
type Repository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*File, error)
	// List returns files of a folder (all folders when folder is empty) and the total count
	List(ctx context.Context, tenantID uuid.UUID, folder string, filter shared.Filter) ([]File, int64, error)
	Folders(ctx context.Context, tenantID uuid.UUID) ([]string, error)
	Create(ctx context.Context, f *File) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// ErrObjectNotFound reports a metadata row whose object is gone from storage
var ErrObjectNotFound = shared.NewDomainError("NOT_FOUND", "Conteúdo do arquivo não encontrado")

// ObjectStorage stores file contents
type ObjectStorage interface {
	Upload(ctx context.Context, storageKey string, body io.ReadSeeker, size int64, contentType string) error
	// Open streams an object; the caller closes it
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	GenerateDownloadURL(ctx context.Context, storageKey, fileName string, expiresIn time.Duration) (string, time.Time, error)
	DeleteObject(ctx context.Context, storageKey string) error
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}
