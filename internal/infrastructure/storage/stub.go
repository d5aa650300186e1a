package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/erp/gestao/internal/domain/drive"
)

// MemoryObjectStorage keeps objects in process memory. It backs the drive when no
// object storage is configured, so uploads vanish on restart.
type MemoryObjectStorage struct {
	// BaseURL prefixes generated download URLs
	BaseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

var _ drive.ObjectStorage = (*MemoryObjectStorage)(nil)

// NewMemoryObjectStorage creates an empty store
func NewMemoryObjectStorage(baseURL string) *MemoryObjectStorage {
	if baseURL == "" {
		baseURL = "http://localhost:8080/storage"
	}
	return &MemoryObjectStorage{BaseURL: baseURL, objects: make(map[string]memoryObject)}
}

// Upload copies body into memory
func (s *MemoryObjectStorage) Upload(_ context.Context, storageKey string, body io.ReadSeeker, size int64, contentType string) error {
	if storageKey == "" {
		return ErrStorageKeyRequired
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, body)
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	if size > 0 && n != size {
		return fmt.Errorf("failed to upload object: read %d of %d bytes", n, size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[storageKey] = memoryObject{data: buf.Bytes(), contentType: contentType}
	return nil
}

// GenerateDownloadURL returns a fake presigned URL for an existing object
func (s *MemoryObjectStorage) GenerateDownloadURL(_ context.Context, storageKey, fileName string, expiresIn time.Duration) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, ErrStorageKeyRequired
	}
	s.mu.RLock()
	_, ok := s.objects[storageKey]
	s.mu.RUnlock()
	if !ok {
		return "", time.Time{}, ErrObjectNotFound
	}

	if expiresIn <= 0 {
		expiresIn = defaultPresignExpiration
	}
	expiresAt := time.Now().Add(expiresIn)
	q := url.Values{"expires": {expiresAt.UTC().Format(time.RFC3339)}}
	if fileName != "" {
		q.Set("response-content-disposition", ContentDisposition(fileName))
	}
	return s.BaseURL + "/" + storageKey + "?" + q.Encode(), expiresAt, nil
}

// Open returns a reader over a copy of the object
func (s *MemoryObjectStorage) Open(_ context.Context, storageKey string) (io.ReadCloser, error) {
	if storageKey == "" {
		return nil, ErrStorageKeyRequired
	}
	data, _, ok := s.Object(storageKey)
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// DeleteObject forgets an object
func (s *MemoryObjectStorage) DeleteObject(_ context.Context, storageKey string) error {
	if storageKey == "" {
		return ErrStorageKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, storageKey)
	return nil
}

// ObjectExists reports whether storageKey was uploaded
func (s *MemoryObjectStorage) ObjectExists(_ context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, ErrStorageKeyRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[storageKey]
	return ok, nil
}

// Object returns a copy of the stored bytes
func (s *MemoryObjectStorage) Object(storageKey string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[storageKey]
	if !ok {
		return nil, "", false
	}
	return bytes.Clone(obj.data), obj.contentType, true
}
