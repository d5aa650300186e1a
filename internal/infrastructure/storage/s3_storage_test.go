package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erp/gestao/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(endpoint string) *config.StorageConfig {
	return &config.StorageConfig{
		Bucket:    "drive",
		AccessKey: "test-key",
		SecretKey: "test-secret",
		Region:    "us-east-1",
		Endpoint:  endpoint,
		PathStyle: true,
	}
}

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		wantErr string
	}{
		{"nil config", nil, "configuration is required"},
		{"missing bucket", &config.StorageConfig{AccessKey: "k", SecretKey: "s"}, "bucket is required"},
		{"missing access key", &config.StorageConfig{Bucket: "b", SecretKey: "s"}, "access key is required"},
		{"missing secret key", &config.StorageConfig{Bucket: "b", AccessKey: "k"}, "secret key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3ObjectStorage(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("defaults", func(t *testing.T) {
		s, err := NewS3ObjectStorage(testConfig("localhost:9000"), WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, "drive", s.Bucket())
		assert.Equal(t, defaultPresignExpiration, s.presignExpiration)
	})

	t.Run("custom presign expiration", func(t *testing.T) {
		s, err := NewS3ObjectStorage(testConfig("localhost:9000"), WithPresignExpiration(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, time.Hour, s.presignExpiration)
	})
}

func TestEndpointURL(t *testing.T) {
	got, err := endpointURL("minio:9000", false)
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000", got)

	got, err = endpointURL("minio:9000", true)
	require.NoError(t, err)
	assert.Equal(t, "https://minio:9000", got)

	got, err = endpointURL("https://s3.example.com", false)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example.com", got)

	got, err = endpointURL("", false)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestS3ObjectStorage_GenerateDownloadURL(t *testing.T) {
	s, err := NewS3ObjectStorage(testConfig("http://localhost:9000"))
	require.NoError(t, err)
	ctx := context.Background()

	raw, expiresAt, err := s.GenerateDownloadURL(ctx, "tenant/2025/03/file.pdf", "Relatório março.pdf", time.Hour)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now().Add(59*time.Minute)))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/drive/tenant/2025/03/file.pdf", u.Path)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.Equal(t, ContentDisposition("Relatório março.pdf"), u.Query().Get("response-content-disposition"))

	_, _, err = s.GenerateDownloadURL(ctx, "", "x", 0)
	assert.ErrorIs(t, err, ErrStorageKeyRequired)
}

func TestS3ObjectStorage_EmptyKey(t *testing.T) {
	s, err := NewS3ObjectStorage(testConfig("http://localhost:9000"))
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, s.Upload(ctx, "", bytes.NewReader(nil), 0, "text/plain"), ErrStorageKeyRequired)
	assert.ErrorIs(t, s.DeleteObject(ctx, ""), ErrStorageKeyRequired)
	_, err = s.ObjectExists(ctx, "")
	assert.ErrorIs(t, err, ErrStorageKeyRequired)
	_, err = s.Open(ctx, "")
	assert.ErrorIs(t, err, ErrStorageKeyRequired)
}

// fakeS3 answers the path-style requests the client issues
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]string
	bodies   map[string]string
	requests []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	switch r.Method {
	case http.MethodPut:
		f.objects[r.URL.Path] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := f.objects[r.URL.Path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.bodies[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", f.objects[r.URL.Path])
		_, _ = io.WriteString(w, body)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3ObjectStorage_RoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, bodies: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewS3ObjectStorage(testConfig(srv.URL))
	require.NoError(t, err)
	ctx := context.Background()
	data := []byte("conteúdo do arquivo")

	require.NoError(t, s.Upload(ctx, "t/2025/03/a.txt", bytes.NewReader(data), int64(len(data)), "text/plain"))
	assert.Equal(t, "text/plain", fake.objects["/drive/t/2025/03/a.txt"])

	exists, err := s.ObjectExists(ctx, "t/2025/03/a.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.DeleteObject(ctx, "t/2025/03/a.txt"))
	exists, err = s.ObjectExists(ctx, "t/2025/03/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.True(t, strings.HasPrefix(fake.requests[0], "PUT /drive/"))
}

func TestS3ObjectStorage_Open(t *testing.T) {
	fake := &fakeS3{
		objects: map[string]string{"/drive/t/b.txt": "text/plain"},
		bodies:  map[string]string{"/drive/t/b.txt": "boleto"},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewS3ObjectStorage(testConfig(srv.URL))
	require.NoError(t, err)
	ctx := context.Background()

	rc, err := s.Open(ctx, "t/b.txt")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "boleto", string(got))

	_, err = s.Open(ctx, "t/missing.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
