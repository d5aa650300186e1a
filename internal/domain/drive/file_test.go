package drive

import (
	"strings"
	"testing"
	"time"

	"github.com/erp/gestao/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFile(t *testing.T) {
	tenantID := uuid.New()

	f, err := NewFile(tenantID, "contratos/2025/", `C:\Users\ana\Contrato Final.PDF`, "application/pdf", 1024)
	require.NoError(t, err)
	assert.Equal(t, "Contrato Final.PDF", f.Name)
	assert.Equal(t, "/contratos/2025", f.Folder)
	assert.Equal(t, int64(1024), f.Size)
	assert.True(t, strings.HasPrefix(f.StorageKey, tenantID.String()+"/"))
	assert.True(t, strings.HasSuffix(f.StorageKey, f.ID.String()+".pdf"))

	f, err = NewFile(tenantID, "", "notas.txt", "", 1)
	require.NoError(t, err)
	assert.Equal(t, RootFolder, f.Folder)
	assert.Equal(t, "application/octet-stream", f.ContentType)
}

func TestNewFile_Invalid(t *testing.T) {
	_, err := NewFile(uuid.New(), "../segredos", "  ", "", 0)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		fields[i] = f.Field
	}
	assert.Equal(t, []string{"file", "folder", "name"}, fields)

	_, err = NewFile(uuid.New(), "/", strings.Repeat("a", 256), "", 1)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestCleanFolder(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", "/", true},
		{"/", "/", true},
		{"a//b/", "/a/b", true},
		{"./a/./b", "/a/b", true},
		{`a\b`, "/a/b", true},
		{"a/../b", "", false},
		{"..", "", false},
	}
	for _, tt := range tests {
		got, ok := CleanFolder(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestStorageKey(t *testing.T) {
	tenantID := uuid.MustParse("11111111-1111-4111-8111-111111111111")
	id := uuid.MustParse("22222222-2222-4222-8222-222222222222")
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "11111111-1111-4111-8111-111111111111/2025/03/22222222-2222-4222-8222-222222222222.xlsx",
		StorageKey(tenantID, id, "Planilha.XLSX", at))
	assert.Equal(t, "11111111-1111-4111-8111-111111111111/2025/03/22222222-2222-4222-8222-222222222222",
		StorageKey(tenantID, id, "sem-extensao", at))
}
