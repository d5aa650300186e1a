package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/erp/gestao/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add dashboards index", "add_dashboards_index"},
		{"Add-Drive-Folder", "add_drive_folder"},
		{"ADD__VERSION", "add_version"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading and trailing_", "leading_and_trailing"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestList_Embedded(t *testing.T) {
	files, err := List(migrations.FS)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, uint(1), files[0].Version)
	assert.Equal(t, "create_apps_dashboards", files[0].Name)
	assert.Equal(t, uint(2), files[1].Version)
	assert.Equal(t, "create_drive_arquivos", files[1].Name)
}

func TestList_Errors(t *testing.T) {
	t.Run("missing down file", func(t *testing.T) {
		fsys := fstest.MapFS{"000001_a.up.sql": {Data: []byte("select 1;")}}
		_, err := List(fsys)
		assert.ErrorContains(t, err, "missing its up or down")
	})

	t.Run("version reused", func(t *testing.T) {
		fsys := fstest.MapFS{
			"000001_a.up.sql":   {},
			"000001_a.down.sql": {},
			"000001_b.up.sql":   {},
		}
		_, err := List(fsys)
		assert.ErrorContains(t, err, "used by")
	})

	t.Run("other files ignored", func(t *testing.T) {
		fsys := fstest.MapFS{"README.md": {}, "embed.go": {}}
		files, err := List(fsys)
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()

	first, err := Create(dir, "add dashboard tags")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_dashboard_tags.up.sql"), first.UpPath)

	second, err := Create(dir, "Drive Folder Index")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
	assert.Equal(t, filepath.Join(dir, "000002_drive_folder_index.down.sql"), second.DownPath)

	up, err := os.ReadFile(second.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "drive_folder_index")
	down, err := os.ReadFile(second.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "rollback drive_folder_index")

	files, err := List(os.DirFS(dir))
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestCreate_InvalidName(t *testing.T) {
	_, err := Create(t.TempDir(), "!!!")
	assert.Error(t, err)
}
