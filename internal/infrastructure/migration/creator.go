package migration

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const upTemplate = `-- {{.Name}} ({{.Created}})

`

const downTemplate = `-- rollback {{.Name}} ({{.Created}})

`

var fileNamePattern = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// File describes one up/down migration pair
type File struct {
	Version  uint
	Name     string
	Created  string
	UpPath   string
	DownPath string
}

// Create writes an empty up/down pair numbered after the highest version in dir
func Create(dir, name string) (*File, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := List(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	var next uint = 1
	if n := len(existing); n > 0 {
		next = existing[n-1].Version + 1
	}

	base := fmt.Sprintf("%06d_%s", next, slug)
	f := &File{
		Version:  next,
		Name:     slug,
		Created:  time.Now().UTC().Format(time.RFC3339),
		UpPath:   filepath.Join(dir, base+".up.sql"),
		DownPath: filepath.Join(dir, base+".down.sql"),
	}
	if err := writeTemplate(f.UpPath, upTemplate, f); err != nil {
		return nil, err
	}
	if err := writeTemplate(f.DownPath, downTemplate, f); err != nil {
		_ = os.Remove(f.UpPath)
		return nil, err
	}
	return f, nil
}

// List returns the migration pairs found in fsys ordered by version.
// A version with only one direction is reported as an error.
func List(fsys fs.FS) ([]File, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[uint]*File)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := fileNamePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		v, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid migration version in %s: %w", entry.Name(), err)
		}
		version := uint(v)
		f, ok := byVersion[version]
		if !ok {
			f = &File{Version: version, Name: m[2]}
			byVersion[version] = f
		} else if f.Name != m[2] {
			return nil, fmt.Errorf("migration version %d used by %q and %q", version, f.Name, m[2])
		}
		if m[3] == "up" {
			f.UpPath = entry.Name()
		} else {
			f.DownPath = entry.Name()
		}
	}

	files := make([]File, 0, len(byVersion))
	for _, f := range byVersion {
		if f.UpPath == "" || f.DownPath == "" {
			return nil, fmt.Errorf("migration %06d_%s is missing its up or down file", f.Version, f.Name)
		}
		files = append(files, *f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

func writeTemplate(path, text string, data *File) error {
	tmpl, err := template.New(filepath.Base(path)).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer out.Close()
	if err := tmpl.Execute(out, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// sanitizeName lowercases name and collapses separators into single underscores
func sanitizeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			pendingSep = true
		}
	}
	return b.String()
}
