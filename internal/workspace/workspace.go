// Package workspace confines file access of the specialist agents to the
// generated project directory.
package workspace

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gerrors "github.com/felixgeelhaar/genpod/internal/errors"
)

// LicenseFile is the file name the project license is written to.
const LicenseFile = "LICENSE"

// Workspace is a project directory. All paths are resolved against Root and
// may not leave it.
type Workspace struct {
	root   string
	client *http.Client
}

// New creates a workspace rooted at root. The directory is created on first write.
func New(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	return &Workspace{root: abs, client: &http.Client{Timeout: 30 * time.Second}}, nil
}

// Root returns the absolute project directory.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve maps path (relative, or absolute inside the root) to an absolute path.
func (w *Workspace) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", gerrors.New(gerrors.ErrCodePathEscape, "empty path")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", gerrors.New(gerrors.ErrCodePathEscape, fmt.Sprintf("path %s is outside the project %s", path, w.root))
	}
	return path, nil
}

// Rel returns path relative to the root, with forward slashes.
func (w *Workspace) Rel(path string) (string, error) {
	abs, err := w.Resolve(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// WriteFile writes content to path, creating parent directories.
func (w *Workspace) WriteFile(path, content string) error {
	abs, err := w.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeDirectoryFailed, "failed to create directory", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

// ReadFile reads path.
func (w *Workspace) ReadFile(path string) (string, error) {
	abs, err := w.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", gerrors.NewFileNotFoundError(path)
		}
		return "", gerrors.Wrap(gerrors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read %s", path), err)
	}
	return string(data), nil
}

// Exists reports whether path exists inside the workspace.
func (w *Workspace) Exists(path string) bool {
	abs, err := w.Resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// Files lists every regular file under the root as sorted relative paths,
// skipping hidden directories.
func (w *Workspace) Files() ([]string, error) {
	var out []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != w.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeFileReadFailed, "failed to list project files", err)
	}
	sort.Strings(out)
	return out, nil
}

// WriteLicense writes the LICENSE file once. text wins over url; when text is
// empty the license is downloaded from url. An existing LICENSE is kept.
func (w *Workspace) WriteLicense(ctx context.Context, text, url string) (bool, error) {
	if w.Exists(LicenseFile) {
		return false, nil
	}
	if strings.TrimSpace(text) == "" {
		if url == "" {
			return false, nil
		}
		downloaded, err := w.download(ctx, url)
		if err != nil {
			return false, err
		}
		text = downloaded
	}
	if err := w.WriteFile(LicenseFile, text); err != nil {
		return false, err
	}
	return true, nil
}

func (w *Workspace) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create license request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download license: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download license: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read license: %w", err)
	}
	return string(data), nil
}
