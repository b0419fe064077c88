package project

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/apperr"
	"github.com/staticnest/staticnest/pkg/models"
)

// ListFiles returns name, size, and modification time for every regular
// file in a hosted project's directory. An absent directory is an empty
// project, not an error.
func (m *Manager) ListFiles(id string) ([]models.FileInfo, error) {
	if err := m.requireHosted(id); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(m.Dir(id))
	if err != nil {
		if os.IsNotExist(err) {
			return []models.FileInfo{}, nil
		}
		return nil, fmt.Errorf("%w: list project directory: %v", apperr.ErrIO, err)
	}

	files := make([]models.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, models.FileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	return files, nil
}

// SaveFile writes an uploaded file into a hosted project's directory.
func (m *Manager) SaveFile(id, name string, src io.Reader) error {
	if err := m.requireHosted(id); err != nil {
		return err
	}

	dst, err := m.filePath(id, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(m.Dir(id), 0o755); err != nil {
		return fmt.Errorf("%w: create project directory: %v", apperr.ErrIO, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: create file: %v", apperr.ErrIO, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("%w: write file: %v", apperr.ErrIO, err)
	}

	m.log.Info("file uploaded", zap.String("project", id), zap.String("file", name))
	return nil
}

// RenameFile renames a file within a hosted project's directory. The source
// must exist, the destination must not, and both must stay confined.
func (m *Manager) RenameFile(id, oldName, newName string) error {
	if err := m.requireHosted(id); err != nil {
		return err
	}

	oldPath, err := m.filePath(id, oldName)
	if err != nil {
		return err
	}
	newPath, err := m.filePath(id, newName)
	if err != nil {
		return err
	}

	if _, err := os.Stat(oldPath); err != nil {
		return fmt.Errorf("%w: file %s", apperr.ErrNotFound, oldName)
	}
	if _, err := os.Stat(newPath); err == nil {
		return fmt.Errorf("%w: a file named %s already exists", apperr.ErrConflict, newName)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("%w: rename file: %v", apperr.ErrIO, err)
	}

	m.log.Info("file renamed",
		zap.String("project", id),
		zap.String("from", oldName),
		zap.String("to", newName))
	return nil
}

// DeleteFile removes a file from a hosted project's directory.
func (m *Manager) DeleteFile(id, name string) error {
	if err := m.requireHosted(id); err != nil {
		return err
	}

	path, err := m.filePath(id, name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: file %s", apperr.ErrNotFound, name)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: delete file: %v", apperr.ErrIO, err)
	}

	m.log.Info("file deleted", zap.String("project", id), zap.String("file", name))
	return nil
}

func (m *Manager) requireHosted(id string) error {
	project, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if project.Type == models.TypeExternal {
		return fmt.Errorf("%w: external projects have no files", apperr.ErrValidation)
	}
	return nil
}

// filePath resolves a file name inside a project directory. Names must be
// bare file names and the resolved path must stay strictly inside the
// project directory.
func (m *Manager) filePath(id, name string) (string, error) {
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return "", fmt.Errorf("%w: file name %q", apperr.ErrInvalidPath, name)
	}

	root := m.Dir(id)
	joined := filepath.Join(root, name)
	if !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: file name %q", apperr.ErrInvalidPath, name)
	}
	return securejoin.SecureJoin(root, name)
}

// Default files written into every new hosted project.
const (
	defaultIndexHTML = `<!DOCTYPE html>
<html>
<head>
  <title>%s</title>
  <link rel="stylesheet" href="style.css">
</head>
<body>
  <h1>Welcome to %s</h1>
  <p>Upload your HTML, CSS, and JS files to get started!</p>
  <script src="script.js"></script>
</body>
</html>
`

	defaultStyleCSS = `body {
  font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
  max-width: 800px;
  margin: 50px auto;
  padding: 20px;
  background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
  min-height: 100vh;
  color: white;
}

h1 {
  text-align: center;
  font-size: 2.5rem;
  text-shadow: 2px 2px 4px rgba(0,0,0,0.3);
}

p {
  text-align: center;
  font-size: 1.2rem;
  opacity: 0.9;
}
`

	defaultScriptJS = `console.log('Project %s loaded!');

document.addEventListener('DOMContentLoaded', () => {
  console.log('DOM fully loaded');
});
`
)

func scaffoldDefaults(dir, name string) error {
	defaults := map[string]string{
		"index.html": fmt.Sprintf(defaultIndexHTML, name, name),
		"style.css":  defaultStyleCSS,
		"script.js":  fmt.Sprintf(defaultScriptJS, name),
	}
	for file, content := range defaults {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			return fmt.Errorf("%w: write default %s: %v", apperr.ErrIO, file, err)
		}
	}
	return nil
}
