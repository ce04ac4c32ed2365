package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rewired-gh/tenderarb/internal/models"
)

// Artifacts writes per-day run files under a results directory.
type Artifacts struct {
	dir             string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// NewArtifacts creates an artifact writer. If dir is empty, the OS temporary
// directory is used.
func NewArtifacts(dir string, filePermissions, dirPermissions os.FileMode) *Artifacts {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "tenderarb", "results")
	}
	return &Artifacts{dir: dir, filePermissions: filePermissions, dirPermissions: dirPermissions}
}

// Dir returns the directory holding the artifacts of day.
func (a *Artifacts) Dir(day models.Date) string {
	return filepath.Join(a.dir, day.String())
}

// Write atomically writes data to name in the directory of day and returns
// the final path.
func (a *Artifacts) Write(day models.Date, name string, data []byte) (string, error) {
	dir := a.Dir(day)
	if err := os.MkdirAll(dir, a.dirPermissions); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	path := filepath.Join(dir, name)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, a.filePermissions); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename file: %w", err)
	}
	return path, nil
}

// WriteJSON writes v as indented JSON.
func (a *Artifacts) WriteJSON(day models.Date, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return a.Write(day, name, append(data, '\n'))
}
