// Package dotdir resolves the .rxrank/ directory that holds config.toml and,
// by convention, the model artifacts referenced from it.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const dirName = ".rxrank"

// Manager locates and creates .rxrank/ directories.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the .rxrank/ directory to use. An
// override is created when missing and always wins; otherwise the first
// existing entry of Candidates is returned, or "" when there is none.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating rxrank directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	candidates, err := m.Candidates()
	if err != nil {
		return "", err
	}
	for _, dir := range candidates {
		if isDir(dir) {
			return dir, nil
		}
	}
	return "", nil
}

// Candidates lists the searched locations in precedence order: ./.rxrank
// then ~/.rxrank. A missing home directory only drops the second entry.
func (m *Manager) Candidates() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	out := []string{filepath.Join(cwd, dirName)}
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(home, dirName))
	}
	return out, nil
}

// Init creates a .rxrank/ directory inside parent (the working directory when
// empty) and returns its absolute path.
func (m *Manager) Init(parent string) (string, error) {
	if parent == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		parent = cwd
	}

	dir := filepath.Join(parent, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating rxrank directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
