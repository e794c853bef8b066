// Package dotdir locates the aurion state directory holding config.toml and
// the default fact database.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirName = ".aurion"

	// HomeEnv names a state directory that wins over ./.aurion and ~/.aurion.
	HomeEnv = "AURION_HOME"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target resolves the state directory, creating it when missing, and returns
// its absolute path. The first of these wins:
//  1. overrideDir
//  2. $AURION_HOME
//  3. ./.aurion, only when it already exists
//  4. ~/.aurion
func (m *Manager) Target(overrideDir string) (string, error) {
	dir, err := m.resolve(overrideDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating aurion directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

func (m *Manager) resolve(overrideDir string) (string, error) {
	if overrideDir != "" {
		return overrideDir, nil
	}
	if env := os.Getenv(HomeEnv); env != "" {
		return env, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if local := filepath.Join(cwd, dirName); isDir(local) {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
