package dotdir

import "path/filepath"

// DatabaseFile is the name of the default SQLite fact database.
const DatabaseFile = "aurion.db"

// DatabasePath returns the path of the default fact database inside the
// resolved .aurion/ directory. The file itself is not created.
func (m *Manager) DatabasePath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DatabaseFile), nil
}
