// Package sqlitepath locates the SQLite fact database when no path is configured.
package sqlitepath

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/aurion/pkg/dotdir"
)

// ResolveSQLitePath returns the database path to open. Precedence:
//  1. override (flag, env or config value for storage.sqlite_path)
//  2. AURION_SQLITE, then AURION_DB
//  3. the first existing well-known database file
//  4. aurion.db inside the resolved .aurion/ directory
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("AURION_SQLITE")); envPath != "" {
		return envPath, nil
	}
	if envPath := strings.TrimSpace(os.Getenv("AURION_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return dotdir.NewManager().DatabasePath(configDir)
}

func sqliteCandidates() []string {
	candidates := []string{
		filepath.Join(".aurion", dotdir.DatabaseFile),
		dotdir.DatabaseFile,
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".aurion", dotdir.DatabaseFile))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "aurion", dotdir.DatabaseFile))
	}

	return candidates
}
