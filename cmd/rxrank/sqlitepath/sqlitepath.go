// Package sqlitepath locates the sqlite records database when records.dsn is
// not configured.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// DefaultName is the file created by "rxrank records import" when no DSN is given.
const DefaultName = "records.db"

// ErrNotFound is returned when no candidate database exists.
var ErrNotFound = errors.New("could not find rxrank records database; pass --records-dsn")

// ResolveRecordsDB returns override when set, then RXRANK_RECORDS_DB, then the
// first existing candidate under ./.rxrank, ~/.rxrank and $XDG_DATA_HOME/rxrank.
func ResolveRecordsDB(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("RXRANK_RECORDS_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range candidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", ErrNotFound
}

// DefaultPath is where a fresh database is created: inside dir when given,
// otherwise ./.rxrank.
func DefaultPath(dir string) string {
	if dir == "" {
		dir = ".rxrank"
	}
	return filepath.Join(dir, DefaultName)
}

func candidates() []string {
	out := []string{
		DefaultName,
		filepath.Join(".rxrank", DefaultName),
	}

	if home, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(home, ".rxrank", DefaultName))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		out = append(out, filepath.Join(xdgHome, "rxrank", DefaultName))
	}

	return out
}
