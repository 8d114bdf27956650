package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

const defaultFilePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// MemoryDSN is an in-memory SQLite database private to one connection pool.
const MemoryDSN = "file::memory:?cache=shared"

// FileDSN converts a filesystem path into an on-disk SQLite DSN with sensible
// defaults. Callers must ensure the path is non-empty.
func FileDSN(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrPathRequired
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve storage path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, defaultFilePragmas), nil
}

// IsPostgres reports whether dsn addresses a PostgreSQL server.
func IsPostgres(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// ResolveDSN maps a configured receipts location onto a driver DSN. Postgres
// URLs and explicit sqlite "file:" DSNs pass through; anything else is a path.
func ResolveDSN(configured string) (string, error) {
	trimmed := strings.TrimSpace(configured)
	if IsPostgres(trimmed) || strings.HasPrefix(trimmed, "file:") {
		return trimmed, nil
	}
	return FileDSN(trimmed)
}
