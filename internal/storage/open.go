package storage

import (
	"strings"

	"github.com/julianstephens/habitrun/internal/storage/postgres"
	"github.com/julianstephens/habitrun/internal/storage/sqlite"
)

var (
	_ Provider = (*sqlite.Store)(nil)
	_ Provider = (*postgres.Store)(nil)
)

// IsPostgres reports whether target is a PostgreSQL connection string rather
// than a SQLite file path.
func IsPostgres(target string) bool {
	t := strings.TrimSpace(target)
	if strings.HasPrefix(t, "postgres://") || strings.HasPrefix(t, "postgresql://") {
		return true
	}
	return strings.Contains(t, "host=") && strings.Contains(t, "dbname=")
}

// New returns the backend for target without opening it. PostgreSQL
// connection strings are rejected when they embed a password.
func New(target string) (Provider, error) {
	if IsPostgres(target) {
		if _, err := postgres.ValidateConnString(target); err != nil {
			return nil, err
		}
		return postgres.New(target), nil
	}
	return sqlite.NewStore(target), nil
}
