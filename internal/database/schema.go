package database

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// EnsureSchema creates the scanner's tables if they do not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// ServerInfo reports the server version and the current database size.
func (r *Repository) ServerInfo(ctx context.Context) (version, size string, err error) {
	if err := r.db.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", "", fmt.Errorf("query failed: %w", err)
	}
	if err := r.db.QueryRow(ctx, "SELECT pg_size_pretty(pg_database_size(current_database()))").Scan(&size); err != nil {
		return version, "", fmt.Errorf("query failed: %w", err)
	}
	return version, size, nil
}
