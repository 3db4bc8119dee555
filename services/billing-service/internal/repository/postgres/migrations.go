package postgres

import (
	"context"
	"embed"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"

	"LegalPracticePlatform/pkg/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate применяет схему billing-service
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	return database.Migrate(ctx, pool, sub)
}
