package migration

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/backup"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
)

// Service orchestrates store migrations
type Service interface {
	// Migrate runs one full backup-convert-validate-apply cycle over a
	// store family. At most one migration runs per family at a time.
	Migrate(ctx context.Context, storeType values.StoreType) (*backup.MigrationOperation, error)

	// MigrateAll migrates every store family. Families are disjoint, so
	// they run concurrently.
	MigrateAll(ctx context.Context) ([]*backup.MigrationOperation, error)

	// GetMigration returns a finished or in-flight migration by ID
	GetMigration(ctx context.Context, id uuid.UUID) (*backup.MigrationOperation, error)

	// Validate runs the clinical fixture battery without migrating
	Validate(ctx context.Context, storeType values.StoreType) (*ValidationReport, error)
}
