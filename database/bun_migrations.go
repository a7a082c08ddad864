package database

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// appliedMigration records a migration version once it has run
type appliedMigration struct {
	bun.BaseModel `bun:"table:bun_schema_migrations"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Version   string    `bun:"version,notnull,unique"`
	AppliedAt time.Time `bun:"applied_at,notnull,default:current_timestamp"`
}

type migration struct {
	version string
	name    string
	up      func(context.Context, *bun.DB) error
	down    func(context.Context, *bun.DB) error
}

var migrations = []migration{
	{"001", "create_recent_files_table", init001CreateRecentFilesTable, init001RollbackRecentFilesTable},
	{"002", "create_jobs_table", init002CreateJobsTable, init002RollbackJobsTable},
}

// runMigrations runs all Bun migrations
func runMigrations(ctx context.Context, db *bun.DB) error {
	// Create a simple migrations tracking table
	_, err := db.NewCreateTable().
		Model((*appliedMigration)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var applied []appliedMigration
	if err := db.NewSelect().Model(&applied).Scan(ctx); err != nil {
		return fmt.Errorf("failed to check applied migrations: %w", err)
	}
	appliedMap := make(map[string]bool, len(applied))
	for _, m := range applied {
		appliedMap[m.Version] = true
	}

	for _, m := range migrations {
		if appliedMap[m.version] {
			continue
		}

		Logger.Info("Running migration", "version", m.version, "name", m.name)
		if err := m.up(ctx, db); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.version, err)
		}

		// Mark as applied
		_, err = db.NewInsert().
			Model(&appliedMigration{Version: m.version, AppliedAt: time.Now()}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark migration %s as applied: %w", m.version, err)
		}
	}

	Logger.Info("All migrations completed successfully")
	return nil
}

// rollbackMigrations undoes every applied migration, newest first
func rollbackMigrations(ctx context.Context, db *bun.DB) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		Logger.Info("Rolling back migration", "version", m.version, "name", m.name)
		if err := m.down(ctx, db); err != nil {
			return fmt.Errorf("failed to roll back migration %s: %w", m.version, err)
		}
		_, err := db.NewDelete().
			Model((*appliedMigration)(nil)).
			Where("version = ?", m.version).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to unmark migration %s: %w", m.version, err)
		}
	}
	return nil
}

// Migration 001: recent files
func init001CreateRecentFilesTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*BunRecentFile)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create recent_files table: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*BunRecentFile)(nil)).
		Index("idx_recent_files_last_opened").
		Column("last_opened").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to index recent_files: %w", err)
	}
	return nil
}

func init001RollbackRecentFilesTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*BunRecentFile)(nil)).IfExists().Exec(ctx)
	return err
}

// Migration 002: export and housekeeping jobs
func init002CreateJobsTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*BunJob)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}

	indexes := map[string]string{
		"idx_jobs_status":       "status",
		"idx_jobs_type":         "type",
		"idx_jobs_created_at":   "created_at",
		"idx_jobs_completed_at": "completed_at",
	}
	for name, column := range indexes {
		_, err := db.NewCreateIndex().
			Model((*BunJob)(nil)).
			Index(name).
			Column(column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}
	return nil
}

func init002RollbackJobsTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*BunJob)(nil)).IfExists().Exec(ctx)
	return err
}
