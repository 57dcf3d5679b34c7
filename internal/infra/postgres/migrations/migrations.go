package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// sqlMigration runs an embedded DDL script up and its paired script down.
func sqlMigration(upScript, downScript string) (migrate.MigrationFunc, migrate.MigrationFunc) {
	return execScript(upScript), execScript(downScript)
}

func execScript(script string) migrate.MigrationFunc {
	return func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, script)
		return err
	}
}
