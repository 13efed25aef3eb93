package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// execPostgres runs stmts on PostgreSQL only. SQLite cannot add CHECK
// constraints to an existing table, so there the services validate roles and
// approval statuses on their own.
func execPostgres(ctx context.Context, db *bun.DB, what string, stmts ...string) error {
	if db.Dialect().Name() != dialect.PG {
		return nil
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add %s: %w", what, err)
		}
	}
	return nil
}
