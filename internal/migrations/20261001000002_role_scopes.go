package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261001000002, down_20261001000002)
}

// up_20261001000002 creates role_scopes for per-tenant and system scope overrides
func up_20261001000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating role_scopes table...")
	if _, err := db.NewCreateTable().
		Model((*models.ScopeRecord)(nil)).
		IfNotExists().
		ForeignKey(`(society_id) REFERENCES societies(id) ON DELETE CASCADE`).
		ForeignKey(`(updated_by) REFERENCES users(id) ON DELETE SET NULL`).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create role_scopes table: %w", err)
	}

	// NULL society_id never collides in a plain unique index, so tenant and
	// system records get one partial index each.
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_role_scopes_tenant ON role_scopes(society_id, role, scope_name) WHERE society_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_role_scopes_system ON role_scopes(role, scope_name) WHERE society_id IS NULL`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create role_scopes index: %w", err)
		}
	}
	if err := execPostgres(ctx, db, "check constraint",
		`ALTER TABLE role_scopes ADD CONSTRAINT role_scopes_role_check CHECK (role IN ('developer', 'admin', 'manager', 'member'))`,
	); err != nil {
		return err
	}
	fmt.Println(" OK")
	return nil
}

// down_20261001000002 drops role_scopes
func down_20261001000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping role_scopes table...")
	if _, err := db.NewDropTable().Model((*models.ScopeRecord)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop role_scopes table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
