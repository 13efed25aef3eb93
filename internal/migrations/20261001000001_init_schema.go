package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261001000001, down_20261001000001)
}

// up_20261001000001 creates users, societies and memberships
func up_20261001000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating users table...")
	if _, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating societies table...")
	if _, err := db.NewCreateTable().
		Model((*models.Society)(nil)).
		IfNotExists().
		ForeignKey(`(created_by) REFERENCES users(id) ON DELETE SET NULL`).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create societies table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating user_societies table...")
	if _, err := db.NewCreateTable().
		Model((*models.Membership)(nil)).
		IfNotExists().
		ForeignKey(`(user_id) REFERENCES users(id) ON DELETE CASCADE`).
		ForeignKey(`(society_id) REFERENCES societies(id) ON DELETE CASCADE`).
		ForeignKey(`(approved_by) REFERENCES users(id) ON DELETE SET NULL`).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create user_societies table: %w", err)
	}

	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_user_societies_user_society ON user_societies(user_id, society_id)`,
		// at most one primary membership per user
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_user_societies_single_primary ON user_societies(user_id) WHERE is_primary`,
		`CREATE INDEX IF NOT EXISTS idx_user_societies_society_status ON user_societies(society_id, approval_status)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create user_societies index: %w", err)
		}
	}

	if err := execPostgres(ctx, db, "check constraint",
		`ALTER TABLE user_societies ADD CONSTRAINT user_societies_approval_status_check CHECK (approval_status IN ('pending', 'approved', 'rejected'))`,
		`ALTER TABLE user_societies ADD CONSTRAINT user_societies_role_check CHECK (role IN ('admin', 'manager', 'member'))`,
		`ALTER TABLE users ADD CONSTRAINT users_global_role_check CHECK (global_role IS NULL OR global_role IN ('developer', 'admin', 'manager', 'member'))`,
	); err != nil {
		return err
	}
	fmt.Println(" OK")

	return nil
}

// down_20261001000001 drops users, societies and memberships
func down_20261001000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping user_societies, societies, users...")
	for _, model := range []any{(*models.Membership)(nil), (*models.Society)(nil), (*models.User)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	fmt.Println(" OK")
	return nil
}
