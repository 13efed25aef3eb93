package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261001000003, down_20261001000003)
}

// up_20261001000003 creates the append-only audit_logs table.
// No foreign keys: entries must outlive the users and societies they mention.
func up_20261001000003(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating audit_logs table...")
	if _, err := db.NewCreateTable().
		Model((*models.AuditLog)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create audit_logs table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_society_created ON audit_logs(society_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_user ON audit_logs(user_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create audit_logs index: %w", err)
		}
	}
	if err := execPostgres(ctx, db, "check constraint",
		`ALTER TABLE audit_logs ADD CONSTRAINT audit_logs_action_check CHECK (action IN ('CREATE', 'UPDATE', 'DELETE', 'VIEW'))`,
	); err != nil {
		return err
	}
	fmt.Println(" OK")
	return nil
}

// down_20261001000003 drops audit_logs
func down_20261001000003(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping audit_logs table...")
	if _, err := db.NewDropTable().Model((*models.AuditLog)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop audit_logs table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
