package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261001000004, down_20261001000004)
}

// up_20261001000004 creates issues
func up_20261001000004(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating issues table...")
	if _, err := db.NewCreateTable().
		Model((*models.Issue)(nil)).
		IfNotExists().
		ForeignKey(`(society_id) REFERENCES societies(id) ON DELETE CASCADE`).
		ForeignKey(`(created_by) REFERENCES users(id) ON DELETE CASCADE`).
		ForeignKey(`(assigned_to) REFERENCES users(id) ON DELETE SET NULL`).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create issues table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_issues_society_status ON issues(society_id, status)`); err != nil {
		return fmt.Errorf("failed to create issues index: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

// down_20261001000004 drops issues
func down_20261001000004(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping issues table...")
	if _, err := db.NewDropTable().Model((*models.Issue)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop issues table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
