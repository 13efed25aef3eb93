package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261001000005, down_20261001000005)
}

// up_20261001000005 creates revoked_tokens for logout when redis is not configured
func up_20261001000005(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating revoked_tokens table...")
	if _, err := db.NewCreateTable().
		Model((*models.RevokedToken)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create revoked_tokens table: %w", err)
	}
	// cleanup scans by expiry
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires ON revoked_tokens(expires_at)`); err != nil {
		return fmt.Errorf("failed to create revoked_tokens expiry index: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

// down_20261001000005 drops revoked_tokens
func down_20261001000005(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping revoked_tokens table...")
	if _, err := db.NewDropTable().Model((*models.RevokedToken)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop revoked_tokens table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
