package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

// BunRevokedTokenRepository implements RevokedTokenStore using Bun ORM
type BunRevokedTokenRepository struct {
	db *bun.DB
}

// NewBunRevokedTokenRepository creates a new Bun-based revoked token store
func NewBunRevokedTokenRepository(db *bun.DB) *BunRevokedTokenRepository {
	return &BunRevokedTokenRepository{db: db}
}

// Revoke adds a token id to the denylist. Revoking twice is a no-op.
func (r *BunRevokedTokenRepository) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	_, err := r.db.NewInsert().
		Model(&models.RevokedToken{
			JTI:       jti,
			UserID:    userID,
			ExpiresAt: expiresAt,
			RevokedAt: time.Now().UTC(),
		}).
		On("CONFLICT (jti) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks if a token id is on the denylist
func (r *BunRevokedTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.RevokedToken)(nil)).
		Where("jti = ?", jti).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return exists, nil
}

// DeleteExpired removes entries whose token has expired anyway
func (r *BunRevokedTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.RevokedToken)(nil)).
		Where("expires_at < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired revoked tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
