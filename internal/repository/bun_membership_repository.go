package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/vksagar82/society-management-app-sub001/internal/db/bunx"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

// BunMembershipRepository implements MembershipRepository using Bun ORM
type BunMembershipRepository struct {
	db *bun.DB
}

// NewBunMembershipRepository creates a new Bun-based membership repository
func NewBunMembershipRepository(db *bun.DB) *BunMembershipRepository {
	return &BunMembershipRepository{db: db}
}

func prepareMembership(m *models.Membership) {
	if m.ID == "" {
		m.ID = bunx.NewUUIDv7()
	}
	if m.Role == "" {
		m.Role = "member"
	}
	if m.ApprovalStatus == "" {
		m.ApprovalStatus = models.ApprovalPending
	}
	now := time.Now().UTC()
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	m.UpdatedAt = now
}

// Create inserts a membership, making it primary when the user has none
func (r *BunMembershipRepository) Create(ctx context.Context, m *models.Membership) error {
	prepareMembership(m)
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hasPrimary, err := tx.NewSelect().
			Model((*models.Membership)(nil)).
			Where("user_id = ?", m.UserID).
			Where("is_primary = ?", true).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check primary membership: %w", err)
		}
		m.IsPrimary = !hasPrimary
		if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
			return wrapWrite("create membership", err)
		}
		return nil
	})
}

// GetByID retrieves a membership with its society
func (r *BunMembershipRepository) GetByID(ctx context.Context, id string) (*models.Membership, error) {
	m := new(models.Membership)
	err := r.db.NewSelect().
		Model(m).
		Relation("Society").
		Where("us.id = ?", id).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("membership", id)
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// ListByUser returns a user's memberships, primary first, then by join time
func (r *BunMembershipRepository) ListByUser(ctx context.Context, userID string) ([]models.Membership, error) {
	var ms []models.Membership
	err := r.db.NewSelect().
		Model(&ms).
		Relation("Society").
		Where("us.user_id = ?", userID).
		OrderExpr("us.is_primary DESC, us.joined_at ASC, us.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list memberships by user: %w", err)
	}
	return ms, nil
}

// ListBySociety returns a society's memberships, optionally filtered by status
func (r *BunMembershipRepository) ListBySociety(ctx context.Context, societyID, status string) ([]models.Membership, error) {
	var ms []models.Membership
	q := r.db.NewSelect().
		Model(&ms).
		Where("us.society_id = ?", societyID).
		OrderExpr("us.joined_at ASC, us.id ASC")
	if status != "" {
		q = q.Where("us.approval_status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list memberships by society: %w", err)
	}
	return ms, nil
}

// TransitionStatus performs a compare-and-set on approval_status
func (r *BunMembershipRepository) TransitionStatus(ctx context.Context, t StatusTransition) (*models.Membership, error) {
	q := r.db.NewUpdate().
		Model((*models.Membership)(nil)).
		Set("approval_status = ?", t.To).
		Set("updated_at = ?", t.At).
		Where("id = ?", t.MembershipID).
		Where("approval_status = ?", t.From)
	switch t.To {
	case models.ApprovalApproved:
		q = q.Set("approved_by = ?", t.ActorID).Set("approved_at = ?", t.At)
	case models.ApprovalRejected:
		q = q.Set("rejection_reason = ?", t.Reason)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("transition membership status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, t.MembershipID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("membership %s no longer %s: %w", t.MembershipID, t.From, ErrStatusChanged)
	}
	return r.GetByID(ctx, t.MembershipID)
}

// SetPrimary clears the user's current primary membership and sets the new one in one transaction
func (r *BunMembershipRepository) SetPrimary(ctx context.Context, userID, membershipID string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.Membership)(nil)).
			Where("id = ?", membershipID).
			Where("user_id = ?", userID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if !exists {
			return notFound("membership", membershipID)
		}

		now := time.Now().UTC()
		if _, err := tx.NewUpdate().
			Model((*models.Membership)(nil)).
			Set("is_primary = ?", false).
			Set("updated_at = ?", now).
			Where("user_id = ?", userID).
			Where("is_primary = ?", true).
			Exec(ctx); err != nil {
			return fmt.Errorf("clear primary membership: %w", err)
		}
		if _, err := tx.NewUpdate().
			Model((*models.Membership)(nil)).
			Set("is_primary = ?", true).
			Set("updated_at = ?", now).
			Where("id = ?", membershipID).
			Exec(ctx); err != nil {
			return wrapWrite("set primary membership", err)
		}
		return nil
	})
}
