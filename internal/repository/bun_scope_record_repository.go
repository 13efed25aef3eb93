package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/vksagar82/society-management-app-sub001/internal/db/bunx"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

// BunScopeRecordRepository implements ScopeRecordRepository using Bun ORM
type BunScopeRecordRepository struct {
	db *bun.DB
}

// NewBunScopeRecordRepository creates a new Bun-based scope record repository
func NewBunScopeRecordRepository(db *bun.DB) *BunScopeRecordRepository {
	return &BunScopeRecordRepository{db: db}
}

func whereTenant(q *bun.SelectQuery, societyID *string) *bun.SelectQuery {
	if societyID == nil {
		return q.Where("rs.society_id IS NULL")
	}
	return q.Where("rs.society_id = ?", *societyID)
}

func tenantKey(societyID *string) string {
	if societyID == nil {
		return "system"
	}
	return *societyID
}

// Get returns the record for one (society, role, scope)
func (r *BunScopeRecordRepository) Get(ctx context.Context, societyID *string, role, scope string) (*models.ScopeRecord, error) {
	return r.get(ctx, r.db, societyID, role, scope)
}

func (r *BunScopeRecordRepository) get(ctx context.Context, db bun.IDB, societyID *string, role, scope string) (*models.ScopeRecord, error) {
	rec := new(models.ScopeRecord)
	q := db.NewSelect().
		Model(rec).
		Where("rs.role = ?", role).
		Where("rs.scope_name = ?", scope)
	if err := whereTenant(q, societyID).Limit(1).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, notFound("scope record", fmt.Sprintf("%s/%s/%s", tenantKey(societyID), role, scope))
		}
		return nil, fmt.Errorf("get scope record: %w", err)
	}
	return rec, nil
}

// ListForSociety returns tenant records followed by system records
func (r *BunScopeRecordRepository) ListForSociety(ctx context.Context, societyID string) ([]models.ScopeRecord, error) {
	var recs []models.ScopeRecord
	err := r.db.NewSelect().
		Model(&recs).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("rs.society_id = ?", societyID).WhereOr("rs.society_id IS NULL")
		}).
		OrderExpr("rs.society_id IS NULL ASC, rs.role ASC, rs.scope_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scope records: %w", err)
	}
	return recs, nil
}

// ListAll returns every scope record
func (r *BunScopeRecordRepository) ListAll(ctx context.Context) ([]models.ScopeRecord, error) {
	var recs []models.ScopeRecord
	if err := r.db.NewSelect().Model(&recs).OrderExpr("rs.role ASC, rs.scope_name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list scope records: %w", err)
	}
	return recs, nil
}

// Upsert creates or updates the record for (society, role, scope).
// A concurrent insert of the same key is retried once as an update.
func (r *BunScopeRecordRepository) Upsert(ctx context.Context, rec *models.ScopeRecord) (*models.ScopeRecord, error) {
	previous, err := r.upsertOnce(ctx, rec)
	if errors.Is(err, ErrConflict) {
		previous, err = r.upsertOnce(ctx, rec)
	}
	return previous, err
}

func (r *BunScopeRecordRepository) upsertOnce(ctx context.Context, rec *models.ScopeRecord) (*models.ScopeRecord, error) {
	var previous *models.ScopeRecord
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		existing, err := r.get(ctx, tx, rec.SocietyID, rec.Role, rec.ScopeName)
		switch {
		case errors.Is(err, ErrNotFound):
			rec.ID = bunx.NewUUIDv7()
			rec.CreatedAt = now
			rec.UpdatedAt = now
			if _, err := tx.NewInsert().Model(rec).Exec(ctx); err != nil {
				return wrapWrite("insert scope record", err)
			}
			return nil
		case err != nil:
			return err
		}

		snapshot := *existing
		previous = &snapshot
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		rec.UpdatedAt = now
		if _, err := tx.NewUpdate().
			Model(rec).
			Column("is_enabled", "description", "updated_by", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("update scope record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}
