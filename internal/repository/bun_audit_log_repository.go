package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/vksagar82/society-management-app-sub001/internal/db/bunx"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

// BunAuditLogRepository implements AuditLogRepository using Bun ORM
type BunAuditLogRepository struct {
	db *bun.DB
}

// NewBunAuditLogRepository creates a new Bun-based audit log repository
func NewBunAuditLogRepository(db *bun.DB) *BunAuditLogRepository {
	return &BunAuditLogRepository{db: db}
}

// Create appends an entry
func (r *BunAuditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = bunx.NewUUIDv7()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// List returns entries matching filter, newest first, with the total count before paging
func (r *BunAuditLogRepository) List(ctx context.Context, filter AuditFilter) ([]models.AuditLog, int, error) {
	var entries []models.AuditLog
	q := r.db.NewSelect().Model(&entries)
	if filter.SocietyID != "" {
		q = q.Where("al.society_id = ?", filter.SocietyID)
	}
	if filter.EntityType != "" {
		q = q.Where("al.entity_type = ?", filter.EntityType)
	}
	if filter.Action != "" {
		q = q.Where("al.action = ?", filter.Action)
	}
	if filter.UserID != "" {
		q = q.Where("al.user_id = ?", filter.UserID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	count, err := q.OrderExpr("al.created_at DESC, al.id DESC").ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, count, nil
}
