package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/vksagar82/society-management-app-sub001/internal/db/bunx"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

// BunIssueRepository implements IssueRepository using Bun ORM
type BunIssueRepository struct {
	db *bun.DB
}

// NewBunIssueRepository creates a new Bun-based issue repository
func NewBunIssueRepository(db *bun.DB) *BunIssueRepository {
	return &BunIssueRepository{db: db}
}

// Create inserts an issue
func (r *BunIssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = bunx.NewUUIDv7()
	}
	now := time.Now().UTC()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	if _, err := r.db.NewInsert().Model(issue).Exec(ctx); err != nil {
		return wrapWrite("create issue", err)
	}
	return nil
}

// GetByID retrieves an issue
func (r *BunIssueRepository) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	issue := new(models.Issue)
	if err := r.db.NewSelect().Model(issue).Where("id = ?", id).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, notFound("issue", id)
		}
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return issue, nil
}

// Update writes the mutable issue fields
func (r *BunIssueRepository) Update(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()
	res, err := r.db.NewUpdate().
		Model(issue).
		Column("title", "description", "status", "priority", "assigned_to", "resolved_at", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	return requireAffected(res, "issue", issue.ID)
}

// Delete removes an issue
func (r *BunIssueRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*models.Issue)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	return requireAffected(res, "issue", id)
}

// ListBySociety returns a society's issues, newest first, optionally filtered by status
func (r *BunIssueRepository) ListBySociety(ctx context.Context, societyID, status string) ([]models.Issue, error) {
	var issues []models.Issue
	q := r.db.NewSelect().Model(&issues).Where("society_id = ?", societyID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.OrderExpr("created_at DESC, id DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return issues, nil
}
