package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/vksagar82/society-management-app-sub001/internal/db/bunx"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

// BunSocietyRepository implements SocietyRepository using Bun ORM
type BunSocietyRepository struct {
	db *bun.DB
}

// NewBunSocietyRepository creates a new Bun-based society repository
func NewBunSocietyRepository(db *bun.DB) *BunSocietyRepository {
	return &BunSocietyRepository{db: db}
}

// Create inserts a new society
func (r *BunSocietyRepository) Create(ctx context.Context, society *models.Society) error {
	if society.ID == "" {
		society.ID = bunx.NewUUIDv7()
	}
	now := time.Now().UTC()
	society.CreatedAt = now
	society.UpdatedAt = now
	if _, err := r.db.NewInsert().Model(society).Exec(ctx); err != nil {
		return wrapWrite("create society", err)
	}
	return nil
}

// GetByID retrieves a society by ID
func (r *BunSocietyRepository) GetByID(ctx context.Context, id string) (*models.Society, error) {
	society := new(models.Society)
	if err := r.db.NewSelect().Model(society).Where("id = ?", id).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, notFound("society", id)
		}
		return nil, fmt.Errorf("get society: %w", err)
	}
	return society, nil
}

// Exists reports whether a society with id exists
func (r *BunSocietyRepository) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := r.db.NewSelect().Model((*models.Society)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check society exists: %w", err)
	}
	return ok, nil
}

// List returns all societies ordered by name
func (r *BunSocietyRepository) List(ctx context.Context) ([]models.Society, error) {
	var societies []models.Society
	if err := r.db.NewSelect().Model(&societies).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list societies: %w", err)
	}
	return societies, nil
}
