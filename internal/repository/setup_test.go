package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/vksagar82/society-management-app-sub001/internal/db/bunx"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/migrations"
)

// setupTestDB opens a private in-memory SQLite database with every migration applied.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := bunx.NewDB(context.Background(), dsn, bunx.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	return db
}

func seedUser(t *testing.T, db *bun.DB, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, FullName: email, PasswordHash: "x", IsActive: true}
	require.NoError(t, NewBunUserRepository(db).Create(context.Background(), u))
	return u
}

func seedSociety(t *testing.T, db *bun.DB, name string) *models.Society {
	t.Helper()
	s := &models.Society{Name: name}
	require.NoError(t, NewBunSocietyRepository(db).Create(context.Background(), s))
	return s
}
