package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

func strPtr(s string) *string { return &s }

func TestBunUserRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunUserRepository(db)
	ctx := context.Background()

	t.Run("email is normalised and unique", func(t *testing.T) {
		u := &models.User{Email: "  Mixed@Example.COM ", FullName: "Mixed", PasswordHash: "x", IsActive: true}
		require.NoError(t, repo.Create(ctx, u))
		assert.Equal(t, "mixed@example.com", u.Email)

		got, err := repo.GetByEmail(ctx, "MIXED@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		err = repo.Create(ctx, &models.User{Email: "mixed@example.com", FullName: "Dup", PasswordHash: "x"})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("missing user wraps ErrNotFound", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, "00000000-0000-0000-0000-000000000000"), ErrNotFound)
	})

	t.Run("global role round trip", func(t *testing.T) {
		u := seedUser(t, db, "dev@example.com")
		require.NoError(t, repo.SetGlobalRole(ctx, u.ID, strPtr("developer")))
		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "developer", got.GlobalRoleName())

		require.NoError(t, repo.SetGlobalRole(ctx, u.ID, nil))
		got, err = repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "", got.GlobalRoleName())
	})

	t.Run("create with memberships marks first primary", func(t *testing.T) {
		a := seedSociety(t, db, "Lambda")
		b := seedSociety(t, db, "Mu")
		u := &models.User{Email: "signup@example.com", FullName: "Signup", PasswordHash: "x", IsActive: true}
		ms := []*models.Membership{{SocietyID: a.ID}, {SocietyID: b.ID}}
		require.NoError(t, repo.CreateWithMemberships(ctx, u, ms))

		list, err := NewBunMembershipRepository(db).ListByUser(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.True(t, list[0].IsPrimary)
		assert.Equal(t, a.ID, list[0].SocietyID)
		assert.False(t, list[1].IsPrimary)
	})

	t.Run("create with memberships rolls back on failure", func(t *testing.T) {
		u := &models.User{Email: "rollback@example.com", FullName: "Rollback", PasswordHash: "x"}
		ms := []*models.Membership{{SocietyID: "00000000-0000-0000-0000-000000000000"}}
		require.Error(t, repo.CreateWithMemberships(ctx, u, ms))

		_, err := repo.GetByEmail(ctx, "rollback@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete cascades memberships", func(t *testing.T) {
		s := seedSociety(t, db, "Nu")
		u := seedUser(t, db, "gone@example.com")
		mrepo := NewBunMembershipRepository(db)
		require.NoError(t, mrepo.Create(ctx, &models.Membership{UserID: u.ID, SocietyID: s.ID}))

		require.NoError(t, repo.Delete(ctx, u.ID))
		ms, err := mrepo.ListByUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, ms)
	})
}

func TestBunSocietyRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunSocietyRepository(db)
	ctx := context.Background()

	s := seedSociety(t, db, "Xi")
	ok, err := repo.Exists(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, repo.Create(ctx, &models.Society{Name: "Xi"}), ErrConflict)

	_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBunScopeRecordRepository_Upsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunScopeRecordRepository(db)
	ctx := context.Background()
	s := seedSociety(t, db, "Omicron")

	rec := &models.ScopeRecord{SocietyID: &s.ID, Role: "member", ScopeName: "issues.create", IsEnabled: false}
	prev, err := repo.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.Nil(t, prev)
	firstID := rec.ID

	again := &models.ScopeRecord{SocietyID: &s.ID, Role: "member", ScopeName: "issues.create", IsEnabled: true, Description: "re-enabled"}
	prev, err = repo.Upsert(ctx, again)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.False(t, prev.IsEnabled)
	assert.Equal(t, firstID, again.ID)

	got, err := repo.Get(ctx, &s.ID, "member", "issues.create")
	require.NoError(t, err)
	assert.True(t, got.IsEnabled)
	assert.Equal(t, "re-enabled", got.Description)

	_, err = repo.Get(ctx, nil, "member", "issues.create")
	assert.ErrorIs(t, err, ErrNotFound)

	system := &models.ScopeRecord{Role: "member", ScopeName: "issues.create", IsEnabled: true}
	_, err = repo.Upsert(ctx, system)
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, &models.ScopeRecord{Role: "member", ScopeName: "issues.create", IsEnabled: false})
	require.NoError(t, err)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	forSociety, err := repo.ListForSociety(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, forSociety, 2)
	assert.Equal(t, s.ID, forSociety[0].Tenant())
	assert.Equal(t, "", forSociety[1].Tenant())
}

func TestBunAuditLogRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunAuditLogRepository(db)
	ctx := context.Background()

	society := "11111111-1111-1111-1111-111111111111"
	other := "22222222-2222-2222-2222-222222222222"
	actor := "33333333-3333-3333-3333-333333333333"
	base := time.Now().UTC().Add(-time.Hour)

	for i, e := range []models.AuditLog{
		{SocietyID: &society, UserID: &actor, Action: models.AuditCreate, EntityType: "issue", EntityID: "i1"},
		{SocietyID: &society, UserID: &actor, Action: models.AuditUpdate, EntityType: "issue", EntityID: "i1",
			OldValues: models.JSONMap{"status": "open"}, NewValues: models.JSONMap{"status": "closed"}},
		{SocietyID: &society, Action: models.AuditUpdate, EntityType: "user_approval", EntityID: "m1"},
		{SocietyID: &other, Action: models.AuditDelete, EntityType: "issue", EntityID: "i9"},
	} {
		e := e
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, &e))
	}

	logs, count, err := repo.List(ctx, AuditFilter{SocietyID: society})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Len(t, logs, 3)
	assert.Equal(t, "user_approval", logs[0].EntityType)

	logs, count, err = repo.List(ctx, AuditFilter{SocietyID: society, EntityType: "issue", Action: models.AuditUpdate})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, logs, 1)
	assert.Equal(t, "closed", logs[0].NewValues["status"])

	logs, count, err = repo.List(ctx, AuditFilter{SocietyID: society, UserID: actor, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditCreate, logs[0].Action)
}

func TestBunIssueRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunIssueRepository(db)
	ctx := context.Background()

	s := seedSociety(t, db, "Pi")
	u := seedUser(t, db, "reporter@example.com")

	issue := &models.Issue{SocietyID: s.ID, Title: "Leaking tap", Status: models.IssueOpen, Priority: "low", CreatedBy: u.ID}
	require.NoError(t, repo.Create(ctx, issue))

	issue.Status = models.IssueResolved
	require.NoError(t, repo.Update(ctx, issue))

	got, err := repo.GetByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueResolved, got.Status)

	open, err := repo.ListBySociety(ctx, s.ID, models.IssueOpen)
	require.NoError(t, err)
	assert.Empty(t, open)

	require.NoError(t, repo.Delete(ctx, issue.ID))
	_, err = repo.GetByID(ctx, issue.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBunRevokedTokenRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunRevokedTokenRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Revoke(ctx, "jti-live", "user-1", now.Add(time.Hour)))
	require.NoError(t, repo.Revoke(ctx, "jti-live", "user-1", now.Add(time.Hour)))
	require.NoError(t, repo.Revoke(ctx, "jti-old", "user-1", now.Add(-time.Hour)))

	revoked, err := repo.IsRevoked(ctx, "jti-live")
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	revoked, err = repo.IsRevoked(ctx, "jti-old")
	require.NoError(t, err)
	assert.False(t, revoked)
}
