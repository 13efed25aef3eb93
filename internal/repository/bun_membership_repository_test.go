package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

func TestBunMembershipRepository_FirstMembershipIsPrimary(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunMembershipRepository(db)
	ctx := context.Background()

	user := seedUser(t, db, "resident@example.com")
	a := seedSociety(t, db, "Alpha")
	b := seedSociety(t, db, "Beta")

	m1 := &models.Membership{UserID: user.ID, SocietyID: a.ID}
	require.NoError(t, repo.Create(ctx, m1))
	m2 := &models.Membership{UserID: user.ID, SocietyID: b.ID}
	require.NoError(t, repo.Create(ctx, m2))

	assert.True(t, m1.IsPrimary)
	assert.False(t, m2.IsPrimary)

	ms, err := repo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, m1.ID, ms[0].ID)
	require.NotNil(t, ms[0].Society)
	assert.Equal(t, "Alpha", ms[0].Society.Name)
	assert.Equal(t, models.ApprovalPending, ms[0].ApprovalStatus)
}

func TestBunMembershipRepository_DuplicateMembershipConflicts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunMembershipRepository(db)
	ctx := context.Background()

	user := seedUser(t, db, "dup@example.com")
	s := seedSociety(t, db, "Gamma")

	require.NoError(t, repo.Create(ctx, &models.Membership{UserID: user.ID, SocietyID: s.ID}))
	err := repo.Create(ctx, &models.Membership{UserID: user.ID, SocietyID: s.ID})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBunMembershipRepository_SinglePrimaryEnforcedByIndex(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := seedUser(t, db, "index@example.com")
	a := seedSociety(t, db, "Delta")
	b := seedSociety(t, db, "Epsilon")

	first := &models.Membership{UserID: user.ID, SocietyID: a.ID, IsPrimary: true}
	prepareMembership(first)
	_, err := db.NewInsert().Model(first).Exec(ctx)
	require.NoError(t, err)

	second := &models.Membership{UserID: user.ID, SocietyID: b.ID, IsPrimary: true}
	prepareMembership(second)
	_, err = db.NewInsert().Model(second).Exec(ctx)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
}

func TestBunMembershipRepository_SetPrimary(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunMembershipRepository(db)
	ctx := context.Background()

	user := seedUser(t, db, "switch@example.com")
	a := seedSociety(t, db, "Zeta")
	b := seedSociety(t, db, "Eta")
	m1 := &models.Membership{UserID: user.ID, SocietyID: a.ID}
	m2 := &models.Membership{UserID: user.ID, SocietyID: b.ID}
	require.NoError(t, repo.Create(ctx, m1))
	require.NoError(t, repo.Create(ctx, m2))

	require.NoError(t, repo.SetPrimary(ctx, user.ID, m2.ID))

	ms, err := repo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	primaries := 0
	for _, m := range ms {
		if m.IsPrimary {
			primaries++
			assert.Equal(t, m2.ID, m.ID)
		}
	}
	assert.Equal(t, 1, primaries)

	other := seedUser(t, db, "other@example.com")
	err = repo.SetPrimary(ctx, other.ID, m1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBunMembershipRepository_TransitionStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunMembershipRepository(db)
	ctx := context.Background()

	user := seedUser(t, db, "pending@example.com")
	approver := seedUser(t, db, "admin@example.com")
	s := seedSociety(t, db, "Theta")
	m := &models.Membership{UserID: user.ID, SocietyID: s.ID}
	require.NoError(t, repo.Create(ctx, m))

	now := time.Now().UTC()
	updated, err := repo.TransitionStatus(ctx, StatusTransition{
		MembershipID: m.ID,
		From:         models.ApprovalPending,
		To:           models.ApprovalApproved,
		ActorID:      approver.ID,
		At:           now,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, updated.ApprovalStatus)
	require.NotNil(t, updated.ApprovedBy)
	assert.Equal(t, approver.ID, *updated.ApprovedBy)
	assert.NotNil(t, updated.ApprovedAt)

	_, err = repo.TransitionStatus(ctx, StatusTransition{
		MembershipID: m.ID,
		From:         models.ApprovalPending,
		To:           models.ApprovalRejected,
		ActorID:      approver.ID,
		At:           now,
	})
	assert.ErrorIs(t, err, ErrStatusChanged)

	_, err = repo.TransitionStatus(ctx, StatusTransition{
		MembershipID: "00000000-0000-0000-0000-000000000000",
		From:         models.ApprovalPending,
		To:           models.ApprovalApproved,
		At:           now,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBunMembershipRepository_ConcurrentTransitionsHaveOneWinner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunMembershipRepository(db)
	ctx := context.Background()

	user := seedUser(t, db, "race@example.com")
	approver := seedUser(t, db, "racer@example.com")
	s := seedSociety(t, db, "Iota")
	m := &models.Membership{UserID: user.ID, SocietyID: s.ID}
	require.NoError(t, repo.Create(ctx, m))

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := models.ApprovalApproved
			if i%2 == 1 {
				to = models.ApprovalRejected
			}
			reason := "duplicate"
			_, err := repo.TransitionStatus(ctx, StatusTransition{
				MembershipID: m.ID,
				From:         models.ApprovalPending,
				To:           to,
				ActorID:      approver.ID,
				Reason:       &reason,
				At:           time.Now().UTC(),
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrStatusChanged)
	}
	assert.Equal(t, 1, wins)
}

func TestBunMembershipRepository_ListBySociety(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunMembershipRepository(db)
	ctx := context.Background()

	s := seedSociety(t, db, "Kappa")
	u1 := seedUser(t, db, "k1@example.com")
	u2 := seedUser(t, db, "k2@example.com")
	require.NoError(t, repo.Create(ctx, &models.Membership{UserID: u1.ID, SocietyID: s.ID}))
	require.NoError(t, repo.Create(ctx, &models.Membership{UserID: u2.ID, SocietyID: s.ID, ApprovalStatus: models.ApprovalApproved}))

	pending, err := repo.ListBySociety(ctx, s.ID, models.ApprovalPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, u1.ID, pending[0].UserID)

	all, err := repo.ListBySociety(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
