package membership

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/services/audit"
	"github.com/vksagar82/society-management-app-sub001/internal/services/iam"
)

type mockMembershipRepo struct {
	mu   sync.Mutex
	byID map[string]*models.Membership
	seq  int
}

func newMockMembershipRepo(ms ...models.Membership) *mockMembershipRepo {
	m := &mockMembershipRepo{byID: map[string]*models.Membership{}}
	for i := range ms {
		mem := ms[i]
		m.byID[mem.ID] = &mem
	}
	return m
}

func (m *mockMembershipRepo) Create(_ context.Context, mem *models.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	hasPrimary := false
	for _, existing := range m.byID {
		if existing.UserID == mem.UserID && existing.SocietyID == mem.SocietyID {
			return repository.ErrConflict
		}
		if existing.UserID == mem.UserID && existing.IsPrimary {
			hasPrimary = true
		}
	}
	m.seq++
	mem.ID = "new-" + string(rune('0'+m.seq))
	mem.IsPrimary = !hasPrimary
	cp := *mem
	m.byID[mem.ID] = &cp
	return nil
}

func (m *mockMembershipRepo) GetByID(_ context.Context, id string) (*models.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *mockMembershipRepo) ListByUser(context.Context, string) ([]models.Membership, error) {
	return nil, nil
}

func (m *mockMembershipRepo) ListBySociety(_ context.Context, societyID, status string) ([]models.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Membership
	for _, mem := range m.byID {
		if mem.SocietyID == societyID && (status == "" || mem.ApprovalStatus == status) {
			out = append(out, *mem)
		}
	}
	return out, nil
}

func (m *mockMembershipRepo) TransitionStatus(_ context.Context, t repository.StatusTransition) (*models.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.byID[t.MembershipID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if mem.ApprovalStatus != t.From {
		return nil, repository.ErrStatusChanged
	}
	mem.ApprovalStatus = t.To
	at := t.At
	if t.To == models.ApprovalApproved {
		actor := t.ActorID
		mem.ApprovedBy = &actor
		mem.ApprovedAt = &at
	} else {
		mem.RejectionReason = t.Reason
	}
	cp := *mem
	return &cp, nil
}

func (m *mockMembershipRepo) SetPrimary(_ context.Context, userID, membershipID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.byID[membershipID]
	if !ok || target.UserID != userID {
		return repository.ErrNotFound
	}
	for _, mem := range m.byID {
		if mem.UserID == userID {
			mem.IsPrimary = mem.ID == membershipID
		}
	}
	return nil
}

type mockSocietyRepo struct{ ids map[string]bool }

func (m *mockSocietyRepo) Create(context.Context, *models.Society) error { return nil }
func (m *mockSocietyRepo) GetByID(context.Context, string) (*models.Society, error) {
	return nil, repository.ErrNotFound
}
func (m *mockSocietyRepo) Exists(_ context.Context, id string) (bool, error) { return m.ids[id], nil }
func (m *mockSocietyRepo) List(context.Context) ([]models.Society, error)    { return nil, nil }

type stubAuthorizer struct{ allow map[string]bool }

func (s *stubAuthorizer) Authorize(_ context.Context, _ *iam.Principal, req iam.Request) (iam.Decision, error) {
	scope := auth.Scope(req.Resource + "." + req.Action)
	return iam.Decision{Allowed: s.allow[string(scope)], Scope: scope, Reason: "default"}, nil
}
func (s *stubAuthorizer) Require(ctx context.Context, p *iam.Principal, req iam.Request) error {
	d, _ := s.Authorize(ctx, p, req)
	if !d.Allowed {
		return apperr.Forbiddenf("denied")
	}
	return nil
}
func (s *stubAuthorizer) RequireUserDeletion(context.Context, *iam.Principal, *models.User, string) error {
	return nil
}

type recordingRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingRecorder) Record(_ context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func pending(id, userID, societyID string) models.Membership {
	return models.Membership{ID: id, UserID: userID, SocietyID: societyID, Role: "member", ApprovalStatus: models.ApprovalPending}
}

func societyAdmin(userID, societyID string) *iam.Principal {
	return &iam.Principal{UserID: userID, Memberships: []iam.MembershipView{
		{ID: "adm-" + societyID, SocietyID: societyID, Role: "admin", ApprovalStatus: models.ApprovalApproved, IsPrimary: true},
	}}
}

func newService(repo *mockMembershipRepo, allow ...string) (*Service, *recordingRecorder) {
	rec := &recordingRecorder{}
	a := &stubAuthorizer{allow: map[string]bool{}}
	for _, s := range allow {
		a.allow[s] = true
	}
	socs := &mockSocietyRepo{ids: map[string]bool{"s1": true, "s2": true}}
	return NewService(repo, socs, a, rec, zap.NewNop()), rec
}

func TestApprove_Twice(t *testing.T) {
	repo := newMockMembershipRepo(pending("m1", "u1", "s1"))
	svc, rec := newService(repo)
	admin := societyAdmin("admin", "s1")

	m, err := svc.Approve(context.Background(), admin, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, m.ApprovalStatus)
	require.NotNil(t, m.ApprovedBy)
	assert.Equal(t, "admin", *m.ApprovedBy)
	assert.NotNil(t, m.ApprovedAt)

	_, err = svc.Approve(context.Background(), admin, "m1")
	assert.Equal(t, apperr.AlreadyProcessed, apperr.KindOf(err))

	stored, _ := repo.GetByID(context.Background(), "m1")
	assert.Equal(t, models.ApprovalApproved, stored.ApprovalStatus)

	require.Equal(t, 1, rec.count())
	e := rec.entries[0]
	assert.Equal(t, models.AuditUpdate, e.Action)
	assert.Equal(t, EntityApproval, e.EntityType)
	assert.Equal(t, "m1", e.EntityID)
	assert.Equal(t, "s1", e.SocietyID)
	assert.Equal(t, models.ApprovalPending, e.Old.(map[string]any)["approval_status"])
	assert.Equal(t, models.ApprovalApproved, e.New.(map[string]any)["approval_status"])
}

func TestApprove_ConcurrentSingleWinner(t *testing.T) {
	repo := newMockMembershipRepo(pending("m1", "u1", "s1"))
	svc, rec := newService(repo)
	admin := societyAdmin("admin", "s1")

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Approve(context.Background(), admin, "m1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, processed int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.KindOf(err) == apperr.AlreadyProcessed:
			processed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, processed)
	assert.Equal(t, 1, rec.count())
}

func TestApprove_ErrorOrder(t *testing.T) {
	repo := newMockMembershipRepo(
		pending("m1", "u1", "s1"),
		models.Membership{ID: "done", UserID: "u2", SocietyID: "s1", Role: "member", ApprovalStatus: models.ApprovalRejected},
	)
	svc, _ := newService(repo)
	outsider := societyAdmin("other", "s2")

	_, err := svc.Approve(context.Background(), outsider, "missing")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	// Lacking authority is reported before the membership's state.
	_, err = svc.Approve(context.Background(), outsider, "done")
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	_, err = svc.Approve(context.Background(), societyAdmin("admin", "s1"), "done")
	assert.Equal(t, apperr.AlreadyProcessed, apperr.KindOf(err))
}

func TestApprove_Authority(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		p       *iam.Principal
		allowed bool
	}{
		{"global developer", &iam.Principal{UserID: "d", GlobalRole: auth.RoleDeveloper}, true},
		{"global admin", &iam.Principal{UserID: "g", GlobalRole: auth.RoleAdmin}, true},
		{"approved admin of society", societyAdmin("a", "s1"), true},
		{"admin of another society", societyAdmin("a", "s2"), false},
		{"pending admin", &iam.Principal{UserID: "p", Memberships: []iam.MembershipView{
			{SocietyID: "s1", Role: "admin", ApprovalStatus: models.ApprovalPending}}}, false},
		{"approved manager", &iam.Principal{UserID: "m", Memberships: []iam.MembershipView{
			{SocietyID: "s1", Role: "manager", ApprovalStatus: models.ApprovalApproved}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(newMockMembershipRepo(pending("m1", "u1", "s1")))
			_, err := svc.Approve(ctx, tt.p, "m1")
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
			}
		})
	}
}

func TestReject(t *testing.T) {
	repo := newMockMembershipRepo(pending("m1", "u1", "s1"))
	svc, rec := newService(repo)
	admin := societyAdmin("admin", "s1")

	_, err := svc.Reject(context.Background(), admin, "m1", "   ")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = svc.Reject(context.Background(), admin, "m1", strings.Repeat("x", MaxReasonLength+1))
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	m, err := svc.Reject(context.Background(), admin, "m1", "  not a resident ")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, m.ApprovalStatus)
	require.NotNil(t, m.RejectionReason)
	assert.Equal(t, "not a resident", *m.RejectionReason)
	assert.Equal(t, "not a resident", rec.entries[0].New.(map[string]any)["rejection_reason"])

	_, err = svc.Approve(context.Background(), admin, "m1")
	assert.Equal(t, apperr.AlreadyProcessed, apperr.KindOf(err))
}

func TestJoin(t *testing.T) {
	repo := newMockMembershipRepo(pending("m1", "u1", "s1"))
	svc, rec := newService(repo)
	p := &iam.Principal{UserID: "u1"}

	m, err := svc.Join(context.Background(), p, "s2", "")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, m.ApprovalStatus)
	assert.Equal(t, "member", m.Role)
	assert.Equal(t, 1, rec.count())

	_, err = svc.Join(context.Background(), p, "s1", "member")
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	_, err = svc.Join(context.Background(), p, "nope", "member")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = svc.Join(context.Background(), p, "s2", "developer")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestSetPrimary(t *testing.T) {
	a := pending("m1", "u1", "s1")
	a.IsPrimary = true
	repo := newMockMembershipRepo(a, pending("m2", "u1", "s2"), pending("m3", "u2", "s2"))
	svc, rec := newService(repo)
	p := &iam.Principal{UserID: "u1", Memberships: []iam.MembershipView{{ID: "m1", IsPrimary: true}, {ID: "m2"}}}

	require.NoError(t, svc.SetPrimary(context.Background(), p, "m2"))
	m1, _ := repo.GetByID(context.Background(), "m1")
	m2, _ := repo.GetByID(context.Background(), "m2")
	assert.False(t, m1.IsPrimary)
	assert.True(t, m2.IsPrimary)

	require.Equal(t, 1, rec.count())
	e := rec.entries[0]
	assert.Equal(t, "s2", e.SocietyID)
	assert.Equal(t, "m2", e.EntityID)
	assert.Equal(t, map[string]any{"primary_membership_id": "m1"}, e.Old)

	err := svc.SetPrimary(context.Background(), p, "m3")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	err = svc.SetPrimary(context.Background(), p, "ghost")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.Equal(t, 1, rec.count())
}

func TestListBySociety(t *testing.T) {
	repo := newMockMembershipRepo(pending("m1", "u1", "s1"), pending("m2", "u2", "s2"))
	ctx := context.Background()

	svc, _ := newService(repo)
	ms, err := svc.ListBySociety(ctx, societyAdmin("admin", "s1"), "s1", models.ApprovalPending)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "m1", ms[0].ID)

	_, err = svc.ListBySociety(ctx, &iam.Principal{UserID: "u9"}, "s1", "")
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	viewer, _ := newService(repo, "users.view")
	ms, err = viewer.ListBySociety(ctx, &iam.Principal{UserID: "u9"}, "s2", "")
	require.NoError(t, err)
	assert.Len(t, ms, 1)

	_, err = svc.ListBySociety(ctx, societyAdmin("admin", "s1"), "s1", "archived")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestApprove_StoreFailure(t *testing.T) {
	svc, _ := newService(newMockMembershipRepo())
	svc.memberships = failingRepo{}
	_, err := svc.Approve(context.Background(), societyAdmin("admin", "s1"), "m1")
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}

type failingRepo struct{ repository.MembershipRepository }

func (failingRepo) GetByID(context.Context, string) (*models.Membership, error) {
	return nil, errors.New("connection reset")
}
