package iam

import (
	"context"
	"sync"
	"time"

	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
)

type mockUserRepo struct {
	mu    sync.RWMutex
	users map[string]*models.User
	err   error
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	m := &mockUserRepo{users: map[string]*models.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}
func (m *mockUserRepo) CreateWithMemberships(ctx context.Context, u *models.User, _ []*models.Membership) error {
	return m.Create(ctx, u)
}
func (m *mockUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}
func (m *mockUserRepo) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, repository.ErrNotFound
}
func (m *mockUserRepo) List(context.Context) ([]models.User, error)             { return nil, nil }
func (m *mockUserRepo) SetGlobalRole(context.Context, string, *string) error    { return nil }
func (m *mockUserRepo) SetActive(context.Context, string, bool) error           { return nil }
func (m *mockUserRepo) UpdateLastLogin(context.Context, string, time.Time) error { return nil }
func (m *mockUserRepo) Delete(context.Context, string) error                    { return nil }

type mockMembershipRepo struct {
	mu     sync.RWMutex
	byUser map[string][]models.Membership
	err    error
}

func newMockMembershipRepo() *mockMembershipRepo {
	return &mockMembershipRepo{byUser: map[string][]models.Membership{}}
}

func (m *mockMembershipRepo) add(ms ...models.Membership) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range ms {
		m.byUser[mem.UserID] = append(m.byUser[mem.UserID], mem)
	}
}

func (m *mockMembershipRepo) Create(_ context.Context, mem *models.Membership) error {
	m.add(*mem)
	return nil
}
func (m *mockMembershipRepo) GetByID(context.Context, string) (*models.Membership, error) {
	return nil, repository.ErrNotFound
}
func (m *mockMembershipRepo) ListByUser(_ context.Context, userID string) ([]models.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]models.Membership(nil), m.byUser[userID]...), nil
}
func (m *mockMembershipRepo) ListBySociety(context.Context, string, string) ([]models.Membership, error) {
	return nil, nil
}
func (m *mockMembershipRepo) TransitionStatus(context.Context, repository.StatusTransition) (*models.Membership, error) {
	return nil, nil
}
func (m *mockMembershipRepo) SetPrimary(context.Context, string, string) error { return nil }

type mockSocietyRepo struct {
	mu  sync.RWMutex
	ids map[string]bool
}

func newMockSocietyRepo(ids ...string) *mockSocietyRepo {
	m := &mockSocietyRepo{ids: map[string]bool{}}
	for _, id := range ids {
		m.ids[id] = true
	}
	return m
}

func (m *mockSocietyRepo) Create(_ context.Context, s *models.Society) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[s.ID] = true
	return nil
}
func (m *mockSocietyRepo) GetByID(_ context.Context, id string) (*models.Society, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ids[id] {
		return nil, repository.ErrNotFound
	}
	return &models.Society{ID: id}, nil
}
func (m *mockSocietyRepo) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ids[id], nil
}
func (m *mockSocietyRepo) List(context.Context) ([]models.Society, error) { return nil, nil }

type mockScopeRecordRepo struct {
	mu      sync.RWMutex
	records map[string]models.ScopeRecord
	gets    int
}

func newMockScopeRecordRepo() *mockScopeRecordRepo {
	return &mockScopeRecordRepo{records: map[string]models.ScopeRecord{}}
}

func recordKey(societyID *string, role, scope string) string {
	tenant := ""
	if societyID != nil {
		tenant = *societyID
	}
	return tenant + "|" + role + "|" + scope
}

func (m *mockScopeRecordRepo) Get(_ context.Context, societyID *string, role, scope string) (*models.ScopeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	rec, ok := m.records[recordKey(societyID, role, scope)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}
func (m *mockScopeRecordRepo) ListForSociety(context.Context, string) ([]models.ScopeRecord, error) {
	return nil, nil
}
func (m *mockScopeRecordRepo) ListAll(context.Context) ([]models.ScopeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ScopeRecord
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}
func (m *mockScopeRecordRepo) Upsert(_ context.Context, rec *models.ScopeRecord) (*models.ScopeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(rec.SocietyID, rec.Role, rec.ScopeName)
	prev, ok := m.records[key]
	m.records[key] = *rec
	if ok {
		return &prev, nil
	}
	return nil, nil
}

func (m *mockScopeRecordRepo) getCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gets
}

type mockVerifier struct {
	creds map[string]*VerifiedCredential
	err   error
}

func (v *mockVerifier) Verify(_ context.Context, token string) (*VerifiedCredential, error) {
	if v.err != nil {
		return nil, v.err
	}
	cred, ok := v.creds[token]
	if !ok {
		return nil, ErrCredentialRejected
	}
	return cred, nil
}
