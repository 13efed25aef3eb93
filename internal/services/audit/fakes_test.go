package audit

import (
	"context"
	"sync"

	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/services/iam"
)

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditLog
	filters []repository.AuditFilter
	err     error
	block   chan struct{}
}

func (m *mockAuditRepo) Create(_ context.Context, entry *models.AuditLog) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAuditRepo) List(_ context.Context, f repository.AuditFilter) ([]models.AuditLog, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, f)
	if m.err != nil {
		return nil, 0, m.err
	}
	out := append([]models.AuditLog(nil), m.entries...)
	return out, len(out), nil
}

func (m *mockAuditRepo) all() []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditLog(nil), m.entries...)
}

// stubAuthorizer allows the scopes listed in allow and denies everything else.
type stubAuthorizer struct {
	allow map[string]bool
}

func (s *stubAuthorizer) Authorize(_ context.Context, _ *iam.Principal, req iam.Request) (iam.Decision, error) {
	return iam.Decision{Allowed: s.allow[req.Resource+"."+req.Action]}, nil
}

func (s *stubAuthorizer) Require(ctx context.Context, p *iam.Principal, req iam.Request) error {
	d, _ := s.Authorize(ctx, p, req)
	if !d.Allowed {
		return errForbidden
	}
	return nil
}

func (s *stubAuthorizer) RequireUserDeletion(context.Context, *iam.Principal, *models.User, string) error {
	return nil
}

type recordingRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *recordingRecorder) Record(_ context.Context, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}
