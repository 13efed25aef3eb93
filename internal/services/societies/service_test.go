package societies

import (
	"context"
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

type mockSocietyRepo struct {
	mu    sync.Mutex
	items []models.Society
}

func (m *mockSocietyRepo) Create(_ context.Context, s *models.Society) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if existing.Name == s.Name {
			return repository.ErrConflict
		}
	}
	s.ID = "soc-" + s.Name
	m.items = append(m.items, *s)
	return nil
}
func (m *mockSocietyRepo) GetByID(context.Context, string) (*models.Society, error) {
	return nil, repository.ErrNotFound
}
func (m *mockSocietyRepo) Exists(context.Context, string) (bool, error) { return true, nil }
func (m *mockSocietyRepo) List(context.Context) ([]models.Society, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Society(nil), m.items...), nil
}

// ceilingAuthorizer allows societies.create to developers only.
type ceilingAuthorizer struct{}

func (ceilingAuthorizer) Authorize(_ context.Context, p *iam.Principal, _ iam.Request) (iam.Decision, error) {
	return iam.Decision{Allowed: p.IsDeveloper()}, nil
}
func (a ceilingAuthorizer) Require(ctx context.Context, p *iam.Principal, req iam.Request) error {
	if d, _ := a.Authorize(ctx, p, req); !d.Allowed {
		return apperr.Forbiddenf("denied")
	}
	return nil
}
func (ceilingAuthorizer) RequireUserDeletion(context.Context, *iam.Principal, *models.User, string) error {
	return nil
}

type recordingRecorder struct{ entries []audit.Entry }

func (r *recordingRecorder) Record(_ context.Context, e audit.Entry) { r.entries = append(r.entries, e) }

func TestCreate(t *testing.T) {
	repo := &mockSocietyRepo{}
	rec := &recordingRecorder{}
	svc := NewService(repo, ceilingAuthorizer{}, rec, zap.NewNop())
	dev := &iam.Principal{UserID: "dev", GlobalRole: auth.RoleDeveloper}
	ctx := context.Background()

	s, err := svc.Create(ctx, dev, CreateInput{Name: " Green Acres ", City: "Pune"})
	require.NoError(t, err)
	assert.Equal(t, "Green Acres", s.Name)
	assert.Equal(t, "dev", *s.CreatedBy)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, EntitySociety, rec.entries[0].EntityType)
	assert.Equal(t, s.ID, rec.entries[0].SocietyID)

	_, err = svc.Create(ctx, dev, CreateInput{Name: "Green Acres"})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	_, err = svc.Create(ctx, dev, CreateInput{Name: "  "})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = svc.Create(ctx, &iam.Principal{UserID: "a", GlobalRole: auth.RoleAdmin}, CreateInput{Name: "Blue Hills"})
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
