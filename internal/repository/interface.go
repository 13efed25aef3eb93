package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

var (
	// ErrNotFound is wrapped by every lookup that matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is wrapped when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
	// ErrStatusChanged is returned when a conditional status update matched no row
	// because the current status differs from the expected one.
	ErrStatusChanged = errors.New("status changed concurrently")
)

// UserRepository exposes persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	// CreateWithMemberships inserts the user and its memberships atomically.
	// The first membership is marked primary.
	CreateWithMemberships(ctx context.Context, user *models.User, memberships []*models.Membership) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	SetGlobalRole(ctx context.Context, id string, role *string) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// SocietyRepository exposes persistence operations for societies.
type SocietyRepository interface {
	Create(ctx context.Context, society *models.Society) error
	GetByID(ctx context.Context, id string) (*models.Society, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]models.Society, error)
}

// MembershipRepository exposes persistence operations for user-society memberships.
type MembershipRepository interface {
	// Create inserts m, marking it primary when the user has no primary membership yet.
	Create(ctx context.Context, m *models.Membership) error
	GetByID(ctx context.Context, id string) (*models.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]models.Membership, error)
	// ListBySociety filters by approval status when status is non-empty.
	ListBySociety(ctx context.Context, societyID, status string) ([]models.Membership, error)
	// TransitionStatus moves a membership from one approval status to another.
	// It returns ErrStatusChanged when the stored status is no longer from.
	TransitionStatus(ctx context.Context, t StatusTransition) (*models.Membership, error)
	// SetPrimary makes membershipID the user's only primary membership.
	SetPrimary(ctx context.Context, userID, membershipID string) error
}

// StatusTransition describes one approval state change.
type StatusTransition struct {
	MembershipID string
	From         string
	To           string
	ActorID      string
	Reason       *string
	At           time.Time
}

// ScopeRecordRepository exposes persistence operations for scope overrides.
type ScopeRecordRepository interface {
	// Get returns the record for (societyID, role, scope); societyID nil selects the system record.
	Get(ctx context.Context, societyID *string, role, scope string) (*models.ScopeRecord, error)
	// ListForSociety returns the society's records plus every system record.
	ListForSociety(ctx context.Context, societyID string) ([]models.ScopeRecord, error)
	ListAll(ctx context.Context) ([]models.ScopeRecord, error)
	// Upsert creates or updates the record keyed by (society, role, scope).
	// previous is nil when the record was created.
	Upsert(ctx context.Context, rec *models.ScopeRecord) (previous *models.ScopeRecord, err error)
}

// AuditFilter narrows audit log queries. Empty fields do not filter.
type AuditFilter struct {
	SocietyID  string
	EntityType string
	Action     string
	UserID     string
	Limit      int
	Offset     int
}

// AuditLogRepository exposes persistence operations for the append-only audit log.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	// List returns one page of entries, newest first, and the total matching count.
	List(ctx context.Context, filter AuditFilter) ([]models.AuditLog, int, error)
}

// IssueRepository exposes persistence operations for issues.
type IssueRepository interface {
	Create(ctx context.Context, issue *models.Issue) error
	GetByID(ctx context.Context, id string) (*models.Issue, error)
	Update(ctx context.Context, issue *models.Issue) error
	Delete(ctx context.Context, id string) error
	ListBySociety(ctx context.Context, societyID, status string) ([]models.Issue, error)
}

// RevokedTokenStore tracks logged-out token ids until they expire.
type RevokedTokenStore interface {
	Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
