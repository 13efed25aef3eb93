package server

import (
	"context"
	"io"

	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/services/accounts"
	"github.com/vksagar82/society-management-app-sub001/internal/services/audit"
	"github.com/vksagar82/society-management-app-sub001/internal/services/iam"
	"github.com/vksagar82/society-management-app-sub001/internal/services/issues"
	"github.com/vksagar82/society-management-app-sub001/internal/services/membership"
	"github.com/vksagar82/society-management-app-sub001/internal/services/scopes"
	"github.com/vksagar82/society-management-app-sub001/internal/services/societies"
)

// The handlers depend on these narrow contracts so tests can substitute stubs.

type accountService interface {
	Signup(ctx context.Context, in accounts.SignupInput) (*models.User, []*models.Membership, error)
	Login(ctx context.Context, email, password string) (*auth.TokenPair, *models.User, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, p *iam.Principal, refreshToken string) error
	DeleteUser(ctx context.Context, p *iam.Principal, targetID, societyID string) error
	SetGlobalRole(ctx context.Context, p *iam.Principal, targetID, role string) (*models.User, error)
}

type societyService interface {
	List(ctx context.Context) ([]models.Society, error)
	Create(ctx context.Context, p *iam.Principal, in societies.CreateInput) (*models.Society, error)
}

type membershipService interface {
	Approve(ctx context.Context, approver *iam.Principal, membershipID string) (*models.Membership, error)
	Reject(ctx context.Context, approver *iam.Principal, membershipID, reason string) (*models.Membership, error)
	Join(ctx context.Context, p *iam.Principal, societyID, role string) (*models.Membership, error)
	SetPrimary(ctx context.Context, p *iam.Principal, membershipID string) error
	ListBySociety(ctx context.Context, p *iam.Principal, societyID, status string) ([]models.Membership, error)
}

type scopeService interface {
	List(ctx context.Context, p *iam.Principal, societyID string) (*scopes.Listing, error)
	Upsert(ctx context.Context, p *iam.Principal, in scopes.UpsertInput) (*models.ScopeRecord, bool, error)
}

type auditService interface {
	List(ctx context.Context, p *iam.Principal, q audit.Query) (*audit.Page, error)
	ExportXLSX(ctx context.Context, p *iam.Principal, q audit.Query, w io.Writer) (int, error)
}

type issueService interface {
	Create(ctx context.Context, p *iam.Principal, societyID string, in issues.CreateInput) (*models.Issue, error)
	Get(ctx context.Context, p *iam.Principal, id string) (*models.Issue, error)
	List(ctx context.Context, p *iam.Principal, societyID, status string) ([]models.Issue, error)
	Update(ctx context.Context, p *iam.Principal, id string, raw map[string]any) (*models.Issue, error)
	Delete(ctx context.Context, p *iam.Principal, id string) error
}

var (
	_ accountService    = (*accounts.Service)(nil)
	_ societyService    = (*societies.Service)(nil)
	_ membershipService = (*membership.Service)(nil)
	_ scopeService      = (*scopes.Service)(nil)
	_ auditService      = (*audit.Service)(nil)
	_ issueService      = (*issues.Service)(nil)
)
