package iam

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/telemetry"
)

// PrincipalResolver turns an Authorization header into a Principal.
type PrincipalResolver interface {
	Resolve(ctx context.Context, authorizationHeader string) (*Principal, error)
}

// Authorizer answers permission questions for a resolved Principal.
type Authorizer interface {
	Authorize(ctx context.Context, p *Principal, req Request) (Decision, error)
	Require(ctx context.Context, p *Principal, req Request) error
	RequireUserDeletion(ctx context.Context, p *Principal, target *models.User, societyID string) error
}

// ScopeInvalidator is notified after a ScopeRecord write.
type ScopeInvalidator interface {
	Invalidate(societyID *string, role, scope string)
}

var (
	_ PrincipalResolver = (*Resolver)(nil)
	_ Authorizer        = (*Evaluator)(nil)
	_ ScopeInvalidator  = (*ScopeOverrides)(nil)
)

// Deps lists the stores and settings the IAM components need.
type Deps struct {
	Users       repository.UserRepository
	Memberships repository.MembershipRepository
	Societies   repository.SocietyRepository
	ScopeRecs   repository.ScopeRecordRepository
	Revoked     repository.RevokedTokenStore
	Tokens      *auth.TokenIssuer

	// Defaults is built from the casbin model when nil.
	Defaults *auth.DefaultTable

	ScopeCacheSize int
	ScopeCacheTTL  time.Duration

	AuthMetrics  *telemetry.AuthMetrics
	AuthzMetrics *telemetry.AuthzMetrics
	Logger       *zap.Logger
}

// Service bundles the resolver, evaluator and override cache built from one Deps.
type Service struct {
	*Resolver
	*Evaluator
	Overrides *ScopeOverrides
	Defaults  *auth.DefaultTable
}

// NewService wires the IAM components.
func NewService(deps Deps) (*Service, error) {
	defaults := deps.Defaults
	if defaults == nil {
		var err error
		if defaults, err = auth.NewDefaultTable(); err != nil {
			return nil, fmt.Errorf("build default scope table: %w", err)
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	overrides := NewScopeOverrides(deps.ScopeRecs, defaults, deps.ScopeCacheSize, deps.ScopeCacheTTL)
	verifier := NewJWTVerifier(deps.Tokens, deps.Revoked)

	return &Service{
		Resolver:  NewResolver(verifier, deps.Users, deps.Memberships, deps.AuthMetrics, logger),
		Evaluator: NewEvaluator(deps.Societies, overrides, deps.AuthzMetrics, logger),
		Overrides: overrides,
		Defaults:  defaults,
	}, nil
}
