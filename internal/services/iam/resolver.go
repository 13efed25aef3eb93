package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/telemetry"
)

const tracerName = "societyapi/services/iam"

// Resolver builds a Principal from an Authorization header value.
type Resolver struct {
	verifier    CredentialVerifier
	users       repository.UserRepository
	memberships repository.MembershipRepository
	metrics     *telemetry.AuthMetrics
	logger      *zap.Logger
}

// NewResolver creates a Resolver. metrics may be nil.
func NewResolver(
	verifier CredentialVerifier,
	users repository.UserRepository,
	memberships repository.MembershipRepository,
	metrics *telemetry.AuthMetrics,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		verifier:    verifier,
		users:       users,
		memberships: memberships,
		metrics:     metrics,
		logger:      logger,
	}
}

// BearerToken extracts the token from "Bearer <token>". The scheme is case-insensitive.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// Resolve authenticates the header and loads the caller's user and memberships.
//
// Errors:
//   - Unauthenticated: header missing or malformed, credential rejected, user disabled
//   - PrincipalNotFound: credential valid but the user no longer exists
//   - Internal: a store failed
func (r *Resolver) Resolve(ctx context.Context, authorizationHeader string) (*Principal, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.Resolve")
	defer span.End()

	p, reason, err := r.resolve(ctx, authorizationHeader)
	if err != nil {
		telemetry.RecordError(span, err)
		r.metrics.RecordAuth(ctx, false, reason)
		r.logger.Debug("principal resolution failed", zap.String("reason", reason), zap.Error(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.String(telemetry.AttrPrincipalID, p.UserID),
		attribute.String(telemetry.AttrPrincipalRole, string(p.EffectiveRole)),
	)
	r.metrics.RecordAuth(ctx, true, "")
	return p, nil
}

func (r *Resolver) resolve(ctx context.Context, header string) (*Principal, string, error) {
	if strings.TrimSpace(header) == "" {
		return nil, "missing_header", apperr.Unauthenticatedf("missing authorization header")
	}
	token, ok := BearerToken(header)
	if !ok {
		return nil, "malformed_header", apperr.Unauthenticatedf("authorization header must be 'Bearer <token>'")
	}

	cred, err := r.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, ErrCredentialRejected) {
			return nil, "invalid_token", apperr.Wrap(apperr.Unauthenticated, err, "invalid or expired token")
		}
		return nil, "verifier_error", apperr.Wrap(apperr.Internal, err, "verify credential")
	}

	user, err := r.users.GetByID(ctx, cred.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "principal_not_found", apperr.Wrap(apperr.PrincipalNotFound, err, "user for token no longer exists")
		}
		return nil, "store_error", apperr.Wrap(apperr.Internal, err, "load user")
	}
	if !user.IsActive {
		return nil, "inactive_user", apperr.Unauthenticatedf("account is disabled")
	}

	memberships, err := r.memberships.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, "store_error", apperr.Wrap(apperr.Internal, err, "load memberships")
	}

	p := BuildPrincipal(user, memberships)
	p.TokenID = cred.TokenID
	p.TokenExpiresAt = cred.ExpiresAt
	return p, "", nil
}

// BuildPrincipal assembles a Principal from stored records.
// memberships must be in stable order (primary first, then join time).
func BuildPrincipal(user *models.User, memberships []models.Membership) *Principal {
	views := make([]MembershipView, 0, len(memberships))
	approved := false
	for _, m := range memberships {
		v := MembershipView{
			ID:             m.ID,
			SocietyID:      m.SocietyID,
			Role:           m.Role,
			ApprovalStatus: m.ApprovalStatus,
			IsPrimary:      m.IsPrimary,
		}
		if m.Society != nil {
			v.SocietyName = m.Society.Name
		}
		views = append(views, v)
		approved = approved || m.Approved()
	}

	global := auth.Role(user.GlobalRoleName())
	if !global.ValidGlobal() {
		global = ""
	}

	p := &Principal{
		UserID:             user.ID,
		Email:              user.Email,
		FullName:           user.FullName,
		GlobalRole:         global,
		EffectiveRole:      EffectiveRole(global, views),
		Memberships:        views,
		HasApprovedSociety: approved,
	}
	if primary, ok := PrimaryMembership(views); ok {
		p.SocietyID = primary.SocietyID
	}
	return p
}

// describe is used in log lines.
func describe(p *Principal) string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%s)", p.UserID, p.EffectiveRole)
}
