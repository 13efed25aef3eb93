package iam

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/telemetry"
)

// Decision reasons.
const (
	ReasonDeveloper         = "developer"
	ReasonGlobalAdmin       = "global_admin"
	ReasonDeveloperOnly     = "developer_only"
	ReasonOwner             = "owner"
	ReasonDeleteNeedsAdmin  = "delete_requires_admin"
	ReasonSelfDelete        = "self_delete"
	ReasonProtectedAccount  = "protected_developer"
	ReasonTenantOverride    = TierTenant
	ReasonSystemOverride    = TierSystem
	ReasonDefaultScopeTable = TierDefault
)

// Request describes one authorization question.
type Request struct {
	Resource string
	Action   string

	// SocietyID is the tenant the action targets; empty for tenant-less actions.
	SocietyID string

	// OwnerID is the author of the target issue. When it equals the caller,
	// issue edits and deletes are allowed regardless of scope tables.
	OwnerID string
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Scope   auth.Scope
	Role    auth.Role
	Reason  string
}

// Evaluator answers authorization requests.
type Evaluator struct {
	societies repository.SocietyRepository
	scopes    *ScopeOverrides
	metrics   *telemetry.AuthzMetrics
	logger    *zap.Logger
}

// NewEvaluator creates an Evaluator. metrics may be nil.
func NewEvaluator(societies repository.SocietyRepository, scopes *ScopeOverrides, metrics *telemetry.AuthzMetrics, logger *zap.Logger) *Evaluator {
	return &Evaluator{societies: societies, scopes: scopes, metrics: metrics, logger: logger}
}

// Authorize decides req for p.
//
// A referenced society that does not exist yields NotFound before any
// permission check. A resource/action pair outside the scope catalog is a
// programming error and yields an Internal error wrapping auth.ErrUnknownScope.
func (e *Evaluator) Authorize(ctx context.Context, p *Principal, req Request) (Decision, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.Authorize",
		attribute.String(telemetry.AttrSocietyID, req.SocietyID),
	)
	defer span.End()

	if p == nil {
		err := apperr.Unauthenticatedf("no principal")
		telemetry.RecordError(span, err)
		return Decision{}, err
	}

	if req.SocietyID != "" {
		exists, err := e.societies.Exists(ctx, req.SocietyID)
		if err != nil {
			telemetry.RecordError(span, err)
			return Decision{}, apperr.Wrap(apperr.Internal, err, "check society")
		}
		if !exists {
			err := apperr.NotFoundf("society %s not found", req.SocietyID)
			telemetry.RecordError(span, err)
			return Decision{}, err
		}
	}

	scope, err := auth.ScopeFor(req.Resource, req.Action)
	if err != nil {
		telemetry.RecordError(span, err)
		return Decision{}, apperr.Wrap(apperr.Internal, err, "authorization check")
	}

	d, err := e.decide(ctx, p, scope, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return Decision{}, err
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrPrincipalID, p.UserID),
		attribute.String(telemetry.AttrAuthzScope, string(scope)),
		attribute.Bool(telemetry.AttrAuthzAllowed, d.Allowed),
		attribute.String(telemetry.AttrAuthzReason, d.Reason),
	)
	e.metrics.RecordDecision(ctx, string(scope), string(d.Role), d.Allowed)
	if !d.Allowed {
		e.logger.Debug("authorization denied",
			zap.String("principal", describe(p)),
			zap.String("scope", string(scope)),
			zap.String("society_id", req.SocietyID),
			zap.String("reason", d.Reason),
		)
	}
	return d, nil
}

func (e *Evaluator) decide(ctx context.Context, p *Principal, scope auth.Scope, req Request) (Decision, error) {
	role := p.RoleIn(req.SocietyID)
	d := Decision{Scope: scope, Role: role}

	switch {
	case p.IsDeveloper():
		d.Allowed, d.Reason = true, ReasonDeveloper
		return d, nil
	case scope.DeveloperOnly():
		d.Reason = ReasonDeveloperOnly
		return d, nil
	case p.GlobalRole == auth.RoleAdmin:
		d.Allowed, d.Reason = true, ReasonGlobalAdmin
		return d, nil
	}

	if scope.Resource() == "issues" &&
		(scope.Action() == auth.ActionEdit || scope.Action() == auth.ActionDelete) &&
		req.OwnerID != "" && req.OwnerID == p.UserID {
		d.Allowed, d.Reason = true, ReasonOwner
		return d, nil
	}

	if scope.DeleteRestricted() && !role.AtLeast(auth.RoleAdmin) {
		d.Reason = ReasonDeleteNeedsAdmin
		return d, nil
	}

	allowed, tier, err := e.scopes.Resolve(ctx, req.SocietyID, role, scope)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownScope) {
			return Decision{}, apperr.Wrap(apperr.Internal, err, "authorization check")
		}
		return Decision{}, apperr.Wrap(apperr.Internal, err, "resolve scope")
	}
	d.Allowed, d.Reason = allowed, tier
	return d, nil
}

// Require is Authorize that turns a denial into a Forbidden error.
func (e *Evaluator) Require(ctx context.Context, p *Principal, req Request) error {
	d, err := e.Authorize(ctx, p, req)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &apperr.Error{
			Kind:    apperr.Forbidden,
			Message: fmt.Sprintf("missing permission %s", d.Scope),
			Code:    d.Reason,
		}
	}
	return nil
}

// RequireUserDeletion checks whether p may delete target within societyID.
// The caller loads target first so a missing user is reported as NotFound,
// and checks that target belongs to societyID. Only a global admin or
// developer may delete without naming a society.
func (e *Evaluator) RequireUserDeletion(ctx context.Context, p *Principal, target *models.User, societyID string) error {
	if p == nil {
		return apperr.Unauthenticatedf("no principal")
	}
	if societyID == "" && !p.IsGlobalAdmin() {
		return apperr.Invalid(apperr.FieldError{Field: "society_id", Message: "is required"})
	}
	if target.ID == p.UserID {
		return &apperr.Error{Kind: apperr.Forbidden, Message: "cannot delete your own account", Code: ReasonSelfDelete}
	}
	if auth.Role(target.GlobalRoleName()) == auth.RoleDeveloper && !p.IsDeveloper() {
		return &apperr.Error{Kind: apperr.Forbidden, Message: "only a developer can delete a developer account", Code: ReasonProtectedAccount}
	}
	return e.Require(ctx, p, Request{Resource: "users", Action: auth.ActionDelete, SocietyID: societyID})
}
