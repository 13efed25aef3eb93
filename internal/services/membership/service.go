// Package membership implements the approval workflow for user-society
// memberships and the one-primary-membership rule.
//
// A membership starts pending and moves once, to approved or rejected.
// The transition is a conditional update on approval_status, so of two
// concurrent approvals exactly one succeeds and the other observes
// AlreadyProcessed.
package membership

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/services/audit"
	"github.com/vksagar82/society-management-app-sub001/internal/services/iam"
	"github.com/vksagar82/society-management-app-sub001/internal/telemetry"
)

const tracerName = "societyapi/services/membership"

// Audit entity types written by this package.
const (
	EntityApproval   = "user_approval"
	EntityMembership = "membership"
)

// MaxReasonLength bounds a rejection reason, in characters.
const MaxReasonLength = 500

// Service runs membership operations.
type Service struct {
	memberships repository.MembershipRepository
	societies   repository.SocietyRepository
	authz       iam.Authorizer
	recorder    audit.Recorder
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates the membership service.
func NewService(
	memberships repository.MembershipRepository,
	societies repository.SocietyRepository,
	authz iam.Authorizer,
	recorder audit.Recorder,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		memberships: memberships,
		societies:   societies,
		authz:       authz,
		recorder:    recorder,
		logger:      logger,
		now:         time.Now,
	}
}

// Approve moves a pending membership to approved.
//
// Errors, in evaluation order: NotFound when the membership does not exist,
// Forbidden when the approver lacks authority over its society, and
// AlreadyProcessed when it is no longer pending.
func (s *Service) Approve(ctx context.Context, approver *iam.Principal, membershipID string) (*models.Membership, error) {
	return s.transition(ctx, approver, membershipID, models.ApprovalApproved, nil)
}

// Reject moves a pending membership to rejected, recording reason.
// reason must be non-empty and at most MaxReasonLength characters.
func (s *Service) Reject(ctx context.Context, approver *iam.Principal, membershipID, reason string) (*models.Membership, error) {
	reason = strings.TrimSpace(reason)
	switch {
	case reason == "":
		return nil, apperr.Invalid(apperr.FieldError{Field: "reason", Message: "is required"})
	case utf8.RuneCountInString(reason) > MaxReasonLength:
		return nil, apperr.Invalid(apperr.FieldError{Field: "reason", Message: "must be at most 500 characters"})
	}
	return s.transition(ctx, approver, membershipID, models.ApprovalRejected, &reason)
}

func (s *Service) transition(ctx context.Context, approver *iam.Principal, membershipID, to string, reason *string) (*models.Membership, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "membership.Transition",
		attribute.String(telemetry.AttrMembershipID, membershipID),
		attribute.String(telemetry.AttrMembershipStatus, to),
	)
	defer span.End()

	if approver == nil {
		return nil, apperr.Unauthenticatedf("no principal")
	}

	current, err := s.memberships.GetByID(ctx, membershipID)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFoundf("membership %s not found", membershipID)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "load membership")
	}
	span.SetAttributes(attribute.String(telemetry.AttrSocietyID, current.SocietyID))

	if !CanDecide(approver, current.SocietyID) {
		err := apperr.Forbiddenf("only a society admin can review memberships")
		telemetry.RecordError(span, err)
		return nil, err
	}

	if current.ApprovalStatus != models.ApprovalPending {
		return nil, alreadyProcessed(current.ApprovalStatus)
	}

	updated, err := s.memberships.TransitionStatus(ctx, repository.StatusTransition{
		MembershipID: membershipID,
		From:         models.ApprovalPending,
		To:           to,
		ActorID:      approver.UserID,
		Reason:       reason,
		At:           s.now().UTC(),
	})
	switch {
	case errors.Is(err, repository.ErrStatusChanged):
		telemetry.AddEvent(span, "membership.lost_race")
		return nil, alreadyProcessed("")
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFoundf("membership %s not found", membershipID)
	case err != nil:
		telemetry.RecordError(span, err)
		return nil, apperr.Wrap(apperr.Internal, err, "update membership")
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditUpdate,
		EntityType: EntityApproval,
		EntityID:   updated.ID,
		SocietyID:  updated.SocietyID,
		ActorID:    approver.UserID,
		Old:        approvalSnapshot(current),
		New:        approvalSnapshot(updated),
	})
	s.logger.Info("membership reviewed",
		zap.String("membership_id", updated.ID),
		zap.String("society_id", updated.SocietyID),
		zap.String("user_id", updated.UserID),
		zap.String("status", updated.ApprovalStatus),
		zap.String("reviewer", approver.UserID),
	)
	return updated, nil
}

// CanDecide reports whether p may approve or reject memberships of societyID:
// global admins and developers anywhere, society admins in their own society.
func CanDecide(p *iam.Principal, societyID string) bool {
	return p.IsGlobalAdmin() || p.IsApprovedAdminOf(societyID)
}

func alreadyProcessed(status string) error {
	msg := "membership has already been processed"
	if status != "" {
		msg = "membership is already " + status
	}
	return &apperr.Error{Kind: apperr.AlreadyProcessed, Message: msg, Code: "already_processed"}
}

func approvalSnapshot(m *models.Membership) map[string]any {
	snap := map[string]any{
		"user_id":         m.UserID,
		"society_id":      m.SocietyID,
		"role":            m.Role,
		"approval_status": m.ApprovalStatus,
	}
	if m.ApprovedBy != nil {
		snap["approved_by"] = *m.ApprovedBy
	}
	if m.ApprovedAt != nil {
		snap["approved_at"] = m.ApprovedAt.UTC().Format(time.RFC3339)
	}
	if m.RejectionReason != nil {
		snap["rejection_reason"] = *m.RejectionReason
	}
	return snap
}

// Join requests membership of societyID for p. The membership is pending and
// becomes primary only when p has no primary membership yet.
func (s *Service) Join(ctx context.Context, p *iam.Principal, societyID, role string) (*models.Membership, error) {
	if p == nil {
		return nil, apperr.Unauthenticatedf("no principal")
	}
	if role == "" {
		role = string(auth.RoleMember)
	}
	if !auth.Role(role).ValidTenant() {
		return nil, apperr.Invalid(apperr.FieldError{Field: "role", Message: "must be one of admin, manager, member"})
	}
	if societyID == "" {
		return nil, apperr.Invalid(apperr.FieldError{Field: "society_id", Message: "is required"})
	}
	if err := s.requireSociety(ctx, societyID); err != nil {
		return nil, err
	}

	m := &models.Membership{
		UserID:         p.UserID,
		SocietyID:      societyID,
		Role:           role,
		ApprovalStatus: models.ApprovalPending,
	}
	if err := s.memberships.Create(ctx, m); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.New(apperr.Conflict, "already a member of society %s", societyID)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "create membership")
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditCreate,
		EntityType: EntityMembership,
		EntityID:   m.ID,
		SocietyID:  societyID,
		ActorID:    p.UserID,
		New:        m,
	})
	return m, nil
}

func (s *Service) requireSociety(ctx context.Context, societyID string) error {
	exists, err := s.societies.Exists(ctx, societyID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "check society")
	}
	if !exists {
		return apperr.NotFoundf("society %s not found", societyID)
	}
	return nil
}

// SetPrimary makes membershipID, which must belong to p, p's primary membership.
// The audit entry belongs to the society of the new primary membership.
func (s *Service) SetPrimary(ctx context.Context, p *iam.Principal, membershipID string) error {
	if p == nil {
		return apperr.Unauthenticatedf("no principal")
	}
	previous, _ := iam.PrimaryMembership(p.Memberships)

	target, err := s.memberships.GetByID(ctx, membershipID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFoundf("membership %s not found", membershipID)
	case err != nil:
		return apperr.Wrap(apperr.Internal, err, "load membership")
	case target.UserID != p.UserID:
		return apperr.NotFoundf("membership %s not found", membershipID)
	}

	if err := s.memberships.SetPrimary(ctx, p.UserID, membershipID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFoundf("membership %s not found", membershipID)
		}
		return apperr.Wrap(apperr.Internal, err, "set primary membership")
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditUpdate,
		EntityType: EntityMembership,
		EntityID:   membershipID,
		SocietyID:  target.SocietyID,
		ActorID:    p.UserID,
		Old:        map[string]any{"primary_membership_id": previous.ID},
		New:        map[string]any{"primary_membership_id": membershipID},
	})
	return nil
}

// ListBySociety returns a society's memberships, optionally filtered by status.
// It requires users.view in the society or review authority over it.
func (s *Service) ListBySociety(ctx context.Context, p *iam.Principal, societyID, status string) ([]models.Membership, error) {
	switch status {
	case "", models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected:
	default:
		return nil, apperr.Invalid(apperr.FieldError{Field: "status", Message: "must be one of pending, approved, rejected"})
	}

	d, err := s.authz.Authorize(ctx, p, iam.Request{Resource: "users", Action: auth.ActionView, SocietyID: societyID})
	if err != nil {
		return nil, err
	}
	if !d.Allowed && !CanDecide(p, societyID) {
		return nil, &apperr.Error{Kind: apperr.Forbidden, Message: "missing permission " + string(d.Scope), Code: d.Reason}
	}

	ms, err := s.memberships.ListBySociety(ctx, societyID, status)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list memberships")
	}
	if ms == nil {
		ms = []models.Membership{}
	}
	return ms, nil
}
