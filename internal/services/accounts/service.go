// Package accounts handles signup, credential exchange and user administration.
package accounts

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/services/audit"
	"github.com/vksagar82/society-management-app-sub001/internal/services/iam"
	"github.com/vksagar82/society-management-app-sub001/internal/telemetry"
)

// EntityUser is the audit entity type for user writes.
const EntityUser = "user"

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var errBadCredentials = apperr.Unauthenticatedf("invalid email or password")

// Service implements account operations.
type Service struct {
	users       repository.UserRepository
	societies   repository.SocietyRepository
	memberships repository.MembershipRepository
	revoked   repository.RevokedTokenStore
	tokens    *auth.TokenIssuer
	authz     iam.Authorizer
	recorder  audit.Recorder
	metrics   *telemetry.AuthMetrics
	logger    *zap.Logger
	now       func() time.Time
	hash      func(string) (string, error)
}

// Deps lists the collaborators of Service.
type Deps struct {
	Users       repository.UserRepository
	Societies   repository.SocietyRepository
	Memberships repository.MembershipRepository
	Revoked   repository.RevokedTokenStore
	Tokens    *auth.TokenIssuer
	Authz     iam.Authorizer
	Recorder  audit.Recorder
	Metrics   *telemetry.AuthMetrics
	Logger    *zap.Logger
}

// NewService creates the accounts service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:       d.Users,
		societies:   d.Societies,
		memberships: d.Memberships,
		revoked:   d.Revoked,
		tokens:    d.Tokens,
		authz:     d.Authz,
		recorder:  d.Recorder,
		metrics:   d.Metrics,
		logger:    logger,
		now:       time.Now,
		hash:      auth.HashPassword,
	}
}

// SignupInput registers a user and requests membership of each society.
type SignupInput struct {
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	FullName   string   `json:"full_name"`
	Phone      string   `json:"phone"`
	SocietyIDs []string `json:"society_ids"`
}

func validateCredentials(email, password, fullName string) []apperr.FieldError {
	var fields []apperr.FieldError
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if len(password) < MinPasswordLength {
		fields = append(fields, apperr.FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	if strings.TrimSpace(fullName) == "" {
		fields = append(fields, apperr.FieldError{Field: "full_name", Message: "is required"})
	}
	return fields
}

// Signup creates an active user with one pending membership per selected
// society. The first selected society becomes the primary membership.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, []*models.Membership, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	fields := validateCredentials(in.Email, in.Password, in.FullName)

	societyIDs := dedupe(in.SocietyIDs)
	if len(societyIDs) == 0 {
		fields = append(fields, apperr.FieldError{Field: "society_ids", Message: "select at least one society"})
	}
	for _, id := range societyIDs {
		exists, err := s.societies.Exists(ctx, id)
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.Internal, err, "check society")
		}
		if !exists {
			fields = append(fields, apperr.FieldError{Field: "society_ids", Message: "unknown society " + id})
		}
	}
	if len(fields) > 0 {
		return nil, nil, apperr.Invalid(fields...)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, err, "hash password")
	}
	user := &models.User{
		Email:        in.Email,
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		IsActive:     true,
	}
	memberships := make([]*models.Membership, len(societyIDs))
	for i, id := range societyIDs {
		memberships[i] = &models.Membership{
			SocietyID:      id,
			Role:           string(auth.RoleMember),
			ApprovalStatus: models.ApprovalPending,
		}
	}

	if err := s.users.CreateWithMemberships(ctx, user, memberships); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, nil, &apperr.Error{
				Kind:    apperr.Conflict,
				Message: "email already registered",
				Fields:  []apperr.FieldError{{Field: "email", Message: "is already registered"}},
			}
		}
		return nil, nil, apperr.Wrap(apperr.Internal, err, "create user")
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditCreate,
		EntityType: EntityUser,
		EntityID:   user.ID,
		SocietyID:  societyIDs[0],
		ActorID:    user.ID,
		New:        user,
	})
	s.logger.Info("user signed up", zap.String("user_id", user.ID), zap.Int("societies", len(societyIDs)))
	return user, memberships, nil
}

// CreateUserInput provisions a user outside the signup flow.
type CreateUserInput struct {
	Email      string
	Password   string
	FullName   string
	GlobalRole string
}

// CreateUser provisions an active user without memberships. It bypasses
// authorization and is meant for operator tooling, e.g. seeding the first developer.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	fields := validateCredentials(in.Email, in.Password, in.FullName)
	if in.GlobalRole != "" && !auth.Role(in.GlobalRole).ValidGlobal() {
		fields = append(fields, apperr.FieldError{Field: "global_role", Message: "must be one of developer, admin, manager, member"})
	}
	if len(fields) > 0 {
		return nil, apperr.Invalid(fields...)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "hash password")
	}
	user := &models.User{
		Email:        in.Email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hash,
		IsActive:     true,
	}
	if in.GlobalRole != "" {
		role := in.GlobalRole
		user.GlobalRole = &role
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.New(apperr.Conflict, "email %s already registered", in.Email)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "create user")
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditCreate,
		EntityType: EntityUser,
		EntityID:   user.ID,
		New:        user,
	})
	return user, nil
}

// Login exchanges email and password for a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*auth.TokenPair, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.metrics.RecordAuth(ctx, false, "unknown_email")
		return nil, nil, errBadCredentials
	case err != nil:
		return nil, nil, apperr.Wrap(apperr.Internal, err, "load user")
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.metrics.RecordAuth(ctx, false, "bad_password")
			return nil, nil, errBadCredentials
		}
		return nil, nil, apperr.Wrap(apperr.Internal, err, "check password")
	}
	if !user.IsActive {
		s.metrics.RecordAuth(ctx, false, "inactive")
		return nil, nil, apperr.Unauthenticatedf("account is disabled")
	}

	pair, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, err, "issue tokens")
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.metrics.RecordAuth(ctx, true, "password")
	return pair, user, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new pair issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		s.metrics.RecordAuth(ctx, false, "bad_refresh")
		return nil, apperr.Unauthenticatedf("invalid refresh token")
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "check revocation")
	}
	if revoked {
		s.metrics.RecordAuth(ctx, false, "revoked_refresh")
		return nil, apperr.Unauthenticatedf("refresh token revoked")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, &apperr.Error{Kind: apperr.PrincipalNotFound, Message: "user no longer exists"}
	case err != nil:
		return nil, apperr.Wrap(apperr.Internal, err, "load user")
	}
	if !user.IsActive {
		return nil, apperr.Unauthenticatedf("account is disabled")
	}

	if err := s.revoked.Revoke(ctx, claims.ID, user.ID, claims.ExpiresAt.Time); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "revoke refresh token")
	}
	pair, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "issue tokens")
	}
	s.metrics.RecordAuth(ctx, true, "refresh")
	return pair, nil
}

// Logout revokes the caller's access token and, when given and valid, its refresh token.
func (s *Service) Logout(ctx context.Context, p *iam.Principal, refreshToken string) error {
	if p == nil {
		return apperr.Unauthenticatedf("no principal")
	}
	if p.TokenID != "" {
		if err := s.revoked.Revoke(ctx, p.TokenID, p.UserID, p.TokenExpiresAt); err != nil {
			return apperr.Wrap(apperr.Internal, err, "revoke access token")
		}
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.Parse(refreshToken, auth.TokenTypeRefresh)
	if err != nil || claims.Subject != p.UserID {
		return nil
	}
	if err := s.revoked.Revoke(ctx, claims.ID, p.UserID, claims.ExpiresAt.Time); err != nil {
		return apperr.Wrap(apperr.Internal, err, "revoke refresh token")
	}
	return nil
}

// DeleteUser removes a user. Self-deletion and deletion of developers by
// non-developers are refused; otherwise users.delete is required in societyID,
// and the target must hold a membership there. Only global admins and
// developers may omit societyID.
func (s *Service) DeleteUser(ctx context.Context, p *iam.Principal, targetID, societyID string) error {
	target, err := s.users.GetByID(ctx, targetID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFoundf("user %s not found", targetID)
	case err != nil:
		return apperr.Wrap(apperr.Internal, err, "load user")
	}

	if err := s.authz.RequireUserDeletion(ctx, p, target, societyID); err != nil {
		return err
	}
	if societyID != "" {
		if err := s.requireMemberOf(ctx, targetID, societyID); err != nil {
			return err
		}
	}
	if err := s.users.Delete(ctx, targetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFoundf("user %s not found", targetID)
		}
		return apperr.Wrap(apperr.Internal, err, "delete user")
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditDelete,
		EntityType: EntityUser,
		EntityID:   targetID,
		SocietyID:  societyID,
		ActorID:    p.UserID,
		Old:        target,
	})
	s.logger.Info("user deleted", zap.String("user_id", targetID), zap.String("by", p.UserID))
	return nil
}

func (s *Service) requireMemberOf(ctx context.Context, userID, societyID string) error {
	ms, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "load memberships")
	}
	for _, m := range ms {
		if m.SocietyID == societyID {
			return nil
		}
	}
	return apperr.Forbiddenf("user %s is not a member of society %s", userID, societyID)
}

// SetGlobalRole grants or, with an empty role, revokes a global role.
// Only global admins and developers may change global roles, only developers
// may grant or revoke developer, and nobody may change their own.
func (s *Service) SetGlobalRole(ctx context.Context, p *iam.Principal, targetID, role string) (*models.User, error) {
	if p == nil {
		return nil, apperr.Unauthenticatedf("no principal")
	}
	if role != "" && !auth.Role(role).ValidGlobal() {
		return nil, apperr.Invalid(apperr.FieldError{Field: "global_role", Message: "must be one of developer, admin, manager, member, or empty"})
	}

	target, err := s.users.GetByID(ctx, targetID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFoundf("user %s not found", targetID)
	case err != nil:
		return nil, apperr.Wrap(apperr.Internal, err, "load user")
	}

	current := target.GlobalRoleName()
	switch {
	case !p.IsGlobalAdmin():
		return nil, apperr.Forbiddenf("only global admins can change global roles")
	case target.ID == p.UserID:
		return nil, apperr.Forbiddenf("cannot change your own global role")
	case (role == string(auth.RoleDeveloper) || current == string(auth.RoleDeveloper)) && !p.IsDeveloper():
		return nil, apperr.Forbiddenf("only a developer can grant or revoke the developer role")
	}
	if current == role {
		return target, nil
	}

	var next *string
	if role != "" {
		next = &role
	}
	if err := s.users.SetGlobalRole(ctx, targetID, next); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "set global role")
	}
	target.GlobalRole = next

	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditUpdate,
		EntityType: EntityUser,
		EntityID:   targetID,
		ActorID:    p.UserID,
		Old:        map[string]any{"global_role": nullable(current)},
		New:        map[string]any{"global_role": nullable(role)},
	})
	return target, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
