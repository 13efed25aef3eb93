// Package issues is the issue tracker of a society. Every operation is
// authorized through the evaluator and every write is audited.
package issues

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/services/audit"
	"github.com/vksagar82/society-management-app-sub001/internal/services/iam"
)

// EntityIssue is the audit entity type for issue writes.
const EntityIssue = "issue"

var (
	validStatuses   = []string{models.IssueOpen, models.IssueInProgress, models.IssueResolved, models.IssueClosed}
	validPriorities = []string{"low", "medium", "high", "urgent"}
)

// CreateInput describes a new issue.
type CreateInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	AssignedTo  *string `json:"assigned_to"`
}

// patch holds the fields a PATCH body may carry. Absent keys stay nil.
type patch struct {
	Title       *string `mapstructure:"title"`
	Description *string `mapstructure:"description"`
	Status      *string `mapstructure:"status"`
	Priority    *string `mapstructure:"priority"`
	AssignedTo  *string `mapstructure:"assigned_to"`
}

// Service manages issues.
type Service struct {
	repo     repository.IssueRepository
	authz    iam.Authorizer
	recorder audit.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the issue service.
func NewService(repo repository.IssueRepository, authz iam.Authorizer, recorder audit.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, authz: authz, recorder: recorder, logger: logger, now: time.Now}
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Create reports a new issue in societyID. Assigning on creation also needs issues.assign.
func (s *Service) Create(ctx context.Context, p *iam.Principal, societyID string, in CreateInput) (*models.Issue, error) {
	if err := s.authz.Require(ctx, p, iam.Request{Resource: "issues", Action: auth.ActionCreate, SocietyID: societyID}); err != nil {
		return nil, err
	}

	var fields []apperr.FieldError
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		fields = append(fields, apperr.FieldError{Field: "title", Message: "is required"})
	}
	if in.Priority == "" {
		in.Priority = "medium"
	}
	if !oneOf(in.Priority, validPriorities) {
		fields = append(fields, apperr.FieldError{Field: "priority", Message: "must be one of low, medium, high, urgent"})
	}
	if len(fields) > 0 {
		return nil, apperr.Invalid(fields...)
	}
	if in.AssignedTo != nil {
		if err := s.authz.Require(ctx, p, iam.Request{Resource: "issues", Action: auth.ActionAssign, SocietyID: societyID}); err != nil {
			return nil, err
		}
	}

	issue := &models.Issue{
		SocietyID:   societyID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Status:      models.IssueOpen,
		Priority:    in.Priority,
		CreatedBy:   p.UserID,
		AssignedTo:  in.AssignedTo,
	}
	if err := s.repo.Create(ctx, issue); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create issue")
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditCreate,
		EntityType: EntityIssue,
		EntityID:   issue.ID,
		SocietyID:  societyID,
		ActorID:    p.UserID,
		New:        issue,
	})
	return issue, nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Issue, error) {
	issue, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFoundf("issue %s not found", id)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "load issue")
	}
	return issue, nil
}

// Get returns one issue.
func (s *Service) Get(ctx context.Context, p *iam.Principal, id string) (*models.Issue, error) {
	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Require(ctx, p, iam.Request{Resource: "issues", Action: auth.ActionView, SocietyID: issue.SocietyID}); err != nil {
		return nil, err
	}
	return issue, nil
}

// List returns a society's issues, optionally filtered by status.
func (s *Service) List(ctx context.Context, p *iam.Principal, societyID, status string) ([]models.Issue, error) {
	if status != "" && !oneOf(status, validStatuses) {
		return nil, apperr.Invalid(apperr.FieldError{Field: "status", Message: "must be one of open, in_progress, resolved, closed"})
	}
	if err := s.authz.Require(ctx, p, iam.Request{Resource: "issues", Action: auth.ActionView, SocietyID: societyID}); err != nil {
		return nil, err
	}
	list, err := s.repo.ListBySociety(ctx, societyID, status)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list issues")
	}
	if list == nil {
		list = []models.Issue{}
	}
	return list, nil
}

func decodePatch(raw map[string]any) (patch, error) {
	var (
		out  patch
		meta mapstructure.Metadata
	)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:   &out,
		Metadata: &meta,
	})
	if err != nil {
		return patch{}, apperr.Wrap(apperr.Internal, err, "build decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return patch{}, apperr.Invalid(apperr.FieldError{Field: "body", Message: err.Error()})
	}
	if len(meta.Unused) > 0 {
		fields := make([]apperr.FieldError, 0, len(meta.Unused))
		for _, k := range meta.Unused {
			fields = append(fields, apperr.FieldError{Field: k, Message: "cannot be changed"})
		}
		return patch{}, apperr.Invalid(fields...)
	}
	return out, nil
}

// Update applies a partial update. raw is the decoded JSON body; an explicit
// null for assigned_to clears the assignment. The author may always edit
// their issue; changing the assignee also needs issues.assign.
func (s *Service) Update(ctx context.Context, p *iam.Principal, id string, raw map[string]any) (*models.Issue, error) {
	before, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Require(ctx, p, iam.Request{
		Resource: "issues", Action: auth.ActionEdit, SocietyID: before.SocietyID, OwnerID: before.CreatedBy,
	}); err != nil {
		return nil, err
	}

	ptch, err := decodePatch(raw)
	if err != nil {
		return nil, err
	}
	_, assigning := raw["assigned_to"]
	if assigning {
		if err := s.authz.Require(ctx, p, iam.Request{Resource: "issues", Action: auth.ActionAssign, SocietyID: before.SocietyID}); err != nil {
			return nil, err
		}
	}

	after := *before
	var fields []apperr.FieldError
	if ptch.Title != nil {
		after.Title = strings.TrimSpace(*ptch.Title)
		if after.Title == "" {
			fields = append(fields, apperr.FieldError{Field: "title", Message: "must not be empty"})
		}
	}
	if ptch.Description != nil {
		after.Description = strings.TrimSpace(*ptch.Description)
	}
	if ptch.Priority != nil {
		after.Priority = *ptch.Priority
		if !oneOf(after.Priority, validPriorities) {
			fields = append(fields, apperr.FieldError{Field: "priority", Message: "must be one of low, medium, high, urgent"})
		}
	}
	if ptch.Status != nil {
		after.Status = *ptch.Status
		if !oneOf(after.Status, validStatuses) {
			fields = append(fields, apperr.FieldError{Field: "status", Message: "must be one of open, in_progress, resolved, closed"})
		}
	}
	if assigning {
		after.AssignedTo = ptch.AssignedTo
	}
	if len(fields) > 0 {
		return nil, apperr.Invalid(fields...)
	}

	now := s.now().UTC()
	switch {
	case after.Status == models.IssueResolved && before.Status != models.IssueResolved:
		after.ResolvedAt = &now
	case after.Status == models.IssueOpen || after.Status == models.IssueInProgress:
		after.ResolvedAt = nil
	}
	after.UpdatedAt = now

	if err := s.repo.Update(ctx, &after); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFoundf("issue %s not found", id)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "update issue")
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditUpdate,
		EntityType: EntityIssue,
		EntityID:   id,
		SocietyID:  after.SocietyID,
		ActorID:    p.UserID,
		Old:        before,
		New:        &after,
	})
	return &after, nil
}

// Delete removes an issue. The author may delete their own issue; anyone else
// needs issues.delete, which only admins hold.
func (s *Service) Delete(ctx context.Context, p *iam.Principal, id string) error {
	issue, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authz.Require(ctx, p, iam.Request{
		Resource: "issues", Action: auth.ActionDelete, SocietyID: issue.SocietyID, OwnerID: issue.CreatedBy,
	}); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFoundf("issue %s not found", id)
		}
		return apperr.Wrap(apperr.Internal, err, "delete issue")
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditDelete,
		EntityType: EntityIssue,
		EntityID:   id,
		SocietyID:  issue.SocietyID,
		ActorID:    p.UserID,
		Old:        issue,
	})
	return nil
}
