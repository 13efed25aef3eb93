// Package societies creates and lists tenants.
package societies

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/services/audit"
	"github.com/vksagar82/society-management-app-sub001/internal/services/iam"
)

// EntitySociety is the audit entity type for society writes.
const EntitySociety = "society"

// CreateInput describes a new society.
type CreateInput struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
}

// Service manages societies.
type Service struct {
	repo     repository.SocietyRepository
	authz    iam.Authorizer
	recorder audit.Recorder
	logger   *zap.Logger
}

// NewService creates the society service.
func NewService(repo repository.SocietyRepository, authz iam.Authorizer, recorder audit.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, authz: authz, recorder: recorder, logger: logger}
}

// List returns every society. It needs no principal so signup can offer a choice.
func (s *Service) List(ctx context.Context) ([]models.Society, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list societies")
	}
	if list == nil {
		list = []models.Society{}
	}
	return list, nil
}

// Create adds a society. Only developers hold societies.create.
func (s *Service) Create(ctx context.Context, p *iam.Principal, in CreateInput) (*models.Society, error) {
	if err := s.authz.Require(ctx, p, iam.Request{Resource: "societies", Action: auth.ActionCreate}); err != nil {
		return nil, err
	}

	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return nil, apperr.Invalid(apperr.FieldError{Field: "name", Message: "is required"})
	case len(in.Name) > 200:
		return nil, apperr.Invalid(apperr.FieldError{Field: "name", Message: "must be at most 200 characters"})
	}

	society := &models.Society{
		Name:      in.Name,
		Address:   strings.TrimSpace(in.Address),
		City:      strings.TrimSpace(in.City),
		CreatedBy: &p.UserID,
	}
	if err := s.repo.Create(ctx, society); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, &apperr.Error{
				Kind:    apperr.Conflict,
				Message: "society name already taken",
				Fields:  []apperr.FieldError{{Field: "name", Message: "is already taken"}},
			}
		}
		return nil, apperr.Wrap(apperr.Internal, err, "create society")
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditCreate,
		EntityType: EntitySociety,
		EntityID:   society.ID,
		SocietyID:  society.ID,
		ActorID:    p.UserID,
		New:        society,
	})
	s.logger.Info("society created", zap.String("society_id", society.ID), zap.String("name", society.Name))
	return society, nil
}
