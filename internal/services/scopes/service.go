// Package scopes manages ScopeRecord overrides. Every operation is
// restricted to developers and every write is audited.
package scopes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/services/audit"
	"github.com/vksagar82/society-management-app-sub001/internal/services/iam"
)

// EntityScope is the audit entity type of ScopeRecord writes.
const EntityScope = "scope"

// overridableRoles are the roles a record may target. Developers hold every
// scope unconditionally, so records for them would never be consulted.
var overridableRoles = []auth.Role{auth.RoleMember, auth.RoleManager, auth.RoleAdmin}

// RoleState is one role's view of one scope.
type RoleState struct {
	Default   bool   `json:"default"`
	Override  *bool  `json:"override,omitempty"`
	Source    string `json:"source"`
	Effective bool   `json:"effective"`
}

// ScopeState is one catalog entry with the per-role resolution.
type ScopeState struct {
	auth.ScopeInfo
	DeveloperOnly bool                   `json:"developer_only"`
	Roles         map[auth.Role]RoleState `json:"roles"`
}

// Listing is the full catalog resolved for one society, or for the system
// tier when SocietyID is empty.
type Listing struct {
	SocietyID string               `json:"society_id,omitempty"`
	Scopes    []ScopeState         `json:"scopes"`
	Records   []models.ScopeRecord `json:"records"`
}

// UpsertInput creates or updates the record keyed by (SocietyID, Role, Scope).
// An empty SocietyID targets the system tier.
type UpsertInput struct {
	SocietyID   string `json:"society_id"`
	Role        string `json:"role"`
	Scope       string `json:"scope"`
	Enabled     bool   `json:"is_enabled"`
	Description string `json:"description"`
}

// Service manages scope overrides.
type Service struct {
	records     repository.ScopeRecordRepository
	defaults    *auth.DefaultTable
	authz       iam.Authorizer
	invalidator iam.ScopeInvalidator
	recorder    audit.Recorder
	logger      *zap.Logger
}

// NewService creates the scope management service.
func NewService(
	records repository.ScopeRecordRepository,
	defaults *auth.DefaultTable,
	authz iam.Authorizer,
	invalidator iam.ScopeInvalidator,
	recorder audit.Recorder,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		records:     records,
		defaults:    defaults,
		authz:       authz,
		invalidator: invalidator,
		recorder:    recorder,
		logger:      logger,
	}
}

func (s *Service) requireManage(ctx context.Context, p *iam.Principal, societyID string) error {
	return s.authz.Require(ctx, p, iam.Request{Resource: "scopes", Action: auth.ActionManage, SocietyID: societyID})
}

// List returns the catalog with defaults, overrides and effective grants.
func (s *Service) List(ctx context.Context, p *iam.Principal, societyID string) (*Listing, error) {
	if err := s.requireManage(ctx, p, societyID); err != nil {
		return nil, err
	}

	var (
		records []models.ScopeRecord
		err     error
	)
	if societyID != "" {
		records, err = s.records.ListForSociety(ctx, societyID)
	} else {
		records, err = s.systemRecords(ctx)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list scope records")
	}

	listing, err := Resolve(s.defaults, societyID, records)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "resolve scopes")
	}
	return listing, nil
}

func (s *Service) systemRecords(ctx context.Context) ([]models.ScopeRecord, error) {
	all, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if r.SocietyID == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// Resolve computes the listing for societyID from its records, which must
// contain the society's records and the system records.
func Resolve(defaults *auth.DefaultTable, societyID string, records []models.ScopeRecord) (*Listing, error) {
	type key struct {
		role  string
		scope string
	}
	tenant := map[key]bool{}
	system := map[key]bool{}
	for _, r := range records {
		k := key{r.Role, r.ScopeName}
		switch {
		case r.SocietyID == nil:
			system[k] = r.IsEnabled
		case *r.SocietyID == societyID:
			tenant[k] = r.IsEnabled
		}
	}

	catalog := auth.Catalog()
	listing := &Listing{SocietyID: societyID, Scopes: make([]ScopeState, 0, len(catalog)), Records: records}
	for _, info := range catalog {
		state := ScopeState{
			ScopeInfo:     info,
			DeveloperOnly: info.Name.DeveloperOnly(),
			Roles:         make(map[auth.Role]RoleState, len(auth.Roles)),
		}
		for _, role := range auth.Roles {
			def, err := defaults.Allows(role, info.Name)
			if err != nil {
				return nil, err
			}
			rs := RoleState{Default: def, Effective: def, Source: iam.TierDefault}
			k := key{string(role), string(info.Name)}
			if v, ok := tenant[k]; ok {
				rs.Override, rs.Source, rs.Effective = &v, iam.TierTenant, v
			} else if v, ok := system[k]; ok {
				rs.Override, rs.Source, rs.Effective = &v, iam.TierSystem, v
			}
			switch {
			case role == auth.RoleDeveloper:
				rs.Effective = true
			case state.DeveloperOnly:
				rs.Effective = false
			}
			state.Roles[role] = rs
		}
		listing.Scopes = append(listing.Scopes, state)
	}
	if listing.Records == nil {
		listing.Records = []models.ScopeRecord{}
	}
	return listing, nil
}

func (in UpsertInput) validate() (auth.Role, auth.Scope, error) {
	var fields []apperr.FieldError

	role := auth.Role(strings.TrimSpace(in.Role))
	if !isOverridable(role) {
		fields = append(fields, apperr.FieldError{Field: "role", Message: "must be one of admin, manager, member"})
	}
	scope, err := auth.ParseScope(strings.TrimSpace(in.Scope))
	switch {
	case err != nil:
		fields = append(fields, apperr.FieldError{Field: "scope", Message: "is not a known scope"})
	case scope.DeveloperOnly() && in.Enabled:
		fields = append(fields, apperr.FieldError{Field: "scope", Message: "is reserved for developers and cannot be granted"})
	}
	if len(in.Description) > 500 {
		fields = append(fields, apperr.FieldError{Field: "description", Message: "must be at most 500 characters"})
	}
	if len(fields) > 0 {
		return "", "", apperr.Invalid(fields...)
	}
	return role, scope, nil
}

func isOverridable(r auth.Role) bool {
	for _, o := range overridableRoles {
		if r == o {
			return true
		}
	}
	return false
}

// Upsert creates or updates one override. It is idempotent per key and
// invalidates the evaluator's cached lookup for that key.
func (s *Service) Upsert(ctx context.Context, p *iam.Principal, in UpsertInput) (*models.ScopeRecord, bool, error) {
	if err := s.requireManage(ctx, p, in.SocietyID); err != nil {
		return nil, false, err
	}
	role, scope, err := in.validate()
	if err != nil {
		return nil, false, err
	}

	rec := &models.ScopeRecord{
		Role:        string(role),
		ScopeName:   string(scope),
		IsEnabled:   in.Enabled,
		Description: in.Description,
		UpdatedBy:   &p.UserID,
	}
	if in.SocietyID != "" {
		societyID := in.SocietyID
		rec.SocietyID = &societyID
	}

	previous, err := s.records.Upsert(ctx, rec)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.Internal, err, "upsert scope record")
	}
	s.invalidator.Invalidate(rec.SocietyID, rec.Role, rec.ScopeName)

	created := previous == nil
	action := models.AuditUpdate
	if created {
		action = models.AuditCreate
	}
	entry := audit.Entry{
		Action:     action,
		EntityType: EntityScope,
		EntityID:   rec.ID,
		SocietyID:  in.SocietyID,
		ActorID:    p.UserID,
		New:        rec,
	}
	if previous != nil {
		entry.Old = previous
	}
	s.recorder.Record(ctx, entry)

	s.logger.Info("scope override saved",
		zap.String("society_id", in.SocietyID),
		zap.String("role", rec.Role),
		zap.String("scope", rec.ScopeName),
		zap.Bool("enabled", rec.IsEnabled),
		zap.String("by", p.UserID),
	)
	return rec, created, nil
}

// ErrInvalidStoredScope is returned by ValidateStored.
var ErrInvalidStoredScope = errors.New("invalid stored scope record")

// ValidateStored checks every persisted record against the catalog and the
// role set. It runs at startup; a stale record is a deployment error.
func ValidateStored(ctx context.Context, records repository.ScopeRecordRepository) error {
	all, err := records.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list scope records: %w", err)
	}
	var bad []string
	for _, r := range all {
		if _, err := auth.ParseScope(r.ScopeName); err != nil {
			bad = append(bad, fmt.Sprintf("%s (scope %q)", r.ID, r.ScopeName))
			continue
		}
		if !auth.Role(r.Role).Valid() {
			bad = append(bad, fmt.Sprintf("%s (role %q)", r.ID, r.Role))
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("%w: %s", ErrInvalidStoredScope, strings.Join(bad, ", "))
	}
	return nil
}
