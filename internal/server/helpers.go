package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	appmw "github.com/vksagar82/society-management-app-sub001/internal/middleware"
	"github.com/vksagar82/society-management-app-sub001/internal/services/iam"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	accounts    accountService
	societies   societyService
	memberships membershipService
	scopes      scopeService
	audit       auditService
	issues      issueService
	logger      *zap.Logger
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	appmw.WriteError(w, r, h.logger, err)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Invalid(apperr.FieldError{Field: "body", Message: "must be valid JSON"})
	}
	return nil
}

// principal returns the caller stored by the Authn middleware.
func principal(r *http.Request) (*iam.Principal, error) {
	p, ok := iam.PrincipalFromContext(r.Context())
	if !ok {
		return nil, apperr.Unauthenticatedf("authentication required")
	}
	return p, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Invalid(apperr.FieldError{Field: name, Message: "must be an integer"})
	}
	return n, nil
}

// userView is the public shape of a user. The password hash never leaves the server.
type userView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	Phone       string     `json:"phone,omitempty"`
	GlobalRole  *string    `json:"global_role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newUserView(u *models.User) *userView {
	if u == nil {
		return nil
	}
	return &userView{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		Phone:       u.Phone,
		GlobalRole:  u.GlobalRole,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// principalView is the /api/auth/me response.
type principalView struct {
	ID                 string               `json:"id"`
	Email              string               `json:"email"`
	FullName           string               `json:"full_name"`
	GlobalRole         string               `json:"global_role,omitempty"`
	EffectiveRole      string               `json:"role"`
	SocietyID          string               `json:"society_id,omitempty"`
	HasApprovedSociety bool                 `json:"has_approved_society"`
	Memberships        []iam.MembershipView `json:"memberships"`
}

func newPrincipalView(p *iam.Principal) principalView {
	memberships := p.Memberships
	if memberships == nil {
		memberships = []iam.MembershipView{}
	}
	return principalView{
		ID:                 p.UserID,
		Email:              p.Email,
		FullName:           p.FullName,
		GlobalRole:         string(p.GlobalRole),
		EffectiveRole:      string(p.EffectiveRole),
		SocietyID:          p.SocietyID,
		HasApprovedSociety: p.HasApprovedSociety,
		Memberships:        memberships,
	}
}
