package iam

import (
	"time"

	"github.com/vksagar82/society-management-app-sub001/internal/auth"
)

// Principal is the resolved identity of the caller for one request.
// It is immutable after construction.
type Principal struct {
	UserID   string
	Email    string
	FullName string

	// GlobalRole is any role, or empty. Only admin and developer reach into every society.
	GlobalRole auth.Role

	// EffectiveRole is GlobalRole if set, else the role of the primary approved membership, else member.
	EffectiveRole auth.Role

	// SocietyID is the primary membership's society, or the first membership's when none is primary.
	SocietyID string

	Memberships []MembershipView

	// HasApprovedSociety is true when at least one membership is approved.
	HasApprovedSociety bool

	// TokenID and TokenExpiresAt identify the credential used, for logout.
	TokenID        string
	TokenExpiresAt time.Time
}

// MembershipView is the slice of a membership that authorization needs.
type MembershipView struct {
	ID             string `json:"id"`
	SocietyID      string `json:"society_id"`
	SocietyName    string `json:"society_name,omitempty"`
	Role           string `json:"role"`
	ApprovalStatus string `json:"approval_status"`
	IsPrimary      bool   `json:"is_primary"`
}

// Approved reports whether the membership is approved.
func (m MembershipView) Approved() bool { return m.ApprovalStatus == "approved" }

// IsDeveloper reports whether the principal holds the developer global role.
func (p *Principal) IsDeveloper() bool { return p != nil && p.GlobalRole == auth.RoleDeveloper }

// IsGlobalAdmin reports whether the principal holds a global admin or developer role.
func (p *Principal) IsGlobalAdmin() bool {
	return p != nil && p.GlobalRole.BypassesTenant()
}

// RoleIn returns the role that governs the principal inside societyID.
// A global admin or developer holds that role everywhere. An empty societyID
// yields EffectiveRole. Inside a society only approved memberships count, and
// a global manager or member role does not carry over.
func (p *Principal) RoleIn(societyID string) auth.Role {
	if p == nil {
		return auth.RoleMember
	}
	if p.GlobalRole.BypassesTenant() {
		return p.GlobalRole
	}
	if societyID == "" {
		if p.EffectiveRole.Valid() {
			return p.EffectiveRole
		}
		return auth.RoleMember
	}
	role := auth.RoleMember
	for _, m := range p.Memberships {
		if m.SocietyID != societyID || !m.Approved() {
			continue
		}
		if r := auth.Role(m.Role); r.ValidTenant() {
			role = auth.MaxRole(role, r)
		}
	}
	return role
}

// IsApprovedAdminOf reports whether the principal holds an approved admin membership in societyID.
func (p *Principal) IsApprovedAdminOf(societyID string) bool {
	if p == nil {
		return false
	}
	for _, m := range p.Memberships {
		if m.SocietyID == societyID && m.Approved() && auth.Role(m.Role) == auth.RoleAdmin {
			return true
		}
	}
	return false
}

// MembershipIn returns the principal's membership in societyID, if any.
func (p *Principal) MembershipIn(societyID string) (MembershipView, bool) {
	if p != nil {
		for _, m := range p.Memberships {
			if m.SocietyID == societyID {
				return m, true
			}
		}
	}
	return MembershipView{}, false
}

// PrimaryMembership picks the primary membership, else the first, from memberships in stable order.
func PrimaryMembership(memberships []MembershipView) (MembershipView, bool) {
	for _, m := range memberships {
		if m.IsPrimary {
			return m, true
		}
	}
	if len(memberships) > 0 {
		return memberships[0], true
	}
	return MembershipView{}, false
}

// EffectiveRole is the single definition of a principal's society-independent role:
// the global role when set, else the role of the primary (or first) approved
// membership, else member. Pending and rejected memberships confer nothing.
func EffectiveRole(globalRole auth.Role, memberships []MembershipView) auth.Role {
	if globalRole.ValidGlobal() {
		return globalRole
	}
	approved := make([]MembershipView, 0, len(memberships))
	for _, m := range memberships {
		if m.Approved() {
			approved = append(approved, m)
		}
	}
	if m, ok := PrimaryMembership(approved); ok {
		if r := auth.Role(m.Role); r.ValidTenant() {
			return r
		}
	}
	return auth.RoleMember
}
