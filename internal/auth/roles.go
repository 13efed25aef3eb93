package auth

import "fmt"

// Role is a position in the precedence chain developer > admin > manager > member.
type Role string

const (
	RoleMember    Role = "member"
	RoleManager   Role = "manager"
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
)

// Roles lists every role from least to most privileged.
var Roles = []Role{RoleMember, RoleManager, RoleAdmin, RoleDeveloper}

// Rank orders roles; unknown roles rank below member.
func (r Role) Rank() int {
	switch r {
	case RoleMember:
		return 1
	case RoleManager:
		return 2
	case RoleAdmin:
		return 3
	case RoleDeveloper:
		return 4
	default:
		return 0
	}
}

func (r Role) Valid() bool { return r.Rank() > 0 }

// ValidGlobal reports whether r may be stored as a user's global role.
// Every role may be held globally; only admin and developer bypass tenant checks.
func (r Role) ValidGlobal() bool { return r.Valid() }

// BypassesTenant reports whether a global r grants authority in every society.
func (r Role) BypassesTenant() bool { return r == RoleAdmin || r == RoleDeveloper }

// ValidTenant reports whether r may be stored as a membership role.
func (r Role) ValidTenant() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleMember
}

// AtLeast reports whether r ranks at or above other.
func (r Role) AtLeast(other Role) bool { return r.Rank() >= other.Rank() }

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// MaxRole returns the higher-ranked of a and b.
func MaxRole(a, b Role) Role {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
