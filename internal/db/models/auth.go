package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a person who can sign in. GlobalRole, when set, is the society-independent
// role; a global admin or developer has authority in every society.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string     `bun:"id,pk,type:uuid" json:"id"`
	Email        string     `bun:"email,notnull,unique" json:"email"`
	Phone        string     `bun:"phone" json:"phone,omitempty"`
	FullName     string     `bun:"full_name,notnull" json:"full_name"`
	PasswordHash string     `bun:"password_hash,notnull" json:"password_hash,omitempty"`
	GlobalRole   *string    `bun:"global_role" json:"global_role,omitempty"` // developer | admin | manager | member
	IsActive     bool       `bun:"is_active,notnull,default:true" json:"is_active"`
	LastLoginAt  *time.Time `bun:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// GlobalRoleName returns the global role or "" when unset.
func (u *User) GlobalRoleName() string {
	if u == nil || u.GlobalRole == nil {
		return ""
	}
	return *u.GlobalRole
}

// Society is a tenant.
type Society struct {
	bun.BaseModel `bun:"table:societies,alias:s"`

	ID        string    `bun:"id,pk,type:uuid" json:"id"`
	Name      string    `bun:"name,notnull,unique" json:"name"`
	Address   string    `bun:"address" json:"address,omitempty"`
	City      string    `bun:"city" json:"city,omitempty"`
	CreatedBy *string   `bun:"created_by,type:uuid" json:"created_by,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// Membership approval states.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Membership links a user to a society with a tenant-scoped role.
// At most one membership per user is primary.
type Membership struct {
	bun.BaseModel `bun:"table:user_societies,alias:us"`

	ID              string     `bun:"id,pk,type:uuid" json:"id"`
	UserID          string     `bun:"user_id,notnull,type:uuid" json:"user_id"`
	SocietyID       string     `bun:"society_id,notnull,type:uuid" json:"society_id"`
	Role            string     `bun:"role,notnull,default:'member'" json:"role"`
	ApprovalStatus  string     `bun:"approval_status,notnull,default:'pending'" json:"approval_status"`
	IsPrimary       bool       `bun:"is_primary,notnull,default:false" json:"is_primary"`
	ApprovedBy      *string    `bun:"approved_by,type:uuid" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `bun:"approved_at" json:"approved_at,omitempty"`
	RejectionReason *string    `bun:"rejection_reason" json:"rejection_reason,omitempty"`
	JoinedAt        time.Time  `bun:"joined_at,notnull,default:current_timestamp" json:"joined_at"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	Society *Society `bun:"rel:belongs-to,join:society_id=id" json:"society,omitempty"`
}

// Approved reports whether the membership has been approved.
func (m *Membership) Approved() bool { return m.ApprovalStatus == ApprovalApproved }

// RevokedToken records a logged-out token id until its natural expiry.
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rt"`

	JTI       string    `bun:"jti,pk"`
	UserID    string    `bun:"user_id,notnull,type:uuid"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	RevokedAt time.Time `bun:"revoked_at,notnull,default:current_timestamp"`
}
