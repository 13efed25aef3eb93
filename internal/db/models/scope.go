package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ScopeRecord overrides the default grant of one scope for one role.
// SocietyID nil makes the record a system-wide default.
type ScopeRecord struct {
	bun.BaseModel `bun:"table:role_scopes,alias:rs"`

	ID          string    `bun:"id,pk,type:uuid" json:"id"`
	SocietyID   *string   `bun:"society_id,type:uuid" json:"society_id"`
	Role        string    `bun:"role,notnull" json:"role"`
	ScopeName   string    `bun:"scope_name,notnull" json:"scope_name"`
	IsEnabled   bool      `bun:"is_enabled,notnull" json:"is_enabled"`
	Description string    `bun:"description" json:"description,omitempty"`
	UpdatedBy   *string   `bun:"updated_by,type:uuid" json:"updated_by,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// Tenant returns the society id or "" for a system record.
func (r *ScopeRecord) Tenant() string {
	if r.SocietyID == nil {
		return ""
	}
	return *r.SocietyID
}
