package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Issue statuses.
const (
	IssueOpen       = "open"
	IssueInProgress = "in_progress"
	IssueResolved   = "resolved"
	IssueClosed     = "closed"
)

// Issue is a maintenance request raised inside a society.
type Issue struct {
	bun.BaseModel `bun:"table:issues,alias:i"`

	ID          string     `bun:"id,pk,type:uuid" json:"id"`
	SocietyID   string     `bun:"society_id,notnull,type:uuid" json:"society_id"`
	Title       string     `bun:"title,notnull" json:"title"`
	Description string     `bun:"description" json:"description,omitempty"`
	Status      string     `bun:"status,notnull,default:'open'" json:"status"`
	Priority    string     `bun:"priority,notnull,default:'medium'" json:"priority"`
	CreatedBy   string     `bun:"created_by,notnull,type:uuid" json:"created_by"`
	AssignedTo  *string    `bun:"assigned_to,type:uuid" json:"assigned_to,omitempty"`
	ResolvedAt  *time.Time `bun:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}
