package client

import (
	"fmt"
	"strings"
	"time"
)

// User is the public view of an account.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	Phone       string     `json:"phone,omitempty"`
	GlobalRole  *string    `json:"global_role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Society is a tenant.
type Society struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
}

// Membership links a user to a society.
type Membership struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	SocietyID       string     `json:"society_id"`
	Role            string     `json:"role"`
	ApprovalStatus  string     `json:"approval_status"`
	IsPrimary       bool       `json:"is_primary"`
	ApprovedBy      *string    `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
}

// MembershipSummary is a membership as listed in Me.
type MembershipSummary struct {
	ID             string `json:"id"`
	SocietyID      string `json:"society_id"`
	SocietyName    string `json:"society_name,omitempty"`
	Role           string `json:"role"`
	ApprovalStatus string `json:"approval_status"`
	IsPrimary      bool   `json:"is_primary"`
}

// Me is the authenticated caller.
type Me struct {
	ID                 string              `json:"id"`
	Email              string              `json:"email"`
	FullName           string              `json:"full_name"`
	GlobalRole         string              `json:"global_role,omitempty"`
	Role               string              `json:"role"`
	SocietyID          string              `json:"society_id,omitempty"`
	HasApprovedSociety bool                `json:"has_approved_society"`
	Memberships        []MembershipSummary `json:"memberships"`
}

// SignupRequest registers a user with pending memberships.
type SignupRequest struct {
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	FullName   string   `json:"full_name"`
	Phone      string   `json:"phone,omitempty"`
	SocietyIDs []string `json:"society_ids"`
}

// SignupResult is the created user and its pending memberships.
type SignupResult struct {
	User        User         `json:"user"`
	Memberships []Membership `json:"memberships"`
}

// Issue is a maintenance request.
type Issue struct {
	ID          string     `json:"id"`
	SocietyID   string     `json:"society_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	CreatedBy   string     `json:"created_by"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewIssue describes an issue to report.
type NewIssue struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Priority    string  `json:"priority,omitempty"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
}

// AuditLog is one audit trail entry.
type AuditLog struct {
	ID         string         `json:"id"`
	SocietyID  *string        `json:"society_id,omitempty"`
	UserID     *string        `json:"user_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	OldValues  map[string]any `json:"old_values,omitempty"`
	NewValues  map[string]any `json:"new_values,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AuditPage is one page of audit entries.
type AuditPage struct {
	Logs  []AuditLog `json:"logs"`
	Count int        `json:"count"`
}

// AuditQuery filters audit entries. Zero fields are omitted.
type AuditQuery struct {
	EntityType string
	Action     string
	UserID     string
	Limit      int
	Offset     int
}

// ScopeRecord is a stored scope override.
type ScopeRecord struct {
	ID          string  `json:"id"`
	SocietyID   *string `json:"society_id"`
	Role        string  `json:"role"`
	ScopeName   string  `json:"scope_name"`
	IsEnabled   bool    `json:"is_enabled"`
	Description string  `json:"description,omitempty"`
}

// ScopeOverride creates or updates a scope override. Empty SocietyID targets the system tier.
type ScopeOverride struct {
	SocietyID   string `json:"society_id,omitempty"`
	Role        string `json:"role"`
	Scope       string `json:"scope"`
	Enabled     bool   `json:"is_enabled"`
	Description string `json:"description,omitempty"`
}

// FieldError is one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int          `json:"-"`
	Message    string       `json:"error"`
	Code       string       `json:"code,omitempty"`
	Fields     []FieldError `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api error %d: %s", e.StatusCode, e.Message)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	for _, f := range e.Fields {
		fmt.Fprintf(&b, "; %s %s", f.Field, f.Message)
	}
	return b.String()
}

// IsPendingApproval reports whether the caller has no approved membership yet.
func (e *APIError) IsPendingApproval() bool { return e.Code == "pending_approval" }

// IsAlreadyProcessed reports whether a membership decision lost to an earlier one.
func (e *APIError) IsAlreadyProcessed() bool { return e.Code == "already_processed" }
