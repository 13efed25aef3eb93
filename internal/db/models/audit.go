package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Audit actions.
const (
	AuditCreate = "CREATE"
	AuditUpdate = "UPDATE"
	AuditDelete = "DELETE"
	AuditView   = "VIEW"
)

// AuditLog is an append-only record of a mutation.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         string    `bun:"id,pk,type:uuid" json:"id"`
	SocietyID  *string   `bun:"society_id,type:uuid" json:"society_id,omitempty"`
	UserID     *string   `bun:"user_id,type:uuid" json:"user_id,omitempty"`
	Action     string    `bun:"action,notnull" json:"action"`
	EntityType string    `bun:"entity_type,notnull" json:"entity_type"`
	EntityID   string    `bun:"entity_id" json:"entity_id,omitempty"`
	OldValues  JSONMap   `bun:"old_values,type:jsonb" json:"old_values,omitempty"`
	NewValues  JSONMap   `bun:"new_values,type:jsonb" json:"new_values,omitempty"`
	IPAddress  string    `bun:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string    `bun:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// JSONMap is a JSON object column.
type JSONMap map[string]any

// Scan implements sql.Scanner for reading from database
func (m *JSONMap) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan JSONMap: expected []byte or string, got %T", value)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Value implements driver.Valuer for writing to database
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
