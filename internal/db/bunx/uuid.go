package bunx

import "github.com/google/uuid"

// NewUUIDv7 returns a time-ordered UUIDv7 string. Every table keyed by id
// (users, societies, memberships, scope records, audit logs, issues) uses it
// so rows sort by creation on both PostgreSQL and SQLite.
// It panics only when the entropy source fails.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
