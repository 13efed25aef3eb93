package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Scope is a named permission of the form "<resource>.<action>".
// The set of valid scopes is closed: only values in the catalog below exist.
type Scope string

// Category groups scopes for presentation.
type Category string

const (
	CategoryIssues Category = "issues"
	CategoryAssets Category = "assets"
	CategoryAMCs   Category = "amcs"
	CategoryUsers  Category = "users"
	CategoryAdmin  Category = "admin"
	CategoryAudit  Category = "audit"
)

// Issue scopes
const (
	IssuesView   Scope = "issues.view"
	IssuesCreate Scope = "issues.create"
	IssuesEdit   Scope = "issues.edit"
	IssuesDelete Scope = "issues.delete"
	IssuesAssign Scope = "issues.assign"
)

// Asset scopes
const (
	AssetsView   Scope = "assets.view"
	AssetsCreate Scope = "assets.create"
	AssetsEdit   Scope = "assets.edit"
	AssetsDelete Scope = "assets.delete"
)

// AMC (annual maintenance contract) scopes
const (
	AMCsView   Scope = "amcs.view"
	AMCsCreate Scope = "amcs.create"
	AMCsEdit   Scope = "amcs.edit"
	AMCsDelete Scope = "amcs.delete"
)

// User scopes
const (
	UsersView    Scope = "users.view"
	UsersEdit    Scope = "users.edit"
	UsersDelete  Scope = "users.delete"
	UsersApprove Scope = "users.approve"
)

// Administrative scopes
const (
	SocietiesCreate Scope = "societies.create"
	SocietiesEdit   Scope = "societies.edit"
	ScopesManage    Scope = "scopes.manage"
	SettingsManage  Scope = "settings.manage"
)

// Audit scopes
const (
	AuditView   Scope = "audit.view"
	AuditExport Scope = "audit.export"
)

// Action names used with ScopeFor.
const (
	ActionView    = "view"
	ActionCreate  = "create"
	ActionEdit    = "edit"
	ActionDelete  = "delete"
	ActionAssign  = "assign"
	ActionApprove = "approve"
	ActionExport  = "export"
	ActionManage  = "manage"
)

// ErrUnknownScope is returned for names outside the catalog.
var ErrUnknownScope = errors.New("unknown scope")

// ScopeInfo describes one catalog entry.
type ScopeInfo struct {
	Name        Scope    `json:"name"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
}

var catalog = []ScopeInfo{
	{IssuesView, CategoryIssues, "View issues"},
	{IssuesCreate, CategoryIssues, "Report new issues"},
	{IssuesEdit, CategoryIssues, "Edit any issue"},
	{IssuesDelete, CategoryIssues, "Delete any issue"},
	{IssuesAssign, CategoryIssues, "Assign issues to users"},
	{AssetsView, CategoryAssets, "View assets"},
	{AssetsCreate, CategoryAssets, "Register assets"},
	{AssetsEdit, CategoryAssets, "Edit assets"},
	{AssetsDelete, CategoryAssets, "Delete assets"},
	{AMCsView, CategoryAMCs, "View maintenance contracts"},
	{AMCsCreate, CategoryAMCs, "Create maintenance contracts"},
	{AMCsEdit, CategoryAMCs, "Edit maintenance contracts"},
	{AMCsDelete, CategoryAMCs, "Delete maintenance contracts"},
	{UsersView, CategoryUsers, "View society members"},
	{UsersEdit, CategoryUsers, "Edit society members"},
	{UsersDelete, CategoryUsers, "Delete users"},
	{UsersApprove, CategoryUsers, "Approve or reject membership requests"},
	{SocietiesCreate, CategoryAdmin, "Create societies"},
	{SocietiesEdit, CategoryAdmin, "Edit society details"},
	{ScopesManage, CategoryAdmin, "Manage role scope overrides"},
	{SettingsManage, CategoryAdmin, "Manage society settings"},
	{AuditView, CategoryAudit, "View audit logs"},
	{AuditExport, CategoryAudit, "Export audit logs"},
}

var catalogIndex = func() map[Scope]ScopeInfo {
	idx := make(map[Scope]ScopeInfo, len(catalog))
	for _, info := range catalog {
		if _, dup := idx[info.Name]; dup {
			panic(fmt.Sprintf("duplicate scope %q in catalog", info.Name))
		}
		if strings.Count(string(info.Name), ".") != 1 {
			panic(fmt.Sprintf("malformed scope %q in catalog", info.Name))
		}
		idx[info.Name] = info
	}
	return idx
}()

// developerOnly scopes can never be granted to a non-developer, whatever the overrides say.
var developerOnly = map[Scope]bool{
	SocietiesCreate: true,
	ScopesManage:    true,
}

// deleteRestricted resources can only be deleted by admins and developers.
var deleteRestricted = map[string]bool{
	"issues": true,
	"assets": true,
	"amcs":   true,
	"users":  true,
}

// Catalog returns a copy of every known scope, ordered by category then name.
func Catalog() []ScopeInfo {
	out := append([]ScopeInfo(nil), catalog...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ParseScope validates a scope name against the catalog.
func ParseScope(name string) (Scope, error) {
	s := Scope(name)
	if _, ok := catalogIndex[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownScope, name)
	}
	return s, nil
}

// MustScope is ParseScope for compile-time constants; it panics on unknown names.
func MustScope(name string) Scope {
	s, err := ParseScope(name)
	if err != nil {
		panic(err)
	}
	return s
}

// ScopeFor builds the scope guarding action on resource.
func ScopeFor(resource, action string) (Scope, error) {
	return ParseScope(resource + "." + action)
}

// Valid reports whether s is in the catalog.
func (s Scope) Valid() bool {
	_, ok := catalogIndex[s]
	return ok
}

// Resource returns the part before the dot.
func (s Scope) Resource() string {
	r, _, _ := strings.Cut(string(s), ".")
	return r
}

// Action returns the part after the dot.
func (s Scope) Action() string {
	_, a, _ := strings.Cut(string(s), ".")
	return a
}

// Info returns the catalog entry for s.
func (s Scope) Info() (ScopeInfo, bool) {
	info, ok := catalogIndex[s]
	return info, ok
}

// DeveloperOnly reports whether s sits above every override.
func (s Scope) DeveloperOnly() bool { return developerOnly[s] }

// DeleteRestricted reports whether s deletes an issue, asset, AMC or user.
func (s Scope) DeleteRestricted() bool {
	return s.Action() == ActionDelete && deleteRestricted[s.Resource()]
}
