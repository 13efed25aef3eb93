package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// defaultTableModel is plain RBAC with role inheritance: a role holds every
// (resource, action) pair granted to it or to any role it inherits from.
const defaultTableModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// DefaultTable answers the last tier of scope resolution: the static
// role -> scope grants that apply when no ScopeRecord matches.
type DefaultTable struct {
	enforcer casbin.IEnforcer
}

// NewDefaultTable builds an in-memory casbin enforcer from the built-in grants.
func NewDefaultTable() (*DefaultTable, error) {
	m, err := model.NewModelFromString(defaultTableModel)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	var policies [][]string
	for _, role := range Roles {
		for _, s := range roleGrants[role] {
			policies = append(policies, []string{string(role), s.Resource(), s.Action()})
		}
	}
	if _, err := enforcer.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("load default grants: %w", err)
	}

	for child, parent := range roleParent {
		if _, err := enforcer.AddGroupingPolicy(string(child), string(parent)); err != nil {
			return nil, fmt.Errorf("load role inheritance %s -> %s: %w", child, parent, err)
		}
	}

	return &DefaultTable{enforcer: enforcer}, nil
}

// Allows reports whether the default table grants scope to role.
func (t *DefaultTable) Allows(role Role, scope Scope) (bool, error) {
	if !scope.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
	ok, err := t.enforcer.Enforce(string(role), scope.Resource(), scope.Action())
	if err != nil {
		return false, fmt.Errorf("casbin enforce: %w", err)
	}
	return ok, nil
}
