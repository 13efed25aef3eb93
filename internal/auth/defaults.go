package auth

// Each role inherits the grants of the role below it; these are the additions per step.
var roleGrants = map[Role][]Scope{
	RoleMember: {
		IssuesView, IssuesCreate, AssetsView, AMCsView,
	},
	RoleManager: {
		IssuesEdit, IssuesAssign,
		AssetsCreate, AssetsEdit,
		AMCsCreate, AMCsEdit,
		UsersView, AuditView,
	},
	RoleAdmin: {
		IssuesDelete, AssetsDelete, AMCsDelete,
		UsersEdit, UsersDelete, UsersApprove,
		SocietiesEdit, SettingsManage, AuditExport,
	},
	RoleDeveloper: {
		SocietiesCreate, ScopesManage,
	},
}

// roleParent is the role each role inherits from.
var roleParent = map[Role]Role{
	RoleManager:   RoleMember,
	RoleAdmin:     RoleManager,
	RoleDeveloper: RoleAdmin,
}

func init() {
	for role, scopes := range roleGrants {
		if !role.Valid() {
			panic("default table references unknown role " + string(role))
		}
		for _, s := range scopes {
			if !s.Valid() {
				panic("default table references unknown scope " + string(s))
			}
		}
	}
}

// DefaultScopes returns the static default grant set for role, including inherited scopes.
func DefaultScopes(role Role) []Scope {
	var out []Scope
	for r := role; r != ""; r = roleParent[r] {
		out = append(out, roleGrants[r]...)
	}
	return out
}
