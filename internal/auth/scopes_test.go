package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScope(t *testing.T) {
	s, err := ParseScope("issues.edit")
	require.NoError(t, err)
	assert.Equal(t, IssuesEdit, s)
	assert.Equal(t, "issues", s.Resource())
	assert.Equal(t, "edit", s.Action())

	_, err = ParseScope("issues.fly")
	assert.ErrorIs(t, err, ErrUnknownScope)

	_, err = ParseScope("")
	assert.ErrorIs(t, err, ErrUnknownScope)
}

func TestMustScopePanicsOnUnknown(t *testing.T) {
	assert.Panics(t, func() { MustScope("rockets.launch") })
	assert.NotPanics(t, func() { MustScope("audit.view") })
}

func TestScopeFor(t *testing.T) {
	s, err := ScopeFor("users", ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, UsersApprove, s)

	_, err = ScopeFor("users", "teleport")
	assert.ErrorIs(t, err, ErrUnknownScope)
}

func TestCatalogIsOrderedAndComplete(t *testing.T) {
	cat := Catalog()
	require.Len(t, cat, len(catalog))
	for i := 1; i < len(cat); i++ {
		prev, cur := cat[i-1], cat[i]
		if prev.Category == cur.Category {
			assert.Less(t, string(prev.Name), string(cur.Name))
		} else {
			assert.Less(t, string(prev.Category), string(cur.Category))
		}
	}
	for _, info := range cat {
		assert.NotEmpty(t, info.Description, info.Name)
		assert.True(t, info.Name.Valid())
	}
}

func TestDeveloperOnlyScopes(t *testing.T) {
	assert.True(t, SocietiesCreate.DeveloperOnly())
	assert.True(t, ScopesManage.DeveloperOnly())
	assert.False(t, SocietiesEdit.DeveloperOnly())
	assert.False(t, IssuesDelete.DeveloperOnly())
}

func TestDeleteRestricted(t *testing.T) {
	for _, s := range []Scope{IssuesDelete, AssetsDelete, AMCsDelete, UsersDelete} {
		assert.True(t, s.DeleteRestricted(), s)
	}
	for _, s := range []Scope{IssuesEdit, UsersApprove, SocietiesEdit} {
		assert.False(t, s.DeleteRestricted(), s)
	}
}

func TestDefaultScopesInherit(t *testing.T) {
	member := DefaultScopes(RoleMember)
	manager := DefaultScopes(RoleManager)
	admin := DefaultScopes(RoleAdmin)
	developer := DefaultScopes(RoleDeveloper)

	assert.Subset(t, manager, member)
	assert.Subset(t, admin, manager)
	assert.Subset(t, developer, admin)
	assert.ElementsMatch(t, scopeNames(Catalog()), developer)

	assert.NotContains(t, admin, SocietiesCreate)
	assert.NotContains(t, admin, ScopesManage)
	assert.NotContains(t, member, IssuesDelete)
}

func scopeNames(infos []ScopeInfo) []Scope {
	out := make([]Scope, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.Name)
	}
	return out
}

func TestRoles(t *testing.T) {
	assert.True(t, RoleDeveloper.AtLeast(RoleAdmin))
	assert.True(t, RoleManager.AtLeast(RoleMember))
	assert.False(t, RoleMember.AtLeast(RoleManager))
	assert.Equal(t, RoleAdmin, MaxRole(RoleManager, RoleAdmin))
	assert.Equal(t, RoleManager, MaxRole(RoleManager, Role("bogus")))

	assert.True(t, RoleAdmin.ValidGlobal())
	assert.False(t, RoleManager.ValidGlobal())
	assert.True(t, RoleManager.ValidTenant())
	assert.False(t, RoleDeveloper.ValidTenant())

	_, err := ParseRole("superuser")
	assert.Error(t, err)
}
