package iam

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/apperr"
	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, ok := BearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func newTestResolver(users *mockUserRepo, ms *mockMembershipRepo, v CredentialVerifier) *Resolver {
	return NewResolver(v, users, ms, nil, zap.NewNop())
}

func TestResolver_Resolve(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	active := &models.User{ID: "u1", Email: "u1@example.com", IsActive: true}
	disabled := &models.User{ID: "u2", Email: "u2@example.com", IsActive: false}
	users := newMockUserRepo(active, disabled)

	ms := newMockMembershipRepo()
	ms.add(
		models.Membership{ID: "m1", UserID: "u1", SocietyID: "s1", Role: "member", ApprovalStatus: "approved"},
		models.Membership{ID: "m2", UserID: "u1", SocietyID: "s2", Role: "admin", ApprovalStatus: "pending", IsPrimary: true},
	)

	verifier := &mockVerifier{creds: map[string]*VerifiedCredential{
		"good":     {UserID: "u1", TokenID: "jti-1", ExpiresAt: exp},
		"orphan":   {UserID: "ghost", TokenID: "jti-2", ExpiresAt: exp},
		"disabled": {UserID: "u2", TokenID: "jti-3", ExpiresAt: exp},
	}}
	r := newTestResolver(users, ms, verifier)
	ctx := context.Background()

	t.Run("valid token yields principal", func(t *testing.T) {
		p, err := r.Resolve(ctx, "Bearer good")
		require.NoError(t, err)
		assert.Equal(t, "u1", p.UserID)
		assert.Equal(t, "s2", p.SocietyID)
		// The pending admin membership is primary but confers nothing.
		assert.Equal(t, auth.RoleMember, p.EffectiveRole)
		assert.True(t, p.HasApprovedSociety)
		assert.Equal(t, "jti-1", p.TokenID)
		assert.Equal(t, exp, p.TokenExpiresAt)
		assert.Len(t, p.Memberships, 2)
	})

	tests := []struct {
		name   string
		header string
		kind   apperr.Kind
	}{
		{"missing header", "", apperr.Unauthenticated},
		{"wrong scheme", "Token good", apperr.Unauthenticated},
		{"unknown token", "Bearer forged", apperr.Unauthenticated},
		{"user deleted", "Bearer orphan", apperr.PrincipalNotFound},
		{"user disabled", "Bearer disabled", apperr.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := r.Resolve(ctx, tt.header)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestResolver_StoreFailuresAreInternal(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", IsActive: true})
	ms := newMockMembershipRepo()
	verifier := &mockVerifier{creds: map[string]*VerifiedCredential{"good": {UserID: "u1"}}}

	ms.err = errors.New("db down")
	r := newTestResolver(users, ms, verifier)
	_, err := r.Resolve(context.Background(), "Bearer good")
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))

	r = newTestResolver(users, newMockMembershipRepo(), &mockVerifier{err: errors.New("redis down")})
	_, err = r.Resolve(context.Background(), "Bearer good")
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}

func TestResolver_NoMembershipsDefaultsToMember(t *testing.T) {
	users := newMockUserRepo(&models.User{ID: "u1", IsActive: true})
	verifier := &mockVerifier{creds: map[string]*VerifiedCredential{"good": {UserID: "u1"}}}
	r := newTestResolver(users, newMockMembershipRepo(), verifier)

	p, err := r.Resolve(context.Background(), "Bearer good")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleMember, p.EffectiveRole)
	assert.False(t, p.HasApprovedSociety)
	assert.Empty(t, p.SocietyID)
}

type stubRevoked struct{ revoked map[string]bool }

func (s *stubRevoked) Revoke(context.Context, string, string, time.Time) error { return nil }
func (s *stubRevoked) IsRevoked(_ context.Context, jti string) (bool, error) {
	return s.revoked[jti], nil
}
func (s *stubRevoked) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

func TestJWTVerifier(t *testing.T) {
	tokens := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", "societyapi", time.Minute, time.Hour)
	pair, err := tokens.Issue("u1", "u1@example.com")
	require.NoError(t, err)
	claims, err := tokens.Parse(pair.AccessToken, auth.TokenTypeAccess)
	require.NoError(t, err)

	revoked := &stubRevoked{revoked: map[string]bool{}}
	v := NewJWTVerifier(tokens, revoked)

	cred, err := v.Verify(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", cred.UserID)
	assert.Equal(t, claims.ID, cred.TokenID)

	_, err = v.Verify(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrCredentialRejected)

	revoked.revoked[claims.ID] = true
	_, err = v.Verify(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, ErrCredentialRejected)
}
