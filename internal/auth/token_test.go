package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "societyapi", time.Minute, time.Hour)

	pair, err := issuer.Issue("user-1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.True(t, pair.RefreshExpiresAt.After(pair.ExpiresAt))

	claims, err := issuer.Parse(pair.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)

	refresh, err := issuer.Parse(pair.RefreshToken, TokenTypeRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, refresh.ID)
}

func TestParseRejectsWrongType(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "societyapi", time.Minute, time.Hour)
	pair, err := issuer.Issue("user-1", "")
	require.NoError(t, err)

	_, err = issuer.Parse(pair.RefreshToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	issuer := NewTokenIssuer(testSecret, "societyapi", time.Minute, time.Hour).
		WithClock(func() time.Time { return past })
	pair, err := issuer.Issue("user-1", "")
	require.NoError(t, err)

	verifier := NewTokenIssuer(testSecret, "societyapi", time.Minute, time.Hour)
	_, err = verifier.Parse(pair.AccessToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseRejectsForeignSignatureAndIssuer(t *testing.T) {
	other := NewTokenIssuer("ffffffffffffffffffffffffffffffff", "societyapi", time.Minute, time.Hour)
	pair, err := other.Issue("user-1", "")
	require.NoError(t, err)

	issuer := NewTokenIssuer(testSecret, "societyapi", time.Minute, time.Hour)
	_, err = issuer.Parse(pair.AccessToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIss := NewTokenIssuer(testSecret, "someone-else", time.Minute, time.Hour)
	pair, err = wrongIss.Issue("user-1", "")
	require.NoError(t, err)
	_, err = issuer.Parse(pair.AccessToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("not-a-jwt", TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "battery staple"), ErrPasswordMismatch)
}
