package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
)

// ErrCredentialRejected is returned by verifiers for any unusable credential.
var ErrCredentialRejected = errors.New("credential rejected")

// VerifiedCredential is what a verifier learns from a valid bearer token.
type VerifiedCredential struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// CredentialVerifier turns a bearer token into a user id.
//
// Return values:
//   - (cred, nil): token valid
//   - (nil, err wrapping ErrCredentialRejected): token invalid, expired or revoked
//   - (nil, other err): verifier could not decide (store unavailable)
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (*VerifiedCredential, error)
}

// JWTVerifier verifies HS256 access tokens and consults the revocation store.
// It is stateless and safe for concurrent use.
type JWTVerifier struct {
	tokens  *auth.TokenIssuer
	revoked repository.RevokedTokenStore
}

// NewJWTVerifier creates a JWTVerifier. revoked may be nil to skip revocation checks.
func NewJWTVerifier(tokens *auth.TokenIssuer, revoked repository.RevokedTokenStore) *JWTVerifier {
	return &JWTVerifier{tokens: tokens, revoked: revoked}
}

// Verify implements CredentialVerifier.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*VerifiedCredential, error) {
	claims, err := v.tokens.Parse(token, auth.TokenTypeAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialRejected, err)
	}

	if v.revoked != nil {
		revoked, err := v.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: token revoked", ErrCredentialRejected)
		}
	}

	cred := &VerifiedCredential{UserID: claims.Subject, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred, nil
}
