package client

import (
	"sync"
	"time"
)

// Credentials is the token pair held by a Client.
type Credentials struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// IsExpired reports whether the access token has expired.
func (c *Credentials) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// CredentialStore persists credentials across processes. Save is called
// after every successful login or refresh.
type CredentialStore interface {
	Save(creds Credentials) error
}

type credentialBox struct {
	mu    sync.RWMutex
	creds Credentials
}

func (b *credentialBox) get() Credentials {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.creds
}

func (b *credentialBox) set(c Credentials) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creds = c
}
