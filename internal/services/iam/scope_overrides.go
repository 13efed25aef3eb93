package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
)

// Tier names where a scope decision was found.
const (
	TierTenant  = "tenant_override"
	TierSystem  = "system_override"
	TierDefault = "default"
)

type override struct {
	found   bool
	enabled bool
}

// ScopeOverrides resolves (society, role, scope) through the three tiers.
// Store lookups are cached in a bounded LRU with a TTL; writers invalidate
// the affected key through Invalidate.
type ScopeOverrides struct {
	records  repository.ScopeRecordRepository
	defaults *auth.DefaultTable
	cache    *expirable.LRU[string, override]
}

// NewScopeOverrides creates the resolver. size and ttl bound the cache.
func NewScopeOverrides(records repository.ScopeRecordRepository, defaults *auth.DefaultTable, size int, ttl time.Duration) *ScopeOverrides {
	return &ScopeOverrides{
		records:  records,
		defaults: defaults,
		cache:    expirable.NewLRU[string, override](size, nil, ttl),
	}
}

func cacheKey(societyID, role string, scope auth.Scope) string {
	return societyID + "|" + role + "|" + string(scope)
}

// Resolve returns whether role holds scope in societyID and which tier decided.
// An empty societyID skips the tenant tier.
func (s *ScopeOverrides) Resolve(ctx context.Context, societyID string, role auth.Role, scope auth.Scope) (bool, string, error) {
	if !scope.Valid() {
		return false, "", fmt.Errorf("%w: %q", auth.ErrUnknownScope, scope)
	}

	if societyID != "" {
		o, err := s.lookup(ctx, societyID, role, scope)
		if err != nil {
			return false, "", err
		}
		if o.found {
			return o.enabled, TierTenant, nil
		}
	}

	o, err := s.lookup(ctx, "", role, scope)
	if err != nil {
		return false, "", err
	}
	if o.found {
		return o.enabled, TierSystem, nil
	}

	allowed, err := s.defaults.Allows(role, scope)
	if err != nil {
		return false, "", err
	}
	return allowed, TierDefault, nil
}

func (s *ScopeOverrides) lookup(ctx context.Context, societyID string, role auth.Role, scope auth.Scope) (override, error) {
	key := cacheKey(societyID, string(role), scope)
	if o, ok := s.cache.Get(key); ok {
		return o, nil
	}

	var tenant *string
	if societyID != "" {
		tenant = &societyID
	}
	rec, err := s.records.Get(ctx, tenant, string(role), string(scope))
	var o override
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return override{}, fmt.Errorf("load scope record: %w", err)
	default:
		o = override{found: true, enabled: rec.IsEnabled}
	}
	s.cache.Add(key, o)
	return o, nil
}

// Invalidate drops the cached entry for one record key. A nil societyID names the system record.
func (s *ScopeOverrides) Invalidate(societyID *string, role, scope string) {
	tenant := ""
	if societyID != nil {
		tenant = *societyID
	}
	s.cache.Remove(cacheKey(tenant, role, auth.Scope(scope)))
}

// Purge empties the cache.
func (s *ScopeOverrides) Purge() {
	s.cache.Purge()
}
