package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-approvals/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const auditEntryCacheKeyPrefix = "go-approvals::audit_entry::v1"

// CachedAuditStore serves per-ID audit reads through a cache. Entries
// are immutable once written, so a cached read never goes stale; writes
// still delete the key so a re-recorded ID cannot pin a partial row.
type CachedAuditStore struct {
	base  core.AuditSink
	cache repositorycache.CacheService
}

func NewCachedAuditStore(base core.AuditSink, cacheService repositorycache.CacheService) (*CachedAuditStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base audit store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: audit cache service is required")
	}
	return &CachedAuditStore{base: base, cache: cacheService}, nil
}

// AuditEntryCacheKey returns the deterministic cache key contract for
// audit entry reads: go-approvals::audit_entry::v1::<entry_id> with the
// ID segment URL-path escaped.
func AuditEntryCacheKey(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: audit entry id is required")
	}
	return strings.Join([]string{auditEntryCacheKeyPrefix, url.PathEscape(trimmed)}, "::"), nil
}

func (s *CachedAuditStore) Record(ctx context.Context, entry core.AuditLogEntry) (core.AuditLogEntry, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.AuditLogEntry{}, fmt.Errorf("sqlstore: cached audit store is not configured")
	}
	created, err := s.base.Record(ctx, entry)
	if err != nil {
		return core.AuditLogEntry{}, err
	}
	cacheKey, err := AuditEntryCacheKey(created.ID)
	if err != nil {
		return created, nil
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.AuditLogEntry{}, err
	}
	return created, nil
}

// List always goes to the base store: filtered pages change as
// decisions land, so only per-ID reads cache.
func (s *CachedAuditStore) List(ctx context.Context, filter core.AuditFilter) (core.AuditPage, error) {
	if s == nil || s.base == nil {
		return core.AuditPage{}, fmt.Errorf("sqlstore: cached audit store is not configured")
	}
	return s.base.List(ctx, filter)
}

func (s *CachedAuditStore) Get(ctx context.Context, id string) (core.AuditLogEntry, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.AuditLogEntry{}, fmt.Errorf("sqlstore: cached audit store is not configured")
	}
	cacheKey, err := AuditEntryCacheKey(id)
	if err != nil {
		return core.AuditLogEntry{}, err
	}

	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.AuditLogEntry, error) {
		fetched, fetchErr := s.base.Get(ctx, strings.TrimSpace(id))
		if fetchErr != nil {
			return core.AuditLogEntry{}, fetchErr
		}
		return cloneAuditEntry(fetched), nil
	})
	if err != nil {
		return core.AuditLogEntry{}, err
	}
	return cloneAuditEntry(entry), nil
}

// cloneAuditEntry copies the map fields so cached values are never
// shared with callers.
func cloneAuditEntry(entry core.AuditLogEntry) core.AuditLogEntry {
	cloned := entry
	cloned.ObjectData = copyAnyMap(entry.ObjectData)
	cloned.Metadata = copyAnyMap(entry.Metadata)
	return cloned
}
