package rules

import (
	"context"
	"sync"
	"time"
)

// CachedStore keeps per-group rule lists in memory in front of a slower
// store. The moderation pipeline reads rules on every join request, while
// writes only ever arrive through the management API, so entries stay valid
// until a config-update event invalidates them or the TTL lapses.
type CachedStore struct {
	inner Store
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	rules     []Rule
	fetchedAt time.Time
}

const DefaultCacheTTL = 5 * time.Minute

func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{
		inner: inner,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

// GetRules returns a copy of the cached list. Callers sort the result in
// place, so the cached slice itself must never escape.
func (s *CachedStore) GetRules(ctx context.Context, groupID string) ([]Rule, error) {
	s.mu.RLock()
	entry, ok := s.cache[groupID]
	s.mu.RUnlock()

	if ok && time.Since(entry.fetchedAt) < s.ttl {
		return copyRules(entry.rules), nil
	}

	fetched, err := s.inner.GetRules(ctx, groupID)
	if err != nil {
		if ok {
			// Stale rules beat no rules when the store is down.
			return copyRules(entry.rules), nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.cache[groupID] = cacheEntry{rules: fetched, fetchedAt: time.Now()}
	s.mu.Unlock()

	return copyRules(fetched), nil
}

func (s *CachedStore) GetRule(ctx context.Context, groupID, ruleID string) (*Rule, error) {
	return s.inner.GetRule(ctx, groupID, ruleID)
}

func (s *CachedStore) SaveRule(ctx context.Context, rule *Rule) error {
	if err := s.inner.SaveRule(ctx, rule); err != nil {
		return err
	}
	s.Invalidate(rule.GroupID)
	return nil
}

func (s *CachedStore) UpdateRule(ctx context.Context, groupID, ruleID string, update RuleUpdate) (*Rule, error) {
	updated, err := s.inner.UpdateRule(ctx, groupID, ruleID, update)
	if err != nil {
		return nil, err
	}
	s.Invalidate(groupID)
	return updated, nil
}

func (s *CachedStore) DeleteRule(ctx context.Context, groupID, ruleID string) error {
	if err := s.inner.DeleteRule(ctx, groupID, ruleID); err != nil {
		return err
	}
	s.Invalidate(groupID)
	return nil
}

// Invalidate drops the cached list for one group. An empty group id drops
// everything; config-update events without a group scope use that path.
func (s *CachedStore) Invalidate(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if groupID == "" {
		s.cache = make(map[string]cacheEntry)
		return
	}
	delete(s.cache, groupID)
}

// CachedGroups reports how many groups currently have a cached rule list.
func (s *CachedStore) CachedGroups() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func copyRules(src []Rule) []Rule {
	if src == nil {
		return nil
	}
	out := make([]Rule, len(src))
	copy(out, src)
	return out
}
