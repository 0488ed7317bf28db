package rules

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "gatekeeper/pkg/errors"
)

// countingStore wraps a MemoryStore and counts GetRules round trips so tests
// can tell a cache hit from a fetch.
type countingStore struct {
	*MemoryStore
	mu      sync.Mutex
	fetches int
	fail    bool
}

func (s *countingStore) GetRules(ctx context.Context, groupID string) ([]Rule, error) {
	s.mu.Lock()
	s.fetches++
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return nil, pkgerrors.ErrStoreUnavailable
	}
	return s.MemoryStore.GetRules(ctx, groupID)
}

func (s *countingStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: NewMemoryStore()}
}

func TestCachedStoreServesFromCache(t *testing.T) {
	inner := newCountingStore()
	ctx := context.Background()
	require.NoError(t, inner.SaveRule(ctx, validRule()))

	cached := NewCachedStore(inner, time.Minute)

	first, err := cached.GetRules(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := cached.GetRules(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.Equal(t, 1, inner.fetchCount())
}

func TestCachedStoreReturnsCopies(t *testing.T) {
	inner := newCountingStore()
	ctx := context.Background()
	require.NoError(t, inner.SaveRule(ctx, validRule()))

	cached := NewCachedStore(inner, time.Minute)

	first, err := cached.GetRules(ctx, "g1")
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := cached.GetRules(ctx, "g1")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second[0].Name)
}

func TestCachedStoreInvalidateForcesRefetch(t *testing.T) {
	inner := newCountingStore()
	ctx := context.Background()
	require.NoError(t, inner.SaveRule(ctx, validRule()))

	cached := NewCachedStore(inner, time.Minute)

	_, err := cached.GetRules(ctx, "g1")
	require.NoError(t, err)

	extra := validRule()
	extra.Name = "added behind the cache"
	require.NoError(t, inner.MemoryStore.SaveRule(ctx, extra))

	stale, err := cached.GetRules(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	cached.Invalidate("g1")

	fresh, err := cached.GetRules(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestCachedStoreInvalidateAllGroups(t *testing.T) {
	inner := newCountingStore()
	ctx := context.Background()

	ruleA := validRule()
	require.NoError(t, inner.SaveRule(ctx, ruleA))
	ruleB := validRule()
	ruleB.GroupID = "g2"
	require.NoError(t, inner.SaveRule(ctx, ruleB))

	cached := NewCachedStore(inner, time.Minute)
	_, err := cached.GetRules(ctx, "g1")
	require.NoError(t, err)
	_, err = cached.GetRules(ctx, "g2")
	require.NoError(t, err)
	require.Equal(t, 2, cached.CachedGroups())

	cached.Invalidate("")
	assert.Equal(t, 0, cached.CachedGroups())
}

func TestCachedStoreMutationsInvalidate(t *testing.T) {
	inner := newCountingStore()
	ctx := context.Background()
	rule := validRule()
	require.NoError(t, inner.SaveRule(ctx, rule))

	cached := NewCachedStore(inner, time.Minute)
	_, err := cached.GetRules(ctx, "g1")
	require.NoError(t, err)

	name := "renamed"
	_, err = cached.UpdateRule(ctx, "g1", rule.ID, RuleUpdate{Name: &name})
	require.NoError(t, err)

	after, err := cached.GetRules(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "renamed", after[0].Name)
}

func TestCachedStoreServesStaleOnStoreFailure(t *testing.T) {
	inner := newCountingStore()
	ctx := context.Background()
	require.NoError(t, inner.SaveRule(ctx, validRule()))

	cached := NewCachedStore(inner, time.Nanosecond)
	_, err := cached.GetRules(ctx, "g1")
	require.NoError(t, err)

	inner.mu.Lock()
	inner.fail = true
	inner.mu.Unlock()
	time.Sleep(time.Millisecond)

	stale, err := cached.GetRules(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	// A group that was never cached still surfaces the store error.
	_, err = cached.GetRules(ctx, "never-cached")
	assert.Error(t, err)
}
