package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "gatekeeper/pkg/errors"
)

func TestMemoryStorePreservesInsertionOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		rule := validRule()
		rule.Name = name
		rule.Priority = 10
		require.NoError(t, store.SaveRule(ctx, rule))
	}

	stored, err := store.GetRules(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "first", stored[0].Name)
	assert.Equal(t, "second", stored[1].Name)
	assert.Equal(t, "third", stored[2].Name)
}

func TestMemoryStoreAssignsIDAndTimestamps(t *testing.T) {
	store := NewMemoryStore()
	rule := validRule()

	require.NoError(t, store.SaveRule(context.Background(), rule))
	assert.NotEmpty(t, rule.ID)
	assert.False(t, rule.CreatedAt.IsZero())
	assert.Equal(t, rule.CreatedAt, rule.UpdatedAt)
}

func TestMemoryStoreRejectsDuplicateID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rule := validRule()
	rule.ID = "r1"
	require.NoError(t, store.SaveRule(ctx, rule))

	dup := validRule()
	dup.ID = "r1"
	err := store.SaveRule(ctx, dup)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestMemoryStoreUpdateAppliesPartialChanges(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rule := validRule()
	require.NoError(t, store.SaveRule(ctx, rule))

	priority := 42
	updated, err := store.UpdateRule(ctx, "g1", rule.ID, RuleUpdate{Priority: &priority})
	require.NoError(t, err)
	assert.Equal(t, 42, updated.Priority)
	assert.Equal(t, rule.Name, updated.Name, "unset fields stay untouched")

	fetched, err := store.GetRule(ctx, "g1", rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, fetched.Priority)
}

func TestMemoryStoreGroupsAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rule := validRule()
	require.NoError(t, store.SaveRule(ctx, rule))

	other, err := store.GetRules(ctx, "g2")
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = store.GetRule(ctx, "g2", rule.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rule := validRule()
	require.NoError(t, store.SaveRule(ctx, rule))
	require.NoError(t, store.DeleteRule(ctx, "g1", rule.ID))

	err := store.DeleteRule(ctx, "g1", rule.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestDisabledStore(t *testing.T) {
	store := DisabledStore{}
	ctx := context.Background()

	stored, err := store.GetRules(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, stored)

	assert.True(t, pkgerrors.Is(store.SaveRule(ctx, validRule()), pkgerrors.ErrStoreDisabled))
	assert.True(t, pkgerrors.Is(store.DeleteRule(ctx, "g1", "r1"), pkgerrors.ErrStoreDisabled))
}

func TestKeywordRejectPreset(t *testing.T) {
	rule := NewKeywordRejectPreset("g1", []string{"广告", "代购"})

	assert.Equal(t, "g1", rule.GroupID)
	assert.Equal(t, 10, rule.Priority)
	assert.True(t, rule.Enabled)
	assert.Equal(t, ConditionKeyword, rule.Condition.Type)
	assert.Equal(t, OpContains, rule.Condition.Operator)
	assert.Equal(t, []string{"广告", "代购"}, rule.Condition.Values)
	assert.Equal(t, ActionReject, rule.Action)
	assert.Equal(t, "申请被拒绝：包含禁止关键词", rule.Message)
	assert.NoError(t, Validate(rule, nil))
}

func TestWhitelistOnlyPresetDefersToListStore(t *testing.T) {
	rule := NewWhitelistOnlyPreset("g1")

	assert.Equal(t, ConditionUserID, rule.Condition.Type)
	assert.Equal(t, OpIn, rule.Condition.Operator)
	assert.False(t, rule.Condition.HasInlineList())
	assert.Equal(t, ActionApprove, rule.Action)
	assert.NoError(t, Validate(rule, nil))
}
