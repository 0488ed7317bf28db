package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/config"
	"gatekeeper/internal/lists"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/rules"
)

type engineFixture struct {
	engine *Engine
	store  *rules.MemoryStore
	lists  *lists.MemorySource
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	store := rules.NewMemoryStore()
	src := lists.NewMemorySource()
	eval := NewEvaluator(src, newCustomEvaluator(t))
	return &engineFixture{
		engine: New(store, eval, src, logger.NopLogger()),
		store:  store,
		lists:  src,
	}
}

func saveRule(t *testing.T, store *rules.MemoryStore, rule rules.Rule) {
	t.Helper()
	require.NoError(t, store.SaveRule(context.Background(), &rule))
}

func keywordReject(id string, priority int, keywords ...string) rules.Rule {
	return rules.Rule{
		ID:       id,
		GroupID:  "g1",
		Name:     "reject " + id,
		Priority: priority,
		Enabled:  true,
		Condition: rules.Condition{
			Type:     rules.ConditionKeyword,
			Operator: rules.OpContains,
			Values:   keywords,
		},
		Action: rules.ActionReject,
	}
}

func TestFirstMatchWins(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	approve := keywordReject("r-approve", 1, "你好")
	approve.Action = rules.ActionApprove
	saveRule(t, f.store, approve)
	saveRule(t, f.store, keywordReject("r-reject", 2, "你好"))

	result := f.engine.EvaluateRequest(ctx, config.DefaultModeration(), RequestContext{GroupID: "g1", Message: "你好"})
	assert.True(t, result.Approved)
	assert.Equal(t, "r-approve", result.RuleID)
}

func TestEqualPrioritySortIsStable(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	first := keywordReject("r-first", 5, "你好")
	first.Action = rules.ActionApprove
	saveRule(t, f.store, first)
	saveRule(t, f.store, keywordReject("r-second", 5, "你好"))

	// Same rule set, repeated evaluations: the earlier-stored rule keeps
	// winning the tie.
	for i := 0; i < 10; i++ {
		result := f.engine.EvaluateRequest(ctx, config.DefaultModeration(), RequestContext{GroupID: "g1", Message: "你好"})
		assert.Equal(t, "r-first", result.RuleID)
		assert.True(t, result.Approved)
	}
}

func TestDisabledRuleNeverContributes(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	rule := keywordReject("r1", 1, "你好")
	rule.Enabled = false
	saveRule(t, f.store, rule)

	// With the only matching rule disabled the default policy applies, and
	// with no filters configured that means approve.
	result := f.engine.EvaluateRequest(ctx, config.DefaultModeration(), RequestContext{GroupID: "g1", Message: "你好"})
	assert.True(t, result.Approved)
	assert.Equal(t, ReasonNoFilters, result.Reason)
	assert.Empty(t, result.RuleID)
}

func TestIgnoreContinuesToNextRule(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	ignore := keywordReject("r-ignore", 1, "你好")
	ignore.Action = rules.ActionIgnore
	saveRule(t, f.store, ignore)
	saveRule(t, f.store, keywordReject("r-reject", 2, "你好"))

	result := f.engine.EvaluateRequest(ctx, config.DefaultModeration(), RequestContext{GroupID: "g1", Message: "你好"})
	assert.False(t, result.Approved)
	assert.Equal(t, "r-reject", result.RuleID)
}

func TestRuleEvaluationErrorSkipsToNextRule(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	bad := rules.Rule{
		ID: "r-bad", GroupID: "g1", Name: "broken regex", Priority: 1, Enabled: true,
		Condition: rules.Condition{Type: rules.ConditionName, Operator: rules.OpMatches, Value: "("},
		Action:    rules.ActionApprove,
	}
	saveRule(t, f.store, bad)
	saveRule(t, f.store, keywordReject("r-reject", 2, "你好"))

	result := f.engine.EvaluateRequest(ctx, config.DefaultModeration(), RequestContext{GroupID: "g1", Message: "你好"})
	assert.False(t, result.Approved)
	assert.Equal(t, "r-reject", result.RuleID)
}

func TestRejectRuleMessageFallsBackToConfigured(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := config.DefaultModeration()

	saveRule(t, f.store, keywordReject("r1", 1, "广告"))

	result := f.engine.EvaluateRequest(ctx, cfg, RequestContext{GroupID: "g1", Message: "纯广告"})
	assert.False(t, result.Approved)
	assert.Equal(t, cfg.RejectionMessage, result.RejectionMessage)

	withMessage := keywordReject("r2", 0, "微商")
	withMessage.Message = "本群谢绝微商"
	saveRule(t, f.store, withMessage)

	result = f.engine.EvaluateRequest(ctx, cfg, RequestContext{GroupID: "g1", Message: "微商推广"})
	assert.Equal(t, "本群谢绝微商", result.RejectionMessage)
}

type failingStore struct{ rules.Store }

func (failingStore) GetRules(context.Context, string) ([]rules.Rule, error) {
	return nil, errors.New("store down")
}

func TestStoreFailureFallsBackToDefaultPolicy(t *testing.T) {
	src := lists.NewMemorySource()
	eval := NewEvaluator(src, newCustomEvaluator(t))
	engine := New(failingStore{}, eval, src, logger.NopLogger())

	result := engine.EvaluateRequest(context.Background(), config.DefaultModeration(), RequestContext{GroupID: "g1", UserID: "10001"})
	assert.True(t, result.Approved)
	assert.Equal(t, ReasonNoFilters, result.Reason)
}

func TestDefaultPolicyWhitelistScenario(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.lists.Add(ctx, lists.KindWhitelist, "G1", "111")
	require.NoError(t, err)

	cfg := config.DefaultModeration()
	cfg.UseWhitelist = true
	cfg.AutoRejectNonWhitelist = true

	result := f.engine.EvaluateRequest(ctx, cfg, RequestContext{GroupID: "G1", UserID: "111"})
	assert.True(t, result.Approved)
	assert.Equal(t, ReasonWhitelisted, result.Reason)

	result = f.engine.EvaluateRequest(ctx, cfg, RequestContext{GroupID: "G1", UserID: "222"})
	assert.False(t, result.Approved)
	assert.Equal(t, ReasonNotWhitelisted, result.Reason)
}

func TestDefaultPolicyWhitelistFallsThroughWithoutAutoReject(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	cfg := config.DefaultModeration()
	cfg.UseWhitelist = true

	// Not whitelisted, auto-reject off, keyword filter off: reject with the
	// terminal no-match reason.
	result := f.engine.EvaluateRequest(ctx, cfg, RequestContext{GroupID: "G1", UserID: "222"})
	assert.False(t, result.Approved)
	assert.Equal(t, ReasonNoMatch, result.Reason)
}

func TestDefaultPolicyNameValidationScenario(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.lists.Add(ctx, lists.KindNameWhitelist, "G1", "张三")
	require.NoError(t, err)

	cfg := config.DefaultModeration()
	cfg.UseNameValidation = true

	result := f.engine.EvaluateRequest(ctx, cfg, RequestContext{GroupID: "G1", UserID: "111", Message: "我是张三的朋友"})
	assert.True(t, result.Approved)
	assert.Equal(t, ReasonNameValidated, result.Reason)

	result = f.engine.EvaluateRequest(ctx, cfg, RequestContext{GroupID: "G1", UserID: "111", Message: "李四推荐"})
	assert.False(t, result.Approved)
	assert.Equal(t, cfg.NameValidationMessage, result.RejectionMessage)
}

func TestDefaultPolicyKeywordFilter(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	cfg := config.DefaultModeration()
	cfg.UseKeywordFilter = true
	cfg.ApprovalKeywords = []string{"朋友推荐"}
	cfg.RejectionKeywords = []string{"广告"}

	result := f.engine.EvaluateRequest(ctx, cfg, RequestContext{GroupID: "G1", Message: "打广告的"})
	assert.False(t, result.Approved)
	assert.Equal(t, ReasonRejectionKeyword, result.Reason)

	result = f.engine.EvaluateRequest(ctx, cfg, RequestContext{GroupID: "G1", Message: "朋友推荐来的"})
	assert.True(t, result.Approved)
	assert.Equal(t, ReasonApprovalKeyword, result.Reason)

	result = f.engine.EvaluateRequest(ctx, cfg, RequestContext{GroupID: "G1", Message: "随便写点"})
	assert.False(t, result.Approved)
	assert.Equal(t, ReasonKeywordInconclusive, result.Reason)

	// Rejection keywords win over approval keywords.
	result = f.engine.EvaluateRequest(ctx, cfg, RequestContext{GroupID: "G1", Message: "朋友推荐的广告"})
	assert.False(t, result.Approved)
}

func TestDefaultPolicyKeywordFilterSkipsEmptyMessage(t *testing.T) {
	f := newEngineFixture(t)
	cfg := config.DefaultModeration()
	cfg.UseKeywordFilter = true
	cfg.RejectionKeywords = []string{"广告"}

	result := f.engine.EvaluateRequest(context.Background(), cfg, RequestContext{GroupID: "G1"})
	assert.False(t, result.Approved)
	assert.Equal(t, ReasonNoMatch, result.Reason)
}

func TestDefaultPolicyUsesStaticConfigLists(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	cfg := config.DefaultModeration()
	cfg.UseWhitelist = true
	cfg.AutoRejectNonWhitelist = true
	cfg.Whitelist = []string{"555"}

	result := f.engine.EvaluateRequest(ctx, cfg, RequestContext{GroupID: "G1", UserID: "555"})
	assert.True(t, result.Approved)

	cfg = config.DefaultModeration()
	cfg.UseNameValidation = true
	cfg.NameWhitelist = []string{"王五"}

	result = f.engine.EvaluateRequest(ctx, cfg, RequestContext{GroupID: "G1", Message: "我叫王五"})
	assert.True(t, result.Approved)
}

func TestCustomRuleEndToEnd(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	custom := rules.Rule{
		ID: "r-custom", GroupID: "g1", Name: "short messages", Priority: 1, Enabled: true,
		Condition: rules.Condition{Type: rules.ConditionCustom, Value: `messageLength < 4 && !hasChineseChars`},
		Action:    rules.ActionReject,
	}
	saveRule(t, f.store, custom)

	result := f.engine.EvaluateRequest(ctx, config.DefaultModeration(), RequestContext{GroupID: "g1", Message: "hi"})
	assert.False(t, result.Approved)
	assert.Equal(t, "r-custom", result.RuleID)

	result = f.engine.EvaluateRequest(ctx, config.DefaultModeration(), RequestContext{GroupID: "g1", Message: "我是张三的朋友"})
	assert.True(t, result.Approved)
}
