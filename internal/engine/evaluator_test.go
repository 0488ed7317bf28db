package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/lists"
	"gatekeeper/internal/rules"
)

func newEvaluator(t *testing.T, src lists.Source) *Evaluator {
	t.Helper()
	if src == nil {
		src = lists.NewMemorySource()
	}
	return NewEvaluator(src, newCustomEvaluator(t))
}

func TestEvaluateUserIDCondition(t *testing.T) {
	ctx := context.Background()
	src := lists.NewMemorySource()
	_, err := src.Add(ctx, lists.KindWhitelist, "g1", "30001")
	require.NoError(t, err)
	eval := newEvaluator(t, src)

	reqCtx := RequestContext{GroupID: "g1", UserID: "10001"}

	tests := []struct {
		name string
		cond rules.Condition
		want bool
	}{
		{
			name: "equals match",
			cond: rules.Condition{Type: rules.ConditionUserID, Operator: rules.OpEquals, Value: "10001"},
			want: true,
		},
		{
			name: "equals mismatch",
			cond: rules.Condition{Type: rules.ConditionUserID, Operator: rules.OpEquals, Value: "10002"},
			want: false,
		},
		{
			name: "in with inline list",
			cond: rules.Condition{Type: rules.ConditionUserID, Operator: rules.OpIn, Values: []string{"10001", "10002"}},
			want: true,
		},
		{
			name: "not_in with inline list",
			cond: rules.Condition{Type: rules.ConditionUserID, Operator: rules.OpNotIn, Values: []string{"10001"}},
			want: false,
		},
		{
			name: "in defers to persisted whitelist",
			cond: rules.Condition{Type: rules.ConditionUserID, Operator: rules.OpIn},
			want: false,
		},
		{
			name: "not_in defers to persisted whitelist",
			cond: rules.Condition{Type: rules.ConditionUserID, Operator: rules.OpNotIn},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.Evaluate(ctx, tt.cond, reqCtx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	// Whitelisted user flips both deferred branches.
	whitelisted := RequestContext{GroupID: "g1", UserID: "30001"}
	got, err := eval.Evaluate(ctx, rules.Condition{Type: rules.ConditionUserID, Operator: rules.OpIn}, whitelisted)
	require.NoError(t, err)
	assert.True(t, got)
	got, err = eval.Evaluate(ctx, rules.Condition{Type: rules.ConditionUserID, Operator: rules.OpNotIn}, whitelisted)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateNameCondition(t *testing.T) {
	ctx := context.Background()
	src := lists.NewMemorySource()
	_, err := src.Add(ctx, lists.KindNameWhitelist, "g1", "张三")
	require.NoError(t, err)
	eval := newEvaluator(t, src)

	reqCtx := RequestContext{GroupID: "g1", Message: "我是张三的朋友"}

	tests := []struct {
		name string
		cond rules.Condition
		want bool
	}{
		{
			name: "contains substring",
			cond: rules.Condition{Type: rules.ConditionName, Operator: rules.OpContains, Value: "张三"},
			want: true,
		},
		{
			name: "equals needs the whole message",
			cond: rules.Condition{Type: rules.ConditionName, Operator: rules.OpEquals, Value: "张三"},
			want: false,
		},
		{
			name: "matches case-insensitive regex",
			cond: rules.Condition{Type: rules.ConditionName, Operator: rules.OpMatches, Value: "张三.*朋友"},
			want: true,
		},
		{
			name: "in with inline names",
			cond: rules.Condition{Type: rules.ConditionName, Operator: rules.OpIn, Values: []string{"李四", "张三"}},
			want: true,
		},
		{
			name: "in defers to persisted name whitelist",
			cond: rules.Condition{Type: rules.ConditionName, Operator: rules.OpIn},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.Evaluate(ctx, tt.cond, reqCtx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateNameMatchesBadRegexIsAnError(t *testing.T) {
	eval := newEvaluator(t, nil)
	cond := rules.Condition{Type: rules.ConditionName, Operator: rules.OpMatches, Value: "("}
	_, err := eval.Evaluate(context.Background(), cond, RequestContext{Message: "hello"})
	assert.Error(t, err)
}

func TestEvaluateKeywordCondition(t *testing.T) {
	eval := newEvaluator(t, nil)
	ctx := context.Background()
	reqCtx := RequestContext{Message: "朋友推荐来的，不是广告"}

	tests := []struct {
		name string
		cond rules.Condition
		want bool
	}{
		{
			name: "in matches any substring keyword",
			cond: rules.Condition{Type: rules.ConditionKeyword, Operator: rules.OpIn, Values: []string{"微商", "广告"}},
			want: true,
		},
		{
			name: "contains single literal",
			cond: rules.Condition{Type: rules.ConditionKeyword, Operator: rules.OpContains, Value: "推荐"},
			want: true,
		},
		{
			name: "equals compares the whole message",
			cond: rules.Condition{Type: rules.ConditionKeyword, Operator: rules.OpEquals, Value: "广告"},
			want: false,
		},
		{
			name: "matches regex keyword",
			cond: rules.Condition{Type: rules.ConditionKeyword, Operator: rules.OpMatches, Values: []string{"^朋友"}},
			want: true,
		},
		{
			name: "not_in is the complement of in",
			cond: rules.Condition{Type: rules.ConditionKeyword, Operator: rules.OpNotIn, Values: []string{"微商", "广告"}},
			want: false,
		},
		{
			name: "not_in with absent keywords",
			cond: rules.Condition{Type: rules.ConditionKeyword, Operator: rules.OpNotIn, Values: []string{"微商"}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.Evaluate(ctx, tt.cond, reqCtx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeywordInAndNotInAreComplements(t *testing.T) {
	eval := newEvaluator(t, nil)
	ctx := context.Background()

	keywords := []string{"广告", "代理", "兼职"}
	messages := []string{"", "你好", "纯广告", "找代理兼职", "正常申请"}

	for _, msg := range messages {
		reqCtx := RequestContext{Message: msg}
		in, err := eval.Evaluate(ctx, rules.Condition{Type: rules.ConditionKeyword, Operator: rules.OpIn, Values: keywords}, reqCtx)
		require.NoError(t, err)
		notIn, err := eval.Evaluate(ctx, rules.Condition{Type: rules.ConditionKeyword, Operator: rules.OpNotIn, Values: keywords}, reqCtx)
		require.NoError(t, err)
		assert.Equal(t, in, !notIn, "message %q", msg)
	}
}

func TestEvaluateDatabaseConditionNeverMatches(t *testing.T) {
	eval := newEvaluator(t, nil)
	got, err := eval.Evaluate(context.Background(),
		rules.Condition{Type: rules.ConditionDatabase, Operator: rules.OpEquals, Value: "anything"},
		RequestContext{Message: "anything"})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateUnknownConditionType(t *testing.T) {
	eval := newEvaluator(t, nil)
	_, err := eval.Evaluate(context.Background(),
		rules.Condition{Type: "mystery"}, RequestContext{})
	assert.Error(t, err)
}
