package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/config"
	"gatekeeper/internal/engine"
	"gatekeeper/internal/lists"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/rules"
	"gatekeeper/pkg/models"
)

type adapterCall struct {
	kind    string
	groupID string
	userID  string
	message string
}

type fakeAdapter struct {
	mu    sync.Mutex
	calls []adapterCall
	fail  error
}

func (a *fakeAdapter) Approve(_ context.Context, req JoinRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	a.calls = append(a.calls, adapterCall{kind: "approve", groupID: req.GroupID, userID: req.UserID})
	return nil
}

func (a *fakeAdapter) Reject(_ context.Context, req JoinRequest, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	a.calls = append(a.calls, adapterCall{kind: "reject", groupID: req.GroupID, userID: req.UserID, message: message})
	return nil
}

func (a *fakeAdapter) SendMessage(_ context.Context, groupID, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	a.calls = append(a.calls, adapterCall{kind: "send_message", groupID: groupID, message: text})
	return nil
}

func (a *fakeAdapter) snapshot() []adapterCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]adapterCall, len(a.calls))
	copy(out, a.calls)
	return out
}

type memoryGroupStore struct {
	mu        sync.RWMutex
	overrides map[string]config.GroupOverrides
}

func newMemoryGroupStore() *memoryGroupStore {
	return &memoryGroupStore{overrides: make(map[string]config.GroupOverrides)}
}

func (s *memoryGroupStore) SaveGroupConfig(_ context.Context, groupID string, overrides config.GroupOverrides) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[groupID] = overrides
	return nil
}

func (s *memoryGroupStore) LoadGroupConfig(_ context.Context, groupID string) (config.GroupOverrides, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overrides[groupID], nil
}

type fixture struct {
	orch       *Orchestrator
	adapter    *fakeAdapter
	groupStore *memoryGroupStore
	ruleStore  *rules.MemoryStore
	recorder   *audit.MemoryRecorder
}

// syncScheduler runs welcome sends inline so tests need no sleeping.
func syncScheduler(_ time.Duration, fn func()) { fn() }

func newFixture(t *testing.T, static config.ModerationConfig) *fixture {
	t.Helper()

	ruleStore := rules.NewMemoryStore()
	src := lists.NewMemorySource()
	custom, err := engine.NewCustomEvaluator()
	require.NoError(t, err)
	eng := engine.New(ruleStore, engine.NewEvaluator(src, custom), src, logger.NopLogger())

	adapter := &fakeAdapter{}
	groupStore := newMemoryGroupStore()
	recorder := audit.NewMemoryRecorder()

	orch := NewOrchestrator(static, groupStore, eng, adapter, logger.NopLogger(),
		WithRecorder(recorder),
		WithScheduler(syncScheduler),
	)
	return &fixture{orch: orch, adapter: adapter, groupStore: groupStore, ruleStore: ruleStore, recorder: recorder}
}

func joinEvent(payload map[string]interface{}) models.EventEnvelope {
	return models.EventEnvelope{
		ID:        "e1",
		Source:    "platform-bridge",
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

func autoProcessConfig() config.ModerationConfig {
	cfg := config.DefaultModeration()
	cfg.AutoProcess = true
	cfg.EnableWelcome = false
	return cfg
}

func TestHandleApprovesAndRecords(t *testing.T) {
	f := newFixture(t, autoProcessConfig())

	err := f.orch.Handle(context.Background(), joinEvent(map[string]interface{}{
		"guildId": "g1", "userId": "10001", "content": "你好",
	}))
	require.NoError(t, err)

	calls := f.adapter.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "approve", calls[0].kind)
	assert.Equal(t, "g1", calls[0].groupID)

	decisions, err := f.recorder.ListDecisions(context.Background(), audit.DecisionFilter{GroupID: "g1"})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].Approved)
	assert.Equal(t, "e1", decisions[0].RequestID)
}

func TestHandleSkipsWhenAutoProcessDisabled(t *testing.T) {
	cfg := autoProcessConfig()
	cfg.AutoProcess = false
	f := newFixture(t, cfg)

	err := f.orch.Handle(context.Background(), joinEvent(map[string]interface{}{
		"guildId": "g1", "userId": "10001",
	}))
	require.NoError(t, err)
	assert.Empty(t, f.adapter.snapshot())
}

func TestHandleDropsOnMissingIdentifiers(t *testing.T) {
	f := newFixture(t, autoProcessConfig())

	err := f.orch.Handle(context.Background(), joinEvent(map[string]interface{}{
		"content": "no ids here",
	}))
	require.NoError(t, err)
	assert.Empty(t, f.adapter.snapshot())

	decisions, err := f.recorder.ListDecisions(context.Background(), audit.DecisionFilter{})
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func TestHandleRejectsWithRuleMessage(t *testing.T) {
	f := newFixture(t, autoProcessConfig())

	rule := rules.Rule{
		GroupID: "g1", Name: "no ads", Priority: 1, Enabled: true,
		Condition: rules.Condition{Type: rules.ConditionKeyword, Operator: rules.OpContains, Values: []string{"广告"}},
		Action:    rules.ActionReject,
		Message:   "本群谢绝广告",
	}
	require.NoError(t, f.ruleStore.SaveRule(context.Background(), &rule))

	err := f.orch.Handle(context.Background(), joinEvent(map[string]interface{}{
		"guildId": "g1", "userId": "10001", "content": "广告合作",
	}))
	require.NoError(t, err)

	calls := f.adapter.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "reject", calls[0].kind)
	assert.Equal(t, "本群谢绝广告", calls[0].message)
}

func TestHandleAppliesGroupOverrides(t *testing.T) {
	f := newFixture(t, autoProcessConfig())
	ctx := context.Background()

	// Group override turns the whitelist gate on for g1 only.
	overrides := config.GroupOverrides{
		"useWhitelist":           json.RawMessage(`true`),
		"autoRejectNonWhitelist": json.RawMessage(`true`),
		"whitelist":              json.RawMessage(`["111"]`),
	}
	require.NoError(t, f.groupStore.SaveGroupConfig(ctx, "g1", overrides))

	err := f.orch.Handle(ctx, joinEvent(map[string]interface{}{
		"guildId": "g1", "userId": "222", "content": "hi",
	}))
	require.NoError(t, err)

	calls := f.adapter.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "reject", calls[0].kind)

	// Other groups keep the static config and approve.
	err = f.orch.Handle(ctx, joinEvent(map[string]interface{}{
		"guildId": "g2", "userId": "222", "content": "hi",
	}))
	require.NoError(t, err)
	calls = f.adapter.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "approve", calls[1].kind)
}

func TestHandleConfigChangeAppliesToNextRequest(t *testing.T) {
	f := newFixture(t, autoProcessConfig())
	ctx := context.Background()
	event := joinEvent(map[string]interface{}{"guildId": "g1", "userId": "222", "content": "hi"})

	require.NoError(t, f.orch.Handle(ctx, event))
	require.Equal(t, "approve", f.adapter.snapshot()[0].kind)

	overrides := config.GroupOverrides{
		"useWhitelist":           json.RawMessage(`true`),
		"autoRejectNonWhitelist": json.RawMessage(`true`),
	}
	require.NoError(t, f.groupStore.SaveGroupConfig(ctx, "g1", overrides))

	require.NoError(t, f.orch.Handle(ctx, event))
	calls := f.adapter.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "reject", calls[1].kind)
}

func TestHandleSchedulesWelcomeAfterApproval(t *testing.T) {
	cfg := autoProcessConfig()
	cfg.EnableWelcome = true
	cfg.WelcomeMessage = "欢迎新朋友"
	f := newFixture(t, cfg)

	err := f.orch.Handle(context.Background(), joinEvent(map[string]interface{}{
		"guildId": "g1", "userId": "10001", "content": "你好",
	}))
	require.NoError(t, err)

	calls := f.adapter.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "approve", calls[0].kind)
	assert.Equal(t, "send_message", calls[1].kind)
	assert.Equal(t, "欢迎新朋友", calls[1].message)
}

func TestHandleNoWelcomeAfterRejection(t *testing.T) {
	cfg := autoProcessConfig()
	cfg.EnableWelcome = true
	cfg.WelcomeMessage = "欢迎新朋友"
	cfg.UseWhitelist = true
	cfg.AutoRejectNonWhitelist = true
	f := newFixture(t, cfg)

	err := f.orch.Handle(context.Background(), joinEvent(map[string]interface{}{
		"guildId": "g1", "userId": "222", "content": "hi",
	}))
	require.NoError(t, err)

	calls := f.adapter.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "reject", calls[0].kind)
}

func TestHandleAdapterFailureIsTerminal(t *testing.T) {
	f := newFixture(t, autoProcessConfig())
	f.adapter.fail = errors.New("bridge unreachable")

	// Handler must not report an error: retrying cannot recover the request.
	err := f.orch.Handle(context.Background(), joinEvent(map[string]interface{}{
		"guildId": "g1", "userId": "10001", "content": "你好",
	}))
	assert.NoError(t, err)
}
