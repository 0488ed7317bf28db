package management

import (
	"context"
	"encoding/json"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/config"
	"gatekeeper/internal/lists"
	"gatekeeper/internal/rules"
	pkgerrors "gatekeeper/pkg/errors"
	"gatekeeper/pkg/models"
)

type service struct {
	ruleStore           rules.Store
	listSource          lists.Source
	groupStore          config.GroupStore
	decisions           audit.Recorder
	static              config.ModerationConfig
	versioningRepo      VersioningRepository
	configEventProducer *ConfigEventProducer
	validateExpr        rules.ExpressionValidator
	auditEnabled        bool
}

type ServiceOption func(*service)

func WithVersioning(versioningRepo VersioningRepository) ServiceOption {
	return func(s *service) {
		s.versioningRepo = versioningRepo
		s.auditEnabled = true
	}
}

func WithConfigEvents(configEventProducer *ConfigEventProducer) ServiceOption {
	return func(s *service) {
		s.configEventProducer = configEventProducer
	}
}

// WithExpressionValidator plugs custom-condition expression checking into
// rule validation; without it, expressions are only checked at evaluation
// time.
func WithExpressionValidator(validate rules.ExpressionValidator) ServiceOption {
	return func(s *service) {
		s.validateExpr = validate
	}
}

func WithDecisionLog(recorder audit.Recorder) ServiceOption {
	return func(s *service) {
		s.decisions = recorder
	}
}

func NewService(ruleStore rules.Store, listSource lists.Source, groupStore config.GroupStore, static config.ModerationConfig, opts ...ServiceOption) Service {
	s := &service{
		ruleStore:  ruleStore,
		listSource: listSource,
		groupStore: groupStore,
		static:     static,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.decisions == nil {
		s.decisions = audit.NopRecorder{}
	}

	return s
}

func (s *service) ListRules(ctx context.Context, groupID string) ([]rules.Rule, error) {
	groupRules, err := s.ruleStore.GetRules(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return groupRules, nil
}

func (s *service) CreateRule(ctx context.Context, groupID string, req CreateRuleRequest) (*rules.Rule, error) {
	rule := &rules.Rule{
		GroupID:     groupID,
		Name:        req.Name,
		Priority:    req.Priority,
		Enabled:     getEnabledValue(req.Enabled),
		Condition:   req.Condition,
		Action:      req.Action,
		Message:     req.Message,
		Description: req.Description,
	}

	if err := rules.Validate(rule, s.validateExpr); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	if err := s.ruleStore.SaveRule(ctx, rule); err != nil {
		return nil, err
	}

	s.createVersionAndAudit(ctx, rule, models.ActionCreate, nil)
	s.publishRuleEvent(ctx, models.ActionCreate, groupID, rule.ID)

	return rule, nil
}

func (s *service) GetRule(ctx context.Context, groupID, ruleID string) (*rules.Rule, error) {
	rule, err := s.ruleStore.GetRule(ctx, groupID, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", ruleID)
	}
	return rule, nil
}

func (s *service) UpdateRule(ctx context.Context, groupID, ruleID string, req UpdateRuleRequest) (*rules.Rule, error) {
	existing, err := s.GetRule(ctx, groupID, ruleID)
	if err != nil {
		return nil, err
	}

	updated := *existing
	update := req.toRuleUpdate()
	update.ApplyTo(&updated)
	if err := rules.Validate(&updated, s.validateExpr); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	oldValue, _ := ruleToMap(existing)

	rule, err := s.ruleStore.UpdateRule(ctx, groupID, ruleID, update)
	if err != nil {
		return nil, err
	}

	s.createVersionAndAudit(ctx, rule, models.ActionUpdate, oldValue)
	s.publishRuleEvent(ctx, models.ActionUpdate, groupID, rule.ID)

	return rule, nil
}

func (s *service) DeleteRule(ctx context.Context, groupID, ruleID string) error {
	existing, err := s.GetRule(ctx, groupID, ruleID)
	if err != nil {
		return err
	}

	if err := s.ruleStore.DeleteRule(ctx, groupID, ruleID); err != nil {
		return err
	}

	if s.auditEnabled && s.versioningRepo != nil {
		oldValue, _ := ruleToMap(existing)
		_ = s.versioningRepo.CreateAuditLog(ctx, &AuditLog{
			RuleID:    &ruleID,
			GroupID:   groupID,
			Action:    models.ActionDelete,
			OldValue:  oldValue,
			ChangedBy: getChangedBy(ctx),
		})
	}
	s.publishRuleEvent(ctx, models.ActionDelete, groupID, ruleID)

	return nil
}

func (s *service) ToggleRule(ctx context.Context, groupID, ruleID string, enabled bool) (*rules.Rule, error) {
	rule, err := s.ruleStore.UpdateRule(ctx, groupID, ruleID, rules.RuleUpdate{Enabled: &enabled})
	if err != nil {
		return nil, err
	}

	s.createVersionAndAudit(ctx, rule, models.ActionToggle, nil)
	s.publishRuleEvent(ctx, models.ActionToggle, groupID, rule.ID)

	return rule, nil
}

func (s *service) CreateKeywordPreset(ctx context.Context, groupID string, keywords []string) (*rules.Rule, error) {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if k, ok := lists.CleanKeyword(kw); ok {
			cleaned = append(cleaned, k)
		}
	}
	if len(cleaned) == 0 {
		return nil, pkgerrors.ErrValidation.WithDetail("message", "at least one keyword is required")
	}

	rule := rules.NewKeywordRejectPreset(groupID, cleaned)
	if err := s.ruleStore.SaveRule(ctx, rule); err != nil {
		return nil, err
	}

	s.createVersionAndAudit(ctx, rule, models.ActionCreate, nil)
	s.publishRuleEvent(ctx, models.ActionCreate, groupID, rule.ID)

	return rule, nil
}

func (s *service) GetRuleVersions(ctx context.Context, ruleID string) ([]RuleVersion, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrStoreDisabled.WithDetail("message", "rule versioning is not enabled")
	}
	versions, err := s.versioningRepo.GetVersions(ctx, ruleID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return versions, nil
}

func (s *service) GetAuditLogs(ctx context.Context, ruleID *string, groupID string, limit int) ([]AuditLog, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrStoreDisabled.WithDetail("message", "rule versioning is not enabled")
	}
	logs, err := s.versioningRepo.GetAuditLogs(ctx, ruleID, groupID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return logs, nil
}

func (s *service) ListMembers(ctx context.Context, kind lists.Kind, groupID string) ([]string, error) {
	members, err := s.listSource.Members(ctx, kind, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrStoreUnavailable)
	}
	return members, nil
}

func (s *service) AddMembers(ctx context.Context, kind lists.Kind, groupID string, entries []string) (lists.BulkReport, error) {
	report, err := lists.BulkAdd(ctx, s.listSource, kind, groupID, entries)
	if err != nil {
		return report, pkgerrors.Wrap(err, pkgerrors.ErrStoreUnavailable)
	}

	if len(report.Added) > 0 {
		s.publishListEvent(ctx, models.ActionImport, groupID, kind)
	}
	return report, nil
}

func (s *service) RemoveMembers(ctx context.Context, kind lists.Kind, groupID string, entries []string) (int, error) {
	cleaned := lists.CleanAll(kind, entries)
	if len(cleaned) == 0 {
		return 0, nil
	}

	removed, err := s.listSource.Remove(ctx, kind, groupID, cleaned...)
	if err != nil {
		return 0, pkgerrors.Wrap(err, pkgerrors.ErrStoreUnavailable)
	}

	if removed > 0 {
		s.publishListEvent(ctx, models.ActionDelete, groupID, kind)
	}
	return removed, nil
}

func (s *service) GetGroupConfig(ctx context.Context, groupID string) (config.ModerationConfig, error) {
	overrides, err := s.groupStore.LoadGroupConfig(ctx, groupID)
	if err != nil {
		return s.static, pkgerrors.Wrap(err, pkgerrors.ErrStoreUnavailable)
	}
	effective, err := config.Overlay(s.static, overrides)
	if err != nil {
		return s.static, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return effective, nil
}

func (s *service) UpdateGroupConfig(ctx context.Context, groupID string, overrides config.GroupOverrides) (config.ModerationConfig, error) {
	for key := range overrides {
		if !knownConfigKeys[key] {
			return s.static, pkgerrors.ErrValidation.WithDetail("message", "unknown config key: "+key)
		}
	}

	existing, err := s.groupStore.LoadGroupConfig(ctx, groupID)
	if err != nil {
		return s.static, pkgerrors.Wrap(err, pkgerrors.ErrStoreUnavailable)
	}
	if existing == nil {
		existing = make(config.GroupOverrides, len(overrides))
	}
	for key, value := range overrides {
		existing[key] = value
	}

	// Reject overrides that the effective config cannot absorb before they
	// are persisted.
	effective, err := config.Overlay(s.static, existing)
	if err != nil {
		return s.static, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	if err := s.groupStore.SaveGroupConfig(ctx, groupID, existing); err != nil {
		return s.static, pkgerrors.Wrap(err, pkgerrors.ErrStoreUnavailable)
	}

	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishGroupConfigEvent(ctx, groupID, getChangedBy(ctx))
	}

	return effective, nil
}

func (s *service) ListDecisions(ctx context.Context, filter audit.DecisionFilter) ([]audit.Decision, error) {
	decisions, err := s.decisions.ListDecisions(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrStoreUnavailable)
	}
	return decisions, nil
}

func (s *service) createVersionAndAudit(ctx context.Context, rule *rules.Rule, action string, oldValue map[string]interface{}) {
	if !s.auditEnabled || s.versioningRepo == nil {
		return
	}

	ruleJSON, err := json.Marshal(rule)
	if err != nil {
		return
	}

	version := &RuleVersion{
		RuleID:    rule.ID,
		GroupID:   rule.GroupID,
		RuleData:  string(ruleJSON),
		Version:   s.nextVersion(ctx, rule.ID),
		ChangedBy: getChangedBy(ctx),
	}
	if err := s.versioningRepo.CreateVersion(ctx, version); err != nil {
		return
	}

	newValue, err := ruleToMap(rule)
	if err != nil {
		return
	}

	ruleID := rule.ID
	_ = s.versioningRepo.CreateAuditLog(ctx, &AuditLog{
		RuleID:    &ruleID,
		GroupID:   rule.GroupID,
		Action:    action,
		OldValue:  oldValue,
		NewValue:  newValue,
		ChangedBy: getChangedBy(ctx),
	})
}

func (s *service) nextVersion(ctx context.Context, ruleID string) int {
	if next, err := s.versioningRepo.GetNextVersion(ctx, ruleID); err == nil {
		return next
	}
	return 1
}

func (s *service) publishRuleEvent(ctx context.Context, action, groupID, ruleID string) {
	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishRuleEvent(ctx, action, groupID, ruleID, getChangedBy(ctx))
	}
}

func (s *service) publishListEvent(ctx context.Context, action, groupID string, kind lists.Kind) {
	if s.configEventProducer == nil {
		return
	}
	switch kind {
	case lists.KindApprovalKeywords, lists.KindRejectionKeywords:
		_ = s.configEventProducer.PublishKeywordEvent(ctx, action, groupID, string(kind), getChangedBy(ctx))
	default:
		_ = s.configEventProducer.PublishListEvent(ctx, action, groupID, string(kind), getChangedBy(ctx))
	}
}

func ruleToMap(rule *rules.Rule) (map[string]interface{}, error) {
	ruleData, err := json.Marshal(rule)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(ruleData, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// knownConfigKeys is the set of top-level JSON keys of ModerationConfig,
// derived once so override validation cannot drift from the struct.
var knownConfigKeys = func() map[string]bool {
	raw, err := json.Marshal(config.ModerationConfig{})
	if err != nil {
		return nil
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil
	}
	known := make(map[string]bool, len(keys))
	for key := range keys {
		known[key] = true
	}
	return known
}()

func getEnabledValue(reqEnabled *bool) bool {
	if reqEnabled == nil {
		return true
	}
	return *reqEnabled
}

func getChangedBy(ctx context.Context) string {
	if operator := ctx.Value(operatorContextKey); operator != nil {
		if id, ok := operator.(string); ok && id != "" {
			return id
		}
	}
	return "system"
}
