package management

import (
	"context"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/config"
	"gatekeeper/internal/lists"
	"gatekeeper/internal/rules"
)

type Service interface {
	ListRules(ctx context.Context, groupID string) ([]rules.Rule, error)
	CreateRule(ctx context.Context, groupID string, req CreateRuleRequest) (*rules.Rule, error)
	GetRule(ctx context.Context, groupID, ruleID string) (*rules.Rule, error)
	UpdateRule(ctx context.Context, groupID, ruleID string, req UpdateRuleRequest) (*rules.Rule, error)
	DeleteRule(ctx context.Context, groupID, ruleID string) error
	ToggleRule(ctx context.Context, groupID, ruleID string, enabled bool) (*rules.Rule, error)
	CreateKeywordPreset(ctx context.Context, groupID string, keywords []string) (*rules.Rule, error)
	GetRuleVersions(ctx context.Context, ruleID string) ([]RuleVersion, error)
	GetAuditLogs(ctx context.Context, ruleID *string, groupID string, limit int) ([]AuditLog, error)

	ListMembers(ctx context.Context, kind lists.Kind, groupID string) ([]string, error)
	AddMembers(ctx context.Context, kind lists.Kind, groupID string, entries []string) (lists.BulkReport, error)
	RemoveMembers(ctx context.Context, kind lists.Kind, groupID string, entries []string) (int, error)

	GetGroupConfig(ctx context.Context, groupID string) (config.ModerationConfig, error)
	UpdateGroupConfig(ctx context.Context, groupID string, overrides config.GroupOverrides) (config.ModerationConfig, error)

	ListDecisions(ctx context.Context, filter audit.DecisionFilter) ([]audit.Decision, error)
}
