package models

import "time"

type ConfigUpdateEvent struct {
	EventType string                 `json:"event_type"`
	GroupID   string                 `json:"group_id,omitempty"`
	RuleID    string                 `json:"rule_id,omitempty"`
	Action    string                 `json:"action"`
	Timestamp time.Time              `json:"timestamp"`
	ChangedBy string                 `json:"changed_by,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

const (
	EventTypeRuleUpdated    = "moderation_rule_updated"
	EventTypeListUpdated    = "moderation_list_updated"
	EventTypeKeywordUpdated = "moderation_keyword_updated"
	EventTypeConfigUpdated  = "group_config_updated"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
	ActionImport = "import"
)
