package management

import (
	"gatekeeper/internal/lists"
	"gatekeeper/internal/rules"
)

type CreateRuleRequest struct {
	Name        string          `json:"name" binding:"required"`
	Priority    int             `json:"priority"`
	Enabled     *bool           `json:"enabled"`
	Condition   rules.Condition `json:"condition" binding:"required"`
	Action      rules.Action    `json:"action" binding:"required"`
	Message     string          `json:"message"`
	Description string          `json:"description"`
}

type UpdateRuleRequest struct {
	Name        *string          `json:"name"`
	Priority    *int             `json:"priority"`
	Enabled     *bool            `json:"enabled"`
	Condition   *rules.Condition `json:"condition"`
	Action      *rules.Action    `json:"action"`
	Message     *string          `json:"message"`
	Description *string          `json:"description"`
}

func (r UpdateRuleRequest) toRuleUpdate() rules.RuleUpdate {
	return rules.RuleUpdate{
		Name:        r.Name,
		Priority:    r.Priority,
		Enabled:     r.Enabled,
		Condition:   r.Condition,
		Action:      r.Action,
		Message:     r.Message,
		Description: r.Description,
	}
}

type ToggleRuleRequest struct {
	Enabled bool `json:"enabled"`
}

type KeywordPresetRequest struct {
	Keywords []string `json:"keywords" binding:"required,min=1"`
}

// MembersRequest carries list entries either pre-split or as one raw blob the
// way operators paste them (comma, space or newline separated).
type MembersRequest struct {
	Members []string `json:"members"`
	Raw     string   `json:"raw"`
}

func (r MembersRequest) entries() []string {
	if r.Raw != "" {
		return append(r.Members, lists.SplitMembers(r.Raw)...)
	}
	return r.Members
}
