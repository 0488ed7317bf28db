package rules

import "time"

type ConditionType string

const (
	ConditionUserID   ConditionType = "userId"
	ConditionName     ConditionType = "name"
	ConditionKeyword  ConditionType = "keyword"
	ConditionDatabase ConditionType = "database"
	ConditionCustom   ConditionType = "custom"
)

type Operator string

const (
	OpEquals   Operator = "equals"
	OpContains Operator = "contains"
	OpMatches  Operator = "matches"
	OpIn       Operator = "in"
	OpNotIn    Operator = "not_in"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	// ActionIgnore means "this rule abstains": evaluation continues with the
	// next rule, it is not a terminal verdict.
	ActionIgnore Action = "ignore"
)

// Condition is a closed union over the five condition types. Value carries a
// single literal (or, for custom, the expression); Values carries an inline
// list. When both are empty for a list operator, evaluation defers to the
// group's persisted whitelist or name whitelist.
type Condition struct {
	Type     ConditionType `json:"type"`
	Operator Operator      `json:"operator,omitempty"`
	Value    string        `json:"value,omitempty"`
	Values   []string      `json:"values,omitempty"`
}

// HasInlineList reports whether the condition carries its own list instead of
// deferring to persisted list data.
func (c Condition) HasInlineList() bool {
	return len(c.Values) > 0
}

// Literals returns the inline operands: the list if present, otherwise the
// single literal.
func (c Condition) Literals() []string {
	if len(c.Values) > 0 {
		return c.Values
	}
	if c.Value != "" {
		return []string{c.Value}
	}
	return nil
}

type Rule struct {
	ID          string    `json:"id" db:"id"`
	GroupID     string    `json:"group_id" db:"group_id"`
	Name        string    `json:"name" db:"name"`
	Priority    int       `json:"priority" db:"priority"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	Condition   Condition `json:"condition" db:"condition"`
	Action      Action    `json:"action" db:"action"`
	Message     string    `json:"message,omitempty" db:"message"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// RuleUpdate is a partial update; nil fields are left untouched.
type RuleUpdate struct {
	Name        *string    `json:"name,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	Enabled     *bool      `json:"enabled,omitempty"`
	Condition   *Condition `json:"condition,omitempty"`
	Action      *Action    `json:"action,omitempty"`
	Message     *string    `json:"message,omitempty"`
	Description *string    `json:"description,omitempty"`
}

func (u RuleUpdate) ApplyTo(rule *Rule) {
	if u.Name != nil {
		rule.Name = *u.Name
	}
	if u.Priority != nil {
		rule.Priority = *u.Priority
	}
	if u.Enabled != nil {
		rule.Enabled = *u.Enabled
	}
	if u.Condition != nil {
		rule.Condition = *u.Condition
	}
	if u.Action != nil {
		rule.Action = *u.Action
	}
	if u.Message != nil {
		rule.Message = *u.Message
	}
	if u.Description != nil {
		rule.Description = *u.Description
	}
}
