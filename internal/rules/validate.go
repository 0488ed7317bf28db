package rules

import (
	"fmt"
	"regexp"
)

var operatorsByType = map[ConditionType]map[Operator]bool{
	ConditionUserID: {
		OpEquals: true,
		OpIn:     true,
		OpNotIn:  true,
	},
	ConditionName: {
		OpEquals:   true,
		OpContains: true,
		OpMatches:  true,
		OpIn:       true,
	},
	ConditionKeyword: {
		OpEquals:   true,
		OpContains: true,
		OpMatches:  true,
		OpIn:       true,
		OpNotIn:    true,
	},
	// database conditions never match but stored rules carrying them must
	// keep loading, so any operator is accepted.
	ConditionDatabase: nil,
	ConditionCustom:   nil,
}

var validActions = map[Action]bool{
	ActionApprove: true,
	ActionReject:  true,
	ActionIgnore:  true,
}

// ExpressionValidator checks a custom-condition expression. Wired to the
// engine's CEL validation by the management service; nil skips the check.
type ExpressionValidator func(expression string) error

func Validate(rule *Rule, validateExpr ExpressionValidator) error {
	if rule.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if rule.GroupID == "" {
		return fmt.Errorf("rule group id is required")
	}
	if !validActions[rule.Action] {
		return fmt.Errorf("invalid rule action %q", rule.Action)
	}
	return ValidateCondition(rule.Condition, validateExpr)
}

func ValidateCondition(cond Condition, validateExpr ExpressionValidator) error {
	ops, known := operatorsByType[cond.Type]
	if !known {
		return fmt.Errorf("unknown condition type %q", cond.Type)
	}

	if ops != nil && !ops[cond.Operator] {
		return fmt.Errorf("operator %q is not valid for condition type %q", cond.Operator, cond.Type)
	}

	switch cond.Type {
	case ConditionCustom:
		if cond.Value == "" {
			return fmt.Errorf("custom condition requires an expression")
		}
		if validateExpr != nil {
			if err := validateExpr(cond.Value); err != nil {
				return fmt.Errorf("invalid custom expression: %w", err)
			}
		}
	case ConditionName, ConditionKeyword:
		if cond.Operator == OpMatches {
			for _, pattern := range cond.Literals() {
				if _, err := regexp.Compile("(?i)" + pattern); err != nil {
					return fmt.Errorf("invalid pattern %q: %w", pattern, err)
				}
			}
		}
	}

	return nil
}
