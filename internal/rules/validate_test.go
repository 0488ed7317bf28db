package rules

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRule() *Rule {
	return &Rule{
		GroupID: "g1",
		Name:    "block ads",
		Condition: Condition{
			Type:     ConditionKeyword,
			Operator: OpContains,
			Values:   []string{"广告"},
		},
		Action: ActionReject,
	}
}

func TestValidateAcceptsWellFormedRule(t *testing.T) {
	require.NoError(t, Validate(validRule(), nil))
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Rule)
	}{
		{"missing name", func(r *Rule) { r.Name = "" }},
		{"missing group", func(r *Rule) { r.GroupID = "" }},
		{"bad action", func(r *Rule) { r.Action = Action("ban") }},
		{"unknown condition type", func(r *Rule) { r.Condition.Type = ConditionType("ip") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validRule()
			tt.mutate(rule)
			assert.Error(t, Validate(rule, nil))
		})
	}
}

func TestValidateOperatorsPerType(t *testing.T) {
	tests := []struct {
		condType ConditionType
		operator Operator
		wantErr  bool
	}{
		{ConditionUserID, OpEquals, false},
		{ConditionUserID, OpIn, false},
		{ConditionUserID, OpNotIn, false},
		{ConditionUserID, OpContains, true},
		{ConditionUserID, OpMatches, true},
		{ConditionName, OpNotIn, true},
		{ConditionName, OpMatches, false},
		{ConditionKeyword, OpNotIn, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s", tt.condType, tt.operator), func(t *testing.T) {
			err := ValidateCondition(Condition{
				Type:     tt.condType,
				Operator: tt.operator,
				Values:   []string{"10001"},
			}, nil)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMatchesPatternMustCompile(t *testing.T) {
	err := ValidateCondition(Condition{
		Type:     ConditionKeyword,
		Operator: OpMatches,
		Value:    "[unclosed",
	}, nil)
	assert.Error(t, err)
}

func TestValidateCustomRequiresExpression(t *testing.T) {
	err := ValidateCondition(Condition{Type: ConditionCustom}, nil)
	assert.Error(t, err)
}

func TestValidateCustomUsesExpressionValidator(t *testing.T) {
	called := ""
	validator := func(expr string) error {
		called = expr
		return fmt.Errorf("rejected")
	}

	err := ValidateCondition(Condition{Type: ConditionCustom, Value: "messageLength > 5"}, validator)
	assert.Error(t, err)
	assert.Equal(t, "messageLength > 5", called)
}

func TestValidateDatabaseConditionAlwaysLoads(t *testing.T) {
	// Stored rules with database conditions must keep loading even though
	// they never match.
	assert.NoError(t, ValidateCondition(Condition{Type: ConditionDatabase, Operator: OpEquals}, nil))
}

func TestConditionLiterals(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Condition{Value: "x", Values: []string{"a", "b"}}.Literals())
	assert.Equal(t, []string{"x"}, Condition{Value: "x"}.Literals())
	assert.Nil(t, Condition{}.Literals())
}
