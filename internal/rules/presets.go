package rules

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	presetKeywordPriority   = 10
	presetWhitelistPriority = 5
)

// NewKeywordRejectPreset builds the stock "reject applications containing any
// of these keywords" rule.
func NewKeywordRejectPreset(groupID string, keywords []string) *Rule {
	return &Rule{
		ID:       "preset_keywords_" + uuid.New().String(),
		GroupID:  groupID,
		Name:     fmt.Sprintf("keyword filter: %s", strings.Join(keywords, ", ")),
		Priority: presetKeywordPriority,
		Enabled:  true,
		Condition: Condition{
			Type:     ConditionKeyword,
			Operator: OpContains,
			Values:   keywords,
		},
		Action:      ActionReject,
		Message:     "申请被拒绝：包含禁止关键词",
		Description: "automatically rejects applications containing banned keywords",
	}
}

// NewWhitelistOnlyPreset builds a rule approving requesters on the group's
// persisted whitelist. The condition carries no inline list, so evaluation
// defers to the list store.
func NewWhitelistOnlyPreset(groupID string) *Rule {
	return &Rule{
		ID:       "preset_whitelist_" + uuid.New().String(),
		GroupID:  groupID,
		Name:     "whitelist members",
		Priority: presetWhitelistPriority,
		Enabled:  true,
		Condition: Condition{
			Type:     ConditionUserID,
			Operator: OpIn,
		},
		Action:      ActionApprove,
		Description: "approves requesters on the group whitelist",
	}
}
