package engine

// RequestContext is the evaluation input: who is asking to join which group,
// and what they wrote in the application message.
type RequestContext struct {
	GroupID string
	UserID  string
	Message string
}

// ApprovalResult is the engine verdict for one join request.
type ApprovalResult struct {
	Approved         bool   `json:"approved"`
	Reason           string `json:"reason"`
	RejectionMessage string `json:"rejection_message,omitempty"`
	RuleID           string `json:"rule_id,omitempty"`
	RuleName         string `json:"rule_name,omitempty"`
}

const (
	ReasonRuleMatch           = "matched rule"
	ReasonNameValidated       = "name found in name whitelist"
	ReasonNameNotValidated    = "name validation failed"
	ReasonWhitelisted         = "user in whitelist"
	ReasonNotWhitelisted      = "user not in whitelist"
	ReasonRejectionKeyword    = "rejection keyword in message"
	ReasonApprovalKeyword     = "approval keyword in message"
	ReasonKeywordInconclusive = "keyword check inconclusive"
	ReasonNoFilters           = "no filters configured"
	ReasonNoMatch             = "no matching condition"
)
