package audit

import (
	"context"
	"time"

	"gatekeeper/internal/engine"
)

// Decision is one moderation verdict as persisted for operators.
type Decision struct {
	RequestID        string    `bson:"request_id" json:"request_id"`
	GroupID          string    `bson:"group_id" json:"group_id"`
	UserID           string    `bson:"user_id" json:"user_id"`
	Message          string    `bson:"message,omitempty" json:"message,omitempty"`
	Approved         bool      `bson:"approved" json:"approved"`
	Reason           string    `bson:"reason" json:"reason"`
	RejectionMessage string    `bson:"rejection_message,omitempty" json:"rejection_message,omitempty"`
	RuleID           string    `bson:"rule_id,omitempty" json:"rule_id,omitempty"`
	RuleName         string    `bson:"rule_name,omitempty" json:"rule_name,omitempty"`
	DecidedAt        time.Time `bson:"decided_at" json:"decided_at"`
}

// DecisionFilter narrows ListDecisions. Zero values mean "any".
type DecisionFilter struct {
	GroupID  string
	UserID   string
	Approved *bool
	Limit    int64
}

// Recorder persists decisions for later review.
type Recorder interface {
	RecordDecision(ctx context.Context, decision Decision) error
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]Decision, error)
}

// NewDecision builds the audit record for a verdict.
func NewDecision(requestID string, reqCtx engine.RequestContext, result engine.ApprovalResult) Decision {
	return Decision{
		RequestID:        requestID,
		GroupID:          reqCtx.GroupID,
		UserID:           reqCtx.UserID,
		Message:          reqCtx.Message,
		Approved:         result.Approved,
		Reason:           result.Reason,
		RejectionMessage: result.RejectionMessage,
		RuleID:           result.RuleID,
		RuleName:         result.RuleName,
		DecidedAt:        time.Now().UTC(),
	}
}
