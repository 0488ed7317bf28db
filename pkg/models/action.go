package models

import "time"

const (
	ActionTypeApprove     = "approve"
	ActionTypeReject      = "reject"
	ActionTypeSendMessage = "send_message"
)

// ModerationAction is what the platform bridge executes. Flag identifies the
// pending request on bridges that use a bot-level call; bridges holding an
// open session resolve the request by the group/user pair instead. Both
// identifiers travel so either call shape works.
type ModerationAction struct {
	Type      string    `json:"type"`
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id,omitempty"`
	Flag      string    `json:"flag,omitempty"`
	Message   string    `json:"message,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	RequestID string    `json:"request_id,omitempty"`
}
