package moderation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gatekeeper/internal/broker"
	"gatekeeper/pkg/models"
)

// PlatformAdapter executes verdict side effects on the chat platform.
type PlatformAdapter interface {
	Approve(ctx context.Context, req JoinRequest) error
	Reject(ctx context.Context, req JoinRequest, message string) error
	SendMessage(ctx context.Context, groupID, text string) error
}

// ActionPublisher turns adapter calls into moderation-action events for the
// platform bridge to execute.
type ActionPublisher struct {
	producer broker.Producer
	topic    string
	source   string
}

func NewActionPublisher(producer broker.Producer, topic, source string) *ActionPublisher {
	return &ActionPublisher{producer: producer, topic: topic, source: source}
}

func (p *ActionPublisher) Approve(ctx context.Context, req JoinRequest) error {
	return p.publish(ctx, models.ModerationAction{
		Type:      models.ActionTypeApprove,
		GroupID:   req.GroupID,
		UserID:    req.UserID,
		Flag:      req.Flag,
		IssuedAt:  time.Now(),
		RequestID: req.RequestID,
	})
}

func (p *ActionPublisher) Reject(ctx context.Context, req JoinRequest, message string) error {
	return p.publish(ctx, models.ModerationAction{
		Type:      models.ActionTypeReject,
		GroupID:   req.GroupID,
		UserID:    req.UserID,
		Flag:      req.Flag,
		Message:   message,
		IssuedAt:  time.Now(),
		RequestID: req.RequestID,
	})
}

func (p *ActionPublisher) SendMessage(ctx context.Context, groupID, text string) error {
	return p.publish(ctx, models.ModerationAction{
		Type:     models.ActionTypeSendMessage,
		GroupID:  groupID,
		Message:  text,
		IssuedAt: time.Now(),
	})
}

func (p *ActionPublisher) publish(ctx context.Context, action models.ModerationAction) error {
	event := models.EventEnvelope{
		ID:        uuid.New().String(),
		Source:    p.source,
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"type":       action.Type,
			"group_id":   action.GroupID,
			"user_id":    action.UserID,
			"flag":       action.Flag,
			"message":    action.Message,
			"reason":     action.Reason,
			"issued_at":  action.IssuedAt,
			"request_id": action.RequestID,
		},
	}
	return p.producer.Publish(ctx, p.topic, event)
}
