package management

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gatekeeper/internal/broker"
	"gatekeeper/pkg/models"
)

// ConfigEventProducer announces management mutations on the config-update
// topic so the moderation service can invalidate its per-group rule cache.
// A nil producer or empty topic disables publishing.
type ConfigEventProducer struct {
	producer broker.Producer
	topic    string
}

func NewConfigEventProducer(producer broker.Producer, topic string) *ConfigEventProducer {
	return &ConfigEventProducer{
		producer: producer,
		topic:    topic,
	}
}

func (p *ConfigEventProducer) PublishRuleEvent(ctx context.Context, action, groupID, ruleID, changedBy string) error {
	return p.publishEvent(ctx, models.ConfigUpdateEvent{
		EventType: models.EventTypeRuleUpdated,
		GroupID:   groupID,
		RuleID:    ruleID,
		Action:    action,
		Timestamp: time.Now(),
		ChangedBy: changedBy,
	})
}

func (p *ConfigEventProducer) PublishListEvent(ctx context.Context, action, groupID, kind, changedBy string) error {
	return p.publishEvent(ctx, models.ConfigUpdateEvent{
		EventType: models.EventTypeListUpdated,
		GroupID:   groupID,
		Action:    action,
		Timestamp: time.Now(),
		ChangedBy: changedBy,
		Metadata:  map[string]interface{}{"kind": kind},
	})
}

func (p *ConfigEventProducer) PublishKeywordEvent(ctx context.Context, action, groupID, kind, changedBy string) error {
	return p.publishEvent(ctx, models.ConfigUpdateEvent{
		EventType: models.EventTypeKeywordUpdated,
		GroupID:   groupID,
		Action:    action,
		Timestamp: time.Now(),
		ChangedBy: changedBy,
		Metadata:  map[string]interface{}{"kind": kind},
	})
}

func (p *ConfigEventProducer) PublishGroupConfigEvent(ctx context.Context, groupID, changedBy string) error {
	return p.publishEvent(ctx, models.ConfigUpdateEvent{
		EventType: models.EventTypeConfigUpdated,
		GroupID:   groupID,
		Action:    models.ActionUpdate,
		Timestamp: time.Now(),
		ChangedBy: changedBy,
	})
}

func (p *ConfigEventProducer) publishEvent(ctx context.Context, event models.ConfigUpdateEvent) error {
	if p.producer == nil || p.topic == "" {
		return nil
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal config event: %w", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(eventJSON, &payload); err != nil {
		return fmt.Errorf("failed to decode config event: %w", err)
	}

	envelope := models.EventEnvelope{
		ID:        uuid.New().String(),
		Source:    "management-service",
		Timestamp: time.Now(),
		Payload:   payload,
		Metadata:  models.Metadata{},
	}

	return p.producer.Publish(ctx, p.topic, envelope)
}
