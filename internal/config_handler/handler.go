// Package config_handler consumes config-update events published by the
// management service and keeps the moderation pipeline's cached state in step
// with them.
package config_handler

import (
	"context"
	"encoding/json"

	"gatekeeper/internal/logger"
	"gatekeeper/pkg/models"
)

// RuleCacheInvalidator drops cached rule lists. An empty group id means the
// whole cache.
type RuleCacheInvalidator interface {
	Invalidate(groupID string)
}

// RuleCounter recounts enabled rules after a change; the handler feeds the
// result to the active-rules gauge.
type RuleCounter interface {
	CountEnabled(ctx context.Context) (int, error)
}

type Handler struct {
	invalidator RuleCacheInvalidator
	counter     RuleCounter
	onCount     func(count int)
	logger      logger.Logger
}

func NewHandler(invalidator RuleCacheInvalidator, log logger.Logger) *Handler {
	return &Handler{
		invalidator: invalidator,
		logger:      log,
	}
}

// WithRuleCounter enables recounting after rule events. onCount receives the
// fresh total, typically metrics.SetActiveRules.
func (h *Handler) WithRuleCounter(counter RuleCounter, onCount func(count int)) *Handler {
	h.counter = counter
	h.onCount = onCount
	return h
}

// HandleConfigUpdateEvent reacts to one event from the config-update topic.
// Unknown event types are ignored so new producers can roll out first.
func (h *Handler) HandleConfigUpdateEvent(ctx context.Context, envelope models.EventEnvelope) error {
	eventJSON, err := json.Marshal(envelope.Payload)
	if err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to marshal config event payload", "error", err, "id", envelope.ID)
		return err
	}

	var event models.ConfigUpdateEvent
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to unmarshal config event", "error", err, "id", envelope.ID)
		return err
	}

	if event.EventType == "" {
		h.logger.WarnwCtx(ctx, "Config event missing event_type", "id", envelope.ID)
		return nil
	}

	h.logger.InfowCtx(ctx, "Received config update event",
		"event_type", event.EventType,
		"action", event.Action,
		"group_id", event.GroupID,
		"rule_id", event.RuleID,
		"changed_by", event.ChangedBy,
	)

	switch event.EventType {
	case models.EventTypeRuleUpdated:
		if h.invalidator != nil {
			h.invalidator.Invalidate(event.GroupID)
		}
		h.recount(ctx)
	case models.EventTypeListUpdated, models.EventTypeKeywordUpdated, models.EventTypeConfigUpdated:
		// Lists, keywords and group config are read from their stores on
		// every request; nothing is cached on this side yet.
	default:
		h.logger.DebugwCtx(ctx, "Ignoring unknown config event type", "event_type", event.EventType)
	}

	return nil
}

func (h *Handler) recount(ctx context.Context) {
	if h.counter == nil || h.onCount == nil {
		return
	}
	count, err := h.counter.CountEnabled(ctx)
	if err != nil {
		h.logger.WarnwCtx(ctx, "Failed to recount enabled rules", "error", err)
		return
	}
	h.onCount(count)
}
