package config_handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/logger"
	"gatekeeper/pkg/models"
)

type recordingInvalidator struct {
	groups []string
}

func (r *recordingInvalidator) Invalidate(groupID string) {
	r.groups = append(r.groups, groupID)
}

type staticCounter struct {
	count int
	err   error
}

func (c staticCounter) CountEnabled(context.Context) (int, error) {
	return c.count, c.err
}

func ruleEvent(groupID string) models.EventEnvelope {
	return models.EventEnvelope{
		ID:        "evt-1",
		Source:    "management-service",
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"event_type": models.EventTypeRuleUpdated,
			"group_id":   groupID,
			"action":     models.ActionUpdate,
			"changed_by": "operator-1",
		},
	}
}

func TestRuleEventInvalidatesGroupCache(t *testing.T) {
	invalidator := &recordingInvalidator{}
	handler := NewHandler(invalidator, logger.NopLogger())

	require.NoError(t, handler.HandleConfigUpdateEvent(context.Background(), ruleEvent("g1")))
	assert.Equal(t, []string{"g1"}, invalidator.groups)
}

func TestRuleEventRecountsActiveRules(t *testing.T) {
	var observed int
	handler := NewHandler(&recordingInvalidator{}, logger.NopLogger()).
		WithRuleCounter(staticCounter{count: 7}, func(count int) { observed = count })

	require.NoError(t, handler.HandleConfigUpdateEvent(context.Background(), ruleEvent("g1")))
	assert.Equal(t, 7, observed)
}

func TestListEventLeavesRuleCacheAlone(t *testing.T) {
	invalidator := &recordingInvalidator{}
	handler := NewHandler(invalidator, logger.NopLogger())

	event := ruleEvent("g1")
	event.Payload["event_type"] = models.EventTypeListUpdated

	require.NoError(t, handler.HandleConfigUpdateEvent(context.Background(), event))
	assert.Empty(t, invalidator.groups)
}

func TestUnknownOrMissingEventTypeIsIgnored(t *testing.T) {
	invalidator := &recordingInvalidator{}
	handler := NewHandler(invalidator, logger.NopLogger())

	event := ruleEvent("g1")
	event.Payload["event_type"] = "something_else"
	require.NoError(t, handler.HandleConfigUpdateEvent(context.Background(), event))

	delete(event.Payload, "event_type")
	require.NoError(t, handler.HandleConfigUpdateEvent(context.Background(), event))

	assert.Empty(t, invalidator.groups)
}
