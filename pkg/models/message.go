package models

import "time"

// EventEnvelope is the wire shape shared by every topic: join-request events
// from the platform bridge, moderation actions back to it, and config-update
// notifications between services. The payload keeps the bridge's original
// field names; normalization happens in the moderation package.
type EventEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID  string        `json:"trace_id,omitempty"`
	Decision *DecisionInfo `json:"decision,omitempty"`
	DLQ      *DLQInfo      `json:"dlq,omitempty"`
}

// DLQInfo records why an event ended up on the dead-letter topic.
type DLQInfo struct {
	Reason      string    `json:"reason"`
	SourceTopic string    `json:"source_topic"`
	FailedAt    time.Time `json:"failed_at"`
}

// DecisionInfo is stamped onto the envelope once the engine has produced a
// verdict, so downstream consumers can tell why an action was taken.
type DecisionInfo struct {
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason"`
	RuleID    string    `json:"rule_id,omitempty"`
	RuleName  string    `json:"rule_name,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

func (msg *EventEnvelope) GetPayloadField(name string) (interface{}, bool) {
	if msg.Payload == nil {
		return nil, false
	}

	value, ok := msg.Payload[name]
	return value, ok
}

func (msg *EventEnvelope) SetPayloadField(name string, value interface{}) {
	if msg.Payload == nil {
		msg.Payload = make(map[string]interface{})
	}

	msg.Payload[name] = value
}
