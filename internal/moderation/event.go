package moderation

import (
	"fmt"
	"strconv"

	"gatekeeper/internal/engine"
	"gatekeeper/pkg/models"
)

// JoinRequest is a normalized join-request event. Flag is the platform's
// request handle, needed for the bot-level approve/reject call shape.
type JoinRequest struct {
	RequestID string
	GroupID   string
	UserID    string
	Message   string
	Flag      string
}

// Field-name aliases accumulated across platform bridge versions. Order
// matters: the newest name wins.
var (
	groupAliases   = []string{"guildId", "groupId", "group_id"}
	userAliases    = []string{"userId", "user_id"}
	messageAliases = []string{"content", "comment", "message"}
	flagAliases    = []string{"flag", "messageId", "message_id"}
)

// NormalizeEvent maps the raw envelope payload onto a JoinRequest. Numeric
// identifiers are accepted and stringified, since some bridges send them as
// JSON numbers.
func NormalizeEvent(env *models.EventEnvelope) JoinRequest {
	return JoinRequest{
		RequestID: env.ID,
		GroupID:   firstPayloadString(env, groupAliases),
		UserID:    firstPayloadString(env, userAliases),
		Message:   firstPayloadString(env, messageAliases),
		Flag:      firstPayloadString(env, flagAliases),
	}
}

// Context converts the request into the engine's evaluation input.
func (r JoinRequest) Context() engine.RequestContext {
	return engine.RequestContext{
		GroupID: r.GroupID,
		UserID:  r.UserID,
		Message: r.Message,
	}
}

// HasIdentifiers reports whether the request carries enough to act on.
func (r JoinRequest) HasIdentifiers() bool {
	return r.GroupID != "" && r.UserID != ""
}

func firstPayloadString(env *models.EventEnvelope, aliases []string) string {
	for _, alias := range aliases {
		value, ok := env.GetPayloadField(alias)
		if !ok {
			continue
		}
		if s := stringify(value); s != "" {
			return s
		}
	}
	return ""
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; identifiers are integral.
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
