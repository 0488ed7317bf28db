package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultJoinRequestTopic = "join_requests"
	DefaultActionTopic      = "moderation_actions"
)

const (
	ListKeyPrefixWhitelist        = "gatekeeper:wl:"
	ListKeyPrefixNameWhitelist    = "gatekeeper:nwl:"
	ListKeyPrefixApprovalKeyword  = "gatekeeper:akw:"
	ListKeyPrefixRejectionKeyword = "gatekeeper:rkw:"
)

const (
	ShutdownTimeout  = 5 * time.Second
	StoreCallTimeout = 3 * time.Second
)

const (
	DefaultLimit       = 100
	MaxLimit           = 1000
	DefaultTruncateLen = 100
)

const (
	DefaultMongoDBName = "gatekeeper"
	DecisionCollection = "moderation_decisions"
)

const (
	KeywordTypeApproval  = "approval"
	KeywordTypeRejection = "rejection"
)
