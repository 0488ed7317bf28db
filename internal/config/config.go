package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Moderation     ModerationConfig
	Management     ManagementConfig
	CircuitBreaker CircuitBreakerConfig
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres       PostgresConfig
	Redis          RedisConfig
	MongoDB        MongoDBConfig
	Enabled        bool   `mapstructure:"enabled"`
	RunMigrations  bool   `mapstructure:"run_migrations"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers           []string    `mapstructure:"brokers"`
	GroupID           string      `mapstructure:"group_id"`
	InputTopic        string      `mapstructure:"input_topic"`
	ActionTopic       string      `mapstructure:"action_topic"`
	ConfigUpdateTopic string      `mapstructure:"config_update_topic"`
	DLQTopic          string      `mapstructure:"dlq_topic"`
	Retry             RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ModerationConfig is the static half of the effective per-group
// configuration. Persisted per-group overrides from the config store are
// overlaid on top of it, one top-level key at a time, for every request.
type ModerationConfig struct {
	AutoProcess            bool   `mapstructure:"auto_process" json:"autoProcess"`
	UseWhitelist           bool   `mapstructure:"use_whitelist" json:"useWhitelist"`
	AutoRejectNonWhitelist bool   `mapstructure:"auto_reject_non_whitelist" json:"autoRejectNonWhitelist"`
	UseKeywordFilter       bool   `mapstructure:"use_keyword_filter" json:"useKeywordFilter"`
	UseNameValidation      bool   `mapstructure:"use_name_validation" json:"useNameValidation"`
	EnableWelcome          bool   `mapstructure:"enable_welcome" json:"enableWelcome"`
	WelcomeMessage         string `mapstructure:"welcome_message" json:"welcomeMessage"`
	WelcomeDelaySeconds    int    `mapstructure:"welcome_delay_seconds" json:"welcomeDelaySeconds"`
	RejectionMessage       string `mapstructure:"rejection_message" json:"rejectionMessage"`
	NameValidationMessage  string `mapstructure:"name_validation_message" json:"nameValidationMessage"`

	Whitelist         []string `mapstructure:"whitelist" json:"whitelist"`
	NameWhitelist     []string `mapstructure:"name_whitelist" json:"nameWhitelist"`
	ApprovalKeywords  []string `mapstructure:"approval_keywords" json:"approvalKeywords"`
	RejectionKeywords []string `mapstructure:"rejection_keywords" json:"rejectionKeywords"`
}

type ManagementConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

// DefaultModeration mirrors the stock plugin defaults: welcome on, automatic
// processing off until an operator enables it.
func DefaultModeration() ModerationConfig {
	return ModerationConfig{
		AutoProcess:           false,
		EnableWelcome:         true,
		WelcomeMessage:        "欢迎新朋友加入！请仔细阅读群公告。",
		WelcomeDelaySeconds:   3,
		RejectionMessage:      "很抱歉，您的入群申请不符合要求。",
		NameValidationMessage: "申请被拒绝：请在申请消息中注明真实姓名",
	}
}
