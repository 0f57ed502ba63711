package config

import (
	"time"
)

type Config struct {
	App            AppConfig
	Server         ServerConfig
	Broker         BrokerConfig
	Target         TargetConfig
	Delivery       DeliveryConfig
	Bridge         BridgeConfig
	Ingress        IngressConfig
	Logging        LoggingConfig
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type AppConfig struct {
	// ServiceName feeds the retry topic derivation, so two bridge
	// deployments with different names republish to different topics.
	ServiceName string `mapstructure:"service_name"`
}

type ServerConfig struct {
	Host                string        `mapstructure:"host"`
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type BrokerConfig struct {
	Type string     `mapstructure:"type"`
	MQTT MQTTConfig `mapstructure:"mqtt"`
}

type MQTTConfig struct {
	Host                string        `mapstructure:"host"`
	Port                int           `mapstructure:"port"`
	Topic               string        `mapstructure:"topic"`
	RetrySubscribeTopic string        `mapstructure:"retry_subscribe_topic"`
	QoS                 int           `mapstructure:"qos"`
	KeepAlive           uint16        `mapstructure:"keep_alive"`
	SessionExpiry       uint32        `mapstructure:"session_expiry"`
	ReceiveMaximum      uint16        `mapstructure:"receive_maximum"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
}

type TargetConfig struct {
	URL          string `mapstructure:"url"`
	SkipDNSCache bool   `mapstructure:"skip_dns_cache"`
}

type DeliveryConfig struct {
	UseHTTP2          bool          `mapstructure:"use_http2"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MaxKeepAliveConns int           `mapstructure:"max_keepalive_connections"`
	KeepAliveExpiry   time.Duration `mapstructure:"keepalive_expiry"`
}

type BridgeConfig struct {
	RetryCooldown time.Duration `mapstructure:"retry_cooldown"`
	QueueSize     int           `mapstructure:"queue_size"`
	Republish     RetryConfig   `mapstructure:"republish"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type IngressConfig struct {
	ForwardMode       string          `mapstructure:"forward_mode"`
	PublishTopic      string          `mapstructure:"publish_topic"`
	RateLimit         RateLimitConfig `mapstructure:"rate_limit"`
	RPSWindow         time.Duration   `mapstructure:"rps_window"`
	RPSReportInterval time.Duration   `mapstructure:"rps_report_interval"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
