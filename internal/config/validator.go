package config

import (
	"fmt"
	"net/url"
	"strings"

	"callrelay/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateTarget(cfg.Target); err != nil {
		errors = append(errors, err)
	}

	if err := validateDelivery(cfg.Delivery); err != nil {
		errors = append(errors, err)
	}

	if err := validateBridge(cfg.Bridge); err != nil {
		errors = append(errors, err)
	}

	if err := validateIngress(cfg.Ingress); err != nil {
		errors = append(errors, err)
	}

	if err := validateCircuitBreaker(cfg.CircuitBreaker); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	}

	switch cfg.Type {
	case constants.BrokerTypeMQTT:
		return validateMQTT(cfg.MQTT)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: mqtt)", cfg.Type),
		}
	}
}

func validateMQTT(cfg MQTTConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "broker.mqtt.host",
			Message: "MQTT host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "broker.mqtt.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.Topic == "" {
		return &ValidationError{
			Field:   "broker.mqtt.topic",
			Message: "work topic is required",
		}
	}

	if cfg.RetrySubscribeTopic == "" {
		return &ValidationError{
			Field:   "broker.mqtt.retry_subscribe_topic",
			Message: "retry subscribe topic is required",
		}
	}

	if cfg.QoS < 0 || cfg.QoS > 2 {
		return &ValidationError{
			Field:   "broker.mqtt.qos",
			Message: fmt.Sprintf("qos must be 0, 1 or 2, got %d", cfg.QoS),
		}
	}

	if cfg.KeepAlive == 0 {
		return &ValidationError{
			Field:   "broker.mqtt.keep_alive",
			Message: "keep alive must be positive",
		}
	}

	if cfg.ConnectTimeout <= 0 {
		return &ValidationError{
			Field:   "broker.mqtt.connect_timeout",
			Message: "connect timeout must be positive",
		}
	}

	return nil
}

func validateTarget(cfg TargetConfig) error {
	if cfg.URL == "" {
		return &ValidationError{
			Field:   "target.url",
			Message: "target URL is required",
		}
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return &ValidationError{
			Field:   "target.url",
			Message: fmt.Sprintf("target URL is not parseable: %v", err),
		}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{
			Field:   "target.url",
			Message: fmt.Sprintf("target URL scheme must be http or https, got %q", u.Scheme),
		}
	}

	if u.Hostname() == "" {
		return &ValidationError{
			Field:   "target.url",
			Message: "target URL must contain a host",
		}
	}

	return nil
}

func validateDelivery(cfg DeliveryConfig) error {
	if cfg.RequestTimeout <= 0 {
		return &ValidationError{
			Field:   "delivery.request_timeout",
			Message: "request timeout must be positive",
		}
	}

	if cfg.MaxKeepAliveConns < 0 {
		return &ValidationError{
			Field:   "delivery.max_keepalive_connections",
			Message: "max keepalive connections must be non-negative",
		}
	}

	if cfg.KeepAliveExpiry < 0 {
		return &ValidationError{
			Field:   "delivery.keepalive_expiry",
			Message: "keepalive expiry must be non-negative",
		}
	}

	return nil
}

func validateBridge(cfg BridgeConfig) error {
	if cfg.RetryCooldown < 0 {
		return &ValidationError{
			Field:   "bridge.retry_cooldown",
			Message: "retry cooldown must be non-negative",
		}
	}

	if cfg.QueueSize < 1 {
		return &ValidationError{
			Field:   "bridge.queue_size",
			Message: "queue size must be positive",
		}
	}

	return validateRetry("bridge.republish", cfg.Republish)
}

func validateRetry(field string, cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   field + ".max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 {
		return &ValidationError{
			Field:   field + ".initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier <= 0 {
		return &ValidationError{
			Field:   field + ".multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateIngress(cfg IngressConfig) error {
	switch cfg.ForwardMode {
	case constants.ForwardModeMQTT, constants.ForwardModeHTTP:
	default:
		return &ValidationError{
			Field:   "ingress.forward_mode",
			Message: fmt.Sprintf("unknown forward mode: %s (supported: mqtt, http)", cfg.ForwardMode),
		}
	}

	if strings.ContainsAny(cfg.PublishTopic, "+#") {
		return &ValidationError{
			Field:   "ingress.publish_topic",
			Message: "publish topic must not contain wildcards",
		}
	}

	if cfg.RPSWindow <= 0 {
		return &ValidationError{
			Field:   "ingress.rps_window",
			Message: "rps window must be positive",
		}
	}

	if cfg.RPSReportInterval <= 0 {
		return &ValidationError{
			Field:   "ingress.rps_report_interval",
			Message: "rps report interval must be positive",
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RPS <= 0 {
			return &ValidationError{
				Field:   "ingress.rate_limit.rps",
				Message: "rps must be positive when rate limiting is enabled",
			}
		}
		if cfg.RateLimit.Burst < 1 {
			return &ValidationError{
				Field:   "ingress.rate_limit.burst",
				Message: "burst must be positive when rate limiting is enabled",
			}
		}
	}

	return nil
}

func validateCircuitBreaker(cfg CircuitBreakerConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.MaxRequests == 0 {
		return &ValidationError{
			Field:   "circuit_breaker.max_requests",
			Message: "max_requests must be positive",
		}
	}

	if cfg.Interval <= 0 {
		return &ValidationError{
			Field:   "circuit_breaker.interval",
			Message: "interval must be positive",
		}
	}

	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "circuit_breaker.timeout",
			Message: "timeout must be positive",
		}
	}

	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		return &ValidationError{
			Field:   "circuit_breaker.failure_ratio",
			Message: fmt.Sprintf("failure_ratio must be in (0, 1], got %v", cfg.FailureRatio),
		}
	}

	if cfg.MinRequests == 0 {
		return &ValidationError{
			Field:   "circuit_breaker.min_requests",
			Message: "min_requests must be positive",
		}
	}

	return nil
}
