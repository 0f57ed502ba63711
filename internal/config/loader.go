package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"callrelay/internal/constants"
)

// LoadConfig reads configuration from an optional YAML file, environment
// variables, and built-in defaults, in ascending priority. An empty
// configFile means environment-only operation, which is how the original
// deployments run.
func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", "15s")
	viper.SetDefault("server.write_timeout_seconds", "15s")

	viper.SetDefault("broker.type", constants.BrokerTypeMQTT)
	viper.SetDefault("broker.mqtt.host", "localhost")
	viper.SetDefault("broker.mqtt.port", constants.DefaultMQTTPort)
	viper.SetDefault("broker.mqtt.topic", constants.DefaultWorkTopic)
	viper.SetDefault("broker.mqtt.retry_subscribe_topic", constants.DefaultRetrySubscribeTopic)
	viper.SetDefault("broker.mqtt.qos", constants.DefaultMQTTQoS)
	viper.SetDefault("broker.mqtt.keep_alive", constants.DefaultKeepAlive)
	viper.SetDefault("broker.mqtt.session_expiry", constants.DefaultSessionExpiry)
	viper.SetDefault("broker.mqtt.receive_maximum", constants.DefaultReceiveMaximum)
	viper.SetDefault("broker.mqtt.connect_timeout", constants.ConnectTimeout.String())

	viper.SetDefault("target.url", "http://localhost:8080/ID_REQ_KC_STORE7D3BPACKET")
	viper.SetDefault("target.skip_dns_cache", false)

	viper.SetDefault("delivery.use_http2", false)
	viper.SetDefault("delivery.request_timeout", constants.DefaultRequestTimeout.String())
	viper.SetDefault("delivery.max_keepalive_connections", constants.DefaultKeepAliveConns)
	viper.SetDefault("delivery.keepalive_expiry", constants.DefaultKeepAliveExpiry.String())

	viper.SetDefault("bridge.retry_cooldown", constants.DefaultRetryCooldown.String())
	viper.SetDefault("bridge.queue_size", constants.DefaultQueueSize)
	viper.SetDefault("bridge.republish.max_attempts", 3)
	viper.SetDefault("bridge.republish.initial_interval", "100ms")
	viper.SetDefault("bridge.republish.max_interval", "1s")
	viper.SetDefault("bridge.republish.multiplier", 2.0)
	viper.SetDefault("bridge.republish.max_elapsed_time", "0s")

	viper.SetDefault("ingress.forward_mode", constants.ForwardModeMQTT)
	viper.SetDefault("ingress.publish_topic", "")
	viper.SetDefault("ingress.rps_window", "10s")
	viper.SetDefault("ingress.rps_report_interval", "10s")
	viper.SetDefault("ingress.rate_limit.enabled", false)
	viper.SetDefault("ingress.rate_limit.rps", 10.0)
	viper.SetDefault("ingress.rate_limit.burst", 20)
	viper.SetDefault("ingress.rate_limit.cleanup_interval", 300)
	viper.SetDefault("ingress.rate_limit.max_age", 600)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("circuit_breaker.enabled", false)
	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "60s")
	viper.SetDefault("circuit_breaker.failure_ratio", 0.5)
	viper.SetDefault("circuit_breaker.min_requests", 3)
}

func bindEnvVariables() {
	viper.BindEnv("app.service_name", "APP_SERVICE_NAME")

	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("broker.type", "BROKER_TYPE")
	viper.BindEnv("broker.mqtt.host", "BROKER_MQTT_HOST")
	viper.BindEnv("broker.mqtt.port", "BROKER_MQTT_PORT")
	viper.BindEnv("broker.mqtt.topic", "BROKER_MQTT_TOPIC")
	viper.BindEnv("broker.mqtt.retry_subscribe_topic", "BROKER_MQTT_RETRY_SUBSCRIBE_TOPIC")
	viper.BindEnv("broker.mqtt.qos", "BROKER_MQTT_QOS")
	viper.BindEnv("broker.mqtt.keep_alive", "BROKER_MQTT_KEEP_ALIVE")
	viper.BindEnv("broker.mqtt.session_expiry", "BROKER_MQTT_SESSION_EXPIRY")
	viper.BindEnv("broker.mqtt.receive_maximum", "BROKER_MQTT_RECEIVE_MAXIMUM")

	viper.BindEnv("target.url", "TARGET_URL")
	viper.BindEnv("target.skip_dns_cache", "TARGET_SKIP_DNS_CACHE")

	viper.BindEnv("delivery.use_http2", "DELIVERY_USE_HTTP2")
	viper.BindEnv("delivery.request_timeout", "DELIVERY_REQUEST_TIMEOUT")

	viper.BindEnv("bridge.retry_cooldown", "BRIDGE_RETRY_COOLDOWN")
	viper.BindEnv("bridge.queue_size", "BRIDGE_QUEUE_SIZE")

	viper.BindEnv("ingress.forward_mode", "INGRESS_FORWARD_MODE")
	viper.BindEnv("ingress.publish_topic", "INGRESS_PUBLISH_TOPIC")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")
}

// applyEnvOverrides honors the short environment names the original
// deployments were configured with. They win over both file values and the
// canonical names above.
func applyEnvOverrides(cfg *Config) error {
	if v := viper.GetString("SERVICE_NAME"); v != "" {
		cfg.App.ServiceName = v
	}

	host := viper.GetString("MQTT_HOST")
	if host == "" {
		host = viper.GetString("MQTT_BROKER")
	}
	if host != "" {
		cfg.Broker.MQTT.Host = host
	}

	if v := viper.GetString("MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MQTT_PORT %q: %w", v, err)
		}
		cfg.Broker.MQTT.Port = port
	}

	if v := viper.GetString("MQTT_TOPIC"); v != "" {
		cfg.Broker.MQTT.Topic = v
	}

	if v := viper.GetString("MQTT_QOS"); v != "" {
		qos, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MQTT_QOS %q: %w", v, err)
		}
		cfg.Broker.MQTT.QoS = qos
	}

	if v := viper.GetString("HTTP_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := viper.GetString("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}

	if v := viper.GetString("SKIP_DNS_CACHE"); v != "" {
		cfg.Target.SkipDNSCache = truthy(v)
	}

	if v := viper.GetString("USE_HTTP_2"); v != "" {
		cfg.Delivery.UseHTTP2 = truthy(v)
	}

	return nil
}

// truthy matches the switch convention of the original deployments, where
// "1", "true" and "yes" enable a flag and anything else disables it.
func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}
