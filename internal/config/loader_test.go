package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callrelay/internal/constants"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, constants.BrokerTypeMQTT, cfg.Broker.Type)
	assert.Equal(t, "localhost", cfg.Broker.MQTT.Host)
	assert.Equal(t, constants.DefaultMQTTPort, cfg.Broker.MQTT.Port)
	assert.Equal(t, constants.DefaultWorkTopic, cfg.Broker.MQTT.Topic)
	assert.Equal(t, constants.DefaultRetrySubscribeTopic, cfg.Broker.MQTT.RetrySubscribeTopic)
	assert.Equal(t, constants.DefaultMQTTQoS, cfg.Broker.MQTT.QoS)
	assert.Equal(t, constants.ConnectTimeout, cfg.Broker.MQTT.ConnectTimeout)

	assert.Equal(t, "http://localhost:8080/ID_REQ_KC_STORE7D3BPACKET", cfg.Target.URL)
	assert.False(t, cfg.Target.SkipDNSCache)

	assert.False(t, cfg.Delivery.UseHTTP2)
	assert.Equal(t, constants.DefaultRequestTimeout, cfg.Delivery.RequestTimeout)
	assert.Equal(t, constants.DefaultKeepAliveConns, cfg.Delivery.MaxKeepAliveConns)

	assert.Equal(t, constants.DefaultRetryCooldown, cfg.Bridge.RetryCooldown)
	assert.Equal(t, constants.DefaultQueueSize, cfg.Bridge.QueueSize)
	assert.Equal(t, 3, cfg.Bridge.Republish.MaxAttempts)

	assert.Equal(t, constants.ForwardModeMQTT, cfg.Ingress.ForwardMode)
	assert.Equal(t, 10*time.Second, cfg.Ingress.RPSWindow)
	assert.False(t, cfg.Ingress.RateLimit.Enabled)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.False(t, cfg.CircuitBreaker.Enabled)
}

func TestLoadConfigLegacyEnvOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "legacy_proxy_9")
	t.Setenv("MQTT_HOST", "broker.internal")
	t.Setenv("MQTT_PORT", "2883")
	t.Setenv("MQTT_TOPIC", "$share/legacy_proxy/custom/message")
	t.Setenv("MQTT_QOS", "1")
	t.Setenv("HTTP_HOST", "127.0.0.1")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SKIP_DNS_CACHE", "true")
	t.Setenv("USE_HTTP_2", "1")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "legacy_proxy_9", cfg.App.ServiceName)
	assert.Equal(t, "broker.internal", cfg.Broker.MQTT.Host)
	assert.Equal(t, 2883, cfg.Broker.MQTT.Port)
	assert.Equal(t, "$share/legacy_proxy/custom/message", cfg.Broker.MQTT.Topic)
	assert.Equal(t, 1, cfg.Broker.MQTT.QoS)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Target.SkipDNSCache)
	assert.True(t, cfg.Delivery.UseHTTP2)
}

func TestLoadConfigLegacyBrokerAlias(t *testing.T) {
	t.Setenv("MQTT_BROKER", "alias.internal")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "alias.internal", cfg.Broker.MQTT.Host)
}

func TestLoadConfigLegacyHostWinsOverAlias(t *testing.T) {
	t.Setenv("MQTT_HOST", "primary.internal")
	t.Setenv("MQTT_BROKER", "alias.internal")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "primary.internal", cfg.Broker.MQTT.Host)
}

func TestLoadConfigCanonicalEnv(t *testing.T) {
	t.Setenv("TARGET_URL", "https://legacy.example.com/ingest")
	t.Setenv("BROKER_MQTT_RETRY_SUBSCRIBE_TOPIC", "$share/legacy_proxy/+/redo/message")
	t.Setenv("LOGGING_LEVEL", "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "https://legacy.example.com/ingest", cfg.Target.URL)
	assert.Equal(t, "$share/legacy_proxy/+/redo/message", cfg.Broker.MQTT.RetrySubscribeTopic)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigInvalidNumericEnv(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "mqtt port", key: "MQTT_PORT", value: "not-a-port"},
		{name: "http port", key: "HTTP_PORT", value: "8O8O"},
		{name: "qos", key: "MQTT_QOS", value: "two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig("")
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	content := `
app:
  service_name: from_file
broker:
  mqtt:
    host: file.internal
    qos: 0
target:
  url: http://file.internal:9000/path
bridge:
  queue_size: 64
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from_file", cfg.App.ServiceName)
	assert.Equal(t, "file.internal", cfg.Broker.MQTT.Host)
	assert.Equal(t, 0, cfg.Broker.MQTT.QoS)
	assert.Equal(t, "http://file.internal:9000/path", cfg.Target.URL)
	assert.Equal(t, 64, cfg.Bridge.QueueSize)
	// Untouched sections keep their defaults.
	assert.Equal(t, constants.DefaultMQTTPort, cfg.Broker.MQTT.Port)
}

func TestLoadConfigEnvWinsOverFile(t *testing.T) {
	content := `
broker:
  mqtt:
    host: file.internal
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("MQTT_HOST", "env.internal")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env.internal", cfg.Broker.MQTT.Host)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigValidationFailure(t *testing.T) {
	t.Setenv("MQTT_QOS", "3")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: "1", want: true},
		{value: "true", want: true},
		{value: "TRUE", want: true},
		{value: "yes", want: true},
		{value: "Yes", want: true},
		{value: "0", want: false},
		{value: "false", want: false},
		{value: "no", want: false},
		{value: "on", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, truthy(tt.value))
		})
	}
}
