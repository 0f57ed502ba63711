package constants

import "time"

const (
	DefaultWorkTopic           = "$share/legacy_proxy/+/message"
	DefaultRetrySubscribeTopic = "$share/legacy_proxy/+/retry/message"
	WorkTopicSuffix            = "/message"
	RetryTopicSuffix           = "/retry/message"
)

const (
	DefaultMQTTPort       = 1883
	DefaultMQTTQoS        = 2
	DefaultKeepAlive      = 30
	DefaultSessionExpiry  = 3600
	DefaultReceiveMaximum = 16
	ConnectTimeout        = 30 * time.Second
)

const (
	DefaultRequestTimeout  = 60 * time.Second
	DefaultKeepAliveConns  = 100
	DefaultKeepAliveExpiry = 30 * time.Second
)

const (
	DefaultRetryCooldown = 1 * time.Second
	DefaultQueueSize     = 32
)

const (
	RequestIDHeader = "Request-Id"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultTruncateLen = 100
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	BrokerTypeMQTT = "mqtt"
)

const (
	ForwardModeMQTT = "mqtt"
	ForwardModeHTTP = "http"
)

// WorkPublishTopic is the topic an ingress service publishes inbound
// messages to. It falls inside the work subscription filter.
func WorkPublishTopic(serviceName string) string {
	return serviceName + WorkTopicSuffix
}

// RetryPublishTopic is the topic a bridge republishes failed deliveries to.
// It stays inside the shared-subscription filter so any group member can
// pick the copy up again.
func RetryPublishTopic(serviceName string) string {
	return serviceName + RetryTopicSuffix
}
