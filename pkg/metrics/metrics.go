package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	BridgeMessagesConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_messages_consumed_total",
			Help: "Total number of messages taken off the broker by the bridge (count)",
		},
		[]string{"topic"},
	)

	BridgeMessagesAckedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_messages_acked_total",
			Help: "Total number of messages acknowledged to the broker (count)",
		},
	)

	BridgeDecodeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_decode_failures_total",
			Help: "Total number of payloads dropped because they were not valid JSON text (count)",
		},
	)

	BridgeUnexpectedFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_unexpected_failures_total",
			Help: "Total number of messages dropped after an unexpected processing error (count)",
		},
	)

	BridgeRetryPublishesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_retry_publishes_total",
			Help: "Total number of failed deliveries republished to the retry topic (count)",
		},
	)

	BridgeRetryPublishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_retry_publish_failures_total",
			Help: "Total number of republish attempts that exhausted their retries (count)",
		},
	)

	BridgeRetryMode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_retry_mode",
			Help: "Whether the bridge is currently throttling after a downstream failure (0 or 1)",
		},
	)

	BridgeQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_queue_depth",
			Help: "Number of messages waiting for the processing loop (count)",
		},
	)

	BridgeProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_processing_duration_ms",
			Help:    "End to end handling duration per consumed message in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	DeliveryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_requests_total",
			Help: "Total number of forwarding requests to the downstream system (count)",
		},
		[]string{"status"},
	)

	DeliveryRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_request_duration_ms",
			Help:    "Duration of downstream forwarding requests in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"status"},
	)

	MQTTConnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mqtt_connects_total",
			Help: "Total number of successful broker connections, including reconnects (count)",
		},
	)

	MQTTConnectErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mqtt_connect_errors_total",
			Help: "Total number of failed broker connection attempts (count)",
		},
	)

	MQTTMessagesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_messages_published_total",
			Help: "Total number of messages published to the broker (count)",
		},
		[]string{"topic"},
	)

	MQTTPublishFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_publish_failures_total",
			Help: "Total number of publishes the broker did not accept (count)",
		},
		[]string{"topic"},
	)

	IngressRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingress_requests_total",
			Help: "Total number of notification requests received (count)",
		},
		[]string{"endpoint", "status"},
	)

	IngressRequestRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingress_request_rate",
			Help: "Requests per second over the rolling window (ratio)",
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

func RegisterBridgeMetrics() {
	prometheus.MustRegister(BridgeMessagesConsumedTotal)
	prometheus.MustRegister(BridgeMessagesAckedTotal)
	prometheus.MustRegister(BridgeDecodeFailuresTotal)
	prometheus.MustRegister(BridgeUnexpectedFailuresTotal)
	prometheus.MustRegister(BridgeRetryPublishesTotal)
	prometheus.MustRegister(BridgeRetryPublishFailuresTotal)
	prometheus.MustRegister(BridgeRetryMode)
	prometheus.MustRegister(BridgeQueueDepth)
	prometheus.MustRegister(BridgeProcessingDuration)
	prometheus.MustRegister(RetryAttemptsTotal)
}

func RegisterDeliveryMetrics() {
	prometheus.MustRegister(DeliveryRequestsTotal)
	prometheus.MustRegister(DeliveryRequestDuration)
}

func RegisterSessionMetrics() {
	prometheus.MustRegister(MQTTConnectsTotal)
	prometheus.MustRegister(MQTTConnectErrorsTotal)
	prometheus.MustRegister(MQTTMessagesPublishedTotal)
	prometheus.MustRegister(MQTTPublishFailuresTotal)
}

func RegisterIngressMetrics() {
	prometheus.MustRegister(IngressRequestsTotal)
	prometheus.MustRegister(IngressRequestRate)
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveBridgeProcessing(duration time.Duration, status string) {
	BridgeProcessingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveDeliveryRequest(duration time.Duration, status string) {
	DeliveryRequestsTotal.WithLabelValues(status).Inc()
	DeliveryRequestDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func SetRetryMode(on bool) {
	if on {
		BridgeRetryMode.Set(1)
	} else {
		BridgeRetryMode.Set(0)
	}
}

func SetBridgeQueueDepth(depth int) {
	BridgeQueueDepth.Set(float64(depth))
}

func IncMQTTPublished(topic string) {
	MQTTMessagesPublishedTotal.WithLabelValues(topic).Inc()
}

func IncMQTTPublishFailure(topic string) {
	MQTTPublishFailuresTotal.WithLabelValues(topic).Inc()
}

func IncIngressRequest(endpoint, status string) {
	IngressRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

func SetIngressRequestRate(rate float64) {
	IngressRequestRate.Set(rate)
}
