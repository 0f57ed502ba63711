package bridge

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"callrelay/internal/broker"
	"callrelay/internal/config"
	"callrelay/internal/constants"
	"callrelay/internal/delivery"
	"callrelay/internal/logger"
	"callrelay/pkg/errors"
	"callrelay/pkg/logging"
	"callrelay/pkg/metrics"
	"callrelay/pkg/models"
	"callrelay/pkg/retry"
)

// Deliverer forwards an envelope to the downstream system.
type Deliverer interface {
	Deliver(ctx context.Context, env models.Envelope) (*delivery.Result, error)
}

// Service consumes inbound messages and forwards them downstream. All state
// lives on a single processing goroutine: broker callbacks only enqueue, so
// acknowledgments happen strictly in receive order.
type Service struct {
	deliverer   Deliverer
	publisher   broker.Publisher
	cfg         config.BridgeConfig
	serviceName string
	retryTopic  string
	logger      logger.Logger

	queue     chan *broker.Message
	retryMode atomic.Bool
}

func NewService(deliverer Deliverer, publisher broker.Publisher, cfg config.BridgeConfig, serviceName string, log logger.Logger) *Service {
	return &Service{
		deliverer:   deliverer,
		publisher:   publisher,
		cfg:         cfg,
		serviceName: serviceName,
		retryTopic:  constants.RetryPublishTopic(serviceName),
		logger:      log,
		queue:       make(chan *broker.Message, cfg.QueueSize),
	}
}

// RetryMode reports whether the bridge is currently throttling after a
// downstream failure.
func (s *Service) RetryMode() bool {
	return s.retryMode.Load()
}

// Enqueue hands an inbound message to the processing loop. It blocks while
// the queue is full; that stalls the broker's receive goroutine, and MQTT
// flow control (receive maximum) takes over from there.
func (s *Service) Enqueue(msg *broker.Message) {
	s.queue <- msg
	metrics.SetBridgeQueueDepth(len(s.queue))
}

// Run processes messages one at a time until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Infow("Bridge processing loop started",
		"retry_topic", s.retryTopic,
		"queue_size", s.cfg.QueueSize,
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("Bridge processing loop stopped", "reason", ctx.Err())
			return ctx.Err()
		case msg := <-s.queue:
			metrics.SetBridgeQueueDepth(len(s.queue))
			s.process(ctx, msg)
		}
	}
}

func (s *Service) process(ctx context.Context, msg *broker.Message) {
	start := time.Now()
	status := "success"

	metrics.BridgeMessagesConsumedTotal.WithLabelValues(msg.Topic).Inc()

	// Every path below ends in exactly one ack, panics included. Redelivery
	// cannot fix a message that crashes the handler, so it is dropped the
	// same way an unexpected error is.
	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			metrics.BridgeUnexpectedFailuresTotal.Inc()
			s.logger.ErrorwCtx(ctx, "Panic while processing message",
				"error", errors.RecoverPanic(r),
				"topic", msg.Topic,
			)
		}
		if err := msg.Ack(); err != nil {
			s.logger.ErrorwCtx(ctx, "Failed to acknowledge message",
				"error", err,
				"topic", msg.Topic,
			)
		} else {
			metrics.BridgeMessagesAckedTotal.Inc()
		}
		metrics.ObserveBridgeProcessing(time.Since(start), status)
	}()

	env, err := decode(msg.Payload)
	if err != nil {
		status = "decode_error"
		metrics.BridgeDecodeFailuresTotal.Inc()
		s.logger.ErrorwCtx(ctx, "Dropping undecodable payload",
			"error", err,
			"topic", msg.Topic,
			"payload_size", len(msg.Payload),
		)
		return
	}

	msgCtx := logging.WithMessageID(ctx, env.ID)
	msgCtx = logging.WithRequestID(msgCtx, env.CorrelationID())

	result, err := s.deliverer.Deliver(msgCtx, env)
	if err == nil {
		if s.retryMode.CompareAndSwap(true, false) {
			metrics.SetRetryMode(false)
			s.logger.InfowCtx(msgCtx, "Downstream recovered, leaving retry mode")
		}
		s.logger.InfowCtx(msgCtx, "Message delivered",
			"topic", msg.Topic,
			"status_code", result.StatusCode,
		)
		return
	}

	switch {
	case errors.IsDownstream(err):
		status = "downstream_error"
		s.logger.WarnwCtx(msgCtx, "Downstream delivery failed",
			"error", err,
			"topic", msg.Topic,
		)
		if s.republish(msgCtx, msg) {
			s.enterRetryMode(msgCtx)
			s.coolDown(ctx)
		}
	default:
		status = "unexpected_error"
		metrics.BridgeUnexpectedFailuresTotal.Inc()
		s.logger.ErrorwCtx(msgCtx, "Dropping message after unexpected error",
			"error", err,
			"topic", msg.Topic,
		)
	}
}

// decode turns a raw payload into an Envelope. Payloads that are not UTF-8
// text or not JSON are classified as decode errors and never retried.
func decode(payload []byte) (models.Envelope, error) {
	var env models.Envelope
	if !utf8.Valid(payload) {
		return env, errors.ErrDecode.WithDetail("message", "payload is not valid UTF-8")
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return env, errors.Wrap(err, errors.ErrDecode)
	}
	return env, nil
}

// republish puts the raw payload back on the retry topic at the QoS it
// arrived with. The bytes go out untouched, so the redelivered copy is
// byte-identical to the original. Reports whether the publish made it.
func (s *Service) republish(ctx context.Context, msg *broker.Message) bool {
	policy := retry.Policy{
		MaxAttempts:     s.cfg.Republish.MaxAttempts,
		InitialInterval: s.cfg.Republish.InitialInterval,
		MaxInterval:     s.cfg.Republish.MaxInterval,
		Multiplier:      s.cfg.Republish.Multiplier,
		MaxElapsedTime:  s.cfg.Republish.MaxElapsedTime,
	}

	err := retry.RetryWithCallback(ctx, policy, func() error {
		return s.publisher.Publish(ctx, s.retryTopic, msg.QoS, msg.Payload)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(s.serviceName, s.retryTopic).Inc()
		s.logger.WarnwCtx(ctx, "Retrying republish",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err != nil {
		// The ack still happens; the message is gone. Logged and counted
		// rather than blocking the loop on a broken broker.
		metrics.BridgeRetryPublishFailuresTotal.Inc()
		s.logger.ErrorwCtx(ctx, "Republish failed, message dropped",
			"error", err,
			"retry_topic", s.retryTopic,
		)
		return false
	}

	metrics.BridgeRetryPublishesTotal.Inc()
	s.logger.InfowCtx(ctx, "Republished message to retry topic",
		"retry_topic", s.retryTopic,
		"qos", msg.QoS,
	)
	return true
}

func (s *Service) enterRetryMode(ctx context.Context) {
	if s.retryMode.CompareAndSwap(false, true) {
		metrics.SetRetryMode(true)
		s.logger.WarnwCtx(ctx, "Entering retry mode",
			"cooldown", s.cfg.RetryCooldown,
		)
	}
}

// coolDown stalls the processing loop after a downstream failure. Only this
// goroutine sleeps; enqueueing continues until the queue fills.
func (s *Service) coolDown(ctx context.Context) {
	if s.cfg.RetryCooldown <= 0 {
		return
	}

	timer := time.NewTimer(s.cfg.RetryCooldown)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
