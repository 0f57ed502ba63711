package ingress

import (
	"context"
	"encoding/json"
	"fmt"

	"callrelay/internal/broker"
	"callrelay/internal/delivery"
	"callrelay/pkg/errors"
	"callrelay/pkg/models"
)

// Forwarder moves a normalized envelope toward the legacy system, either
// through the broker or directly over HTTP. The message texts are part of
// the ingress API contract.
type Forwarder interface {
	Forward(ctx context.Context, env models.Envelope) error
	SuccessMessage() string
	FailureMessage(err error) string
}

// MQTTForwarder publishes envelopes to the work topic.
type MQTTForwarder struct {
	publisher broker.Publisher
	topic     string
	qos       byte
}

func NewMQTTForwarder(publisher broker.Publisher, topic string, qos byte) *MQTTForwarder {
	return &MQTTForwarder{
		publisher: publisher,
		topic:     topic,
		qos:       qos,
	}
}

func (f *MQTTForwarder) Forward(ctx context.Context, env models.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.ErrUnexpected)
	}
	return f.publisher.Publish(ctx, f.topic, f.qos, payload)
}

func (f *MQTTForwarder) SuccessMessage() string {
	return "Data published to MQTT"
}

func (f *MQTTForwarder) FailureMessage(err error) string {
	return fmt.Sprintf("Failed to publish message: %v", err)
}

// HTTPForwarder relays envelopes through the delivery client, skipping the
// broker entirely.
type HTTPForwarder struct {
	client *delivery.Client
}

func NewHTTPForwarder(client *delivery.Client) *HTTPForwarder {
	return &HTTPForwarder{client: client}
}

func (f *HTTPForwarder) Forward(ctx context.Context, env models.Envelope) error {
	_, err := f.client.Deliver(ctx, env)
	return err
}

func (f *HTTPForwarder) SuccessMessage() string {
	return "Data published to Legacy System"
}

func (f *HTTPForwarder) FailureMessage(err error) string {
	return fmt.Sprintf("Failed to send message: %v", err)
}
