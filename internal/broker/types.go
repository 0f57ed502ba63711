package broker

import (
	"context"
	"sync"
)

// Message is a single inbound broker message. The payload is the raw bytes
// as received; decoding is the consumer's job.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	PacketID uint16

	ack     func() error
	ackOnce sync.Once
	ackErr  error
}

func NewMessage(topic string, payload []byte, qos byte, packetID uint16, ack func() error) *Message {
	return &Message{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		PacketID: packetID,
		ack:      ack,
	}
}

// Ack confirms the message to the broker. Only the first call reaches the
// broker; repeated calls return the first call's result.
func (m *Message) Ack() error {
	m.ackOnce.Do(func() {
		if m.ack != nil {
			m.ackErr = m.ack()
		}
	})
	return m.ackErr
}

// Publisher is the outbound half of a Session.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, payload []byte) error
}

// Session is a long-lived broker connection. A session with subscriptions
// delivers inbound messages through SessionOptions.OnMessage; a session
// without subscriptions is publish-only.
type Session interface {
	Publisher
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Connected() bool
}

// Subscription names a topic filter the session consumes from.
type Subscription struct {
	Topic string
	QoS   byte
}

// SessionOptions configure a session at construction time. OnMessage runs
// on the session's receive goroutine; blocking in it slows inbound flow
// down, which is how consumers apply backpressure.
type SessionOptions struct {
	ClientID      string
	Subscriptions []Subscription
	OnMessage     func(*Message)
}
