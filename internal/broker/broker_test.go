package broker

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callrelay/internal/config"
	"callrelay/internal/constants"
	"callrelay/internal/logger"
	"callrelay/pkg/errors"
)

func publishReceivedStub(topic string, payload []byte, qos byte, packetID uint16) paho.PublishReceived {
	return paho.PublishReceived{
		Packet: &paho.Publish{
			Topic:    topic,
			Payload:  payload,
			QoS:      qos,
			PacketID: packetID,
		},
	}
}

func TestMessageAckOnce(t *testing.T) {
	calls := 0
	msg := NewMessage("a/message", []byte(`{}`), 2, 7, func() error {
		calls++
		return nil
	})

	require.NoError(t, msg.Ack())
	require.NoError(t, msg.Ack())
	require.NoError(t, msg.Ack())

	assert.Equal(t, 1, calls)
}

func TestMessageAckReturnsFirstResult(t *testing.T) {
	calls := 0
	msg := NewMessage("a/message", nil, 1, 3, func() error {
		calls++
		return fmt.Errorf("ack attempt %d failed", calls)
	})

	first := msg.Ack()
	require.EqualError(t, first, "ack attempt 1 failed")

	// Repeats never reach the broker again.
	assert.Equal(t, first, msg.Ack())
	assert.Equal(t, 1, calls)
}

func TestMessageAckConcurrent(t *testing.T) {
	calls := 0
	msg := NewMessage("a/message", nil, 2, 11, func() error {
		calls++
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = msg.Ack()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
}

func TestMessageAckWithoutFunc(t *testing.T) {
	msg := NewMessage("a/message", nil, 0, 0, nil)
	assert.NoError(t, msg.Ack())
}

func TestNewSession(t *testing.T) {
	tests := []struct {
		name       string
		brokerType string
		wantErr    bool
	}{
		{name: "mqtt", brokerType: constants.BrokerTypeMQTT, wantErr: false},
		{name: "unknown", brokerType: "kafka", wantErr: true},
		{name: "empty", brokerType: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.BrokerConfig{
				Type: tt.brokerType,
				MQTT: config.MQTTConfig{Host: "localhost", Port: 1883},
			}

			session, err := NewSession(cfg, SessionOptions{ClientID: "test"}, logger.NopLogger())
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown broker type")
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, session)
		})
	}
}

func TestMQTTSessionPublishBeforeConnect(t *testing.T) {
	session := NewMQTTSession(config.MQTTConfig{Host: "localhost", Port: 1883}, SessionOptions{ClientID: "test"}, logger.NopLogger())

	err := session.Publish(context.Background(), "a/message", 2, []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errors.IsConnect(err))
	assert.False(t, session.Connected())
}

func TestMQTTSessionDisconnectBeforeConnect(t *testing.T) {
	session := NewMQTTSession(config.MQTTConfig{Host: "localhost", Port: 1883}, SessionOptions{}, logger.NopLogger())
	assert.NoError(t, session.Disconnect(context.Background()))
}

func TestOnPublishReceivedWrapsPacket(t *testing.T) {
	var got *Message
	session := NewMQTTSession(config.MQTTConfig{}, SessionOptions{
		ClientID:  "test",
		OnMessage: func(m *Message) { got = m },
	}, logger.NopLogger())

	handled, err := session.onPublishReceived(publishReceivedStub("device1/message", []byte(`{"id":"1"}`), 2, 42))
	require.NoError(t, err)
	assert.True(t, handled)

	require.NotNil(t, got)
	assert.Equal(t, "device1/message", got.Topic)
	assert.Equal(t, []byte(`{"id":"1"}`), got.Payload)
	assert.Equal(t, byte(2), got.QoS)
	assert.Equal(t, uint16(42), got.PacketID)
}
