package broker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/eclipse/paho.golang/paho/log"

	"callrelay/internal/config"
	"callrelay/internal/logger"
	"callrelay/pkg/errors"
	"callrelay/pkg/metrics"
)

// MQTTSession is a Session backed by an autopaho connection manager.
// autopaho owns the reconnect loop; the session re-subscribes on every
// connection-up event, so shared-group subscriptions survive broker
// restarts without redelivery gaps on the consumer side.
type MQTTSession struct {
	cfg    config.MQTTConfig
	opts   SessionOptions
	logger logger.Logger

	cm        *autopaho.ConnectionManager
	connected atomic.Bool
	discOnce  sync.Once
}

func NewMQTTSession(cfg config.MQTTConfig, opts SessionOptions, log logger.Logger) *MQTTSession {
	return &MQTTSession{
		cfg:    cfg,
		opts:   opts,
		logger: log,
	}
}

// Connect establishes the session and blocks until the first connection is
// up or the connect timeout expires. The context also bounds the session
// lifetime: cancelling it stops the reconnect loop.
func (s *MQTTSession) Connect(ctx context.Context) error {
	serverURL, err := url.Parse(fmt.Sprintf("mqtt://%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return errors.Wrap(err, errors.ErrConnect)
	}

	cliCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     s.cfg.KeepAlive,
		CleanStartOnInitialConnection: false,
		SessionExpiryInterval:         s.cfg.SessionExpiry,
		ConnectPacketBuilder: func(c *paho.Connect, _ *url.URL) *paho.Connect {
			if c.Properties == nil {
				c.Properties = &paho.ConnectProperties{}
			}
			receiveMaximum := s.cfg.ReceiveMaximum
			c.Properties.ReceiveMaximum = &receiveMaximum
			return c
		},
		OnConnectionUp: s.onConnectionUp,
		OnConnectError: func(err error) {
			s.connected.Store(false)
			metrics.MQTTConnectErrorsTotal.Inc()
			s.logger.Errorw("MQTT connection attempt failed",
				"error", err,
				"host", s.cfg.Host,
				"port", s.cfg.Port,
			)
		},
		Debug: log.NOOPLogger{},
		ClientConfig: paho.ClientConfig{
			ClientID:                   s.opts.ClientID,
			EnableManualAcknowledgment: true,
			OnClientError: func(err error) {
				s.connected.Store(false)
				s.logger.Errorw("MQTT client error", "error", err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				s.connected.Store(false)
				if d.Properties != nil {
					s.logger.Warnw("MQTT server requested disconnect",
						"reason", d.Properties.ReasonString,
					)
				} else {
					s.logger.Warnw("MQTT server requested disconnect",
						"reason_code", d.ReasonCode,
					)
				}
			},
		},
	}

	if s.opts.OnMessage != nil {
		cliCfg.OnPublishReceived = []func(paho.PublishReceived) (bool, error){s.onPublishReceived}
	}

	cm, err := autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrConnect)
	}
	s.cm = cm

	awaitCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	if err := cm.AwaitConnection(awaitCtx); err != nil {
		return errors.Wrap(err, errors.ErrConnect).
			WithDetail("host", s.cfg.Host).
			WithDetail("port", s.cfg.Port)
	}

	return nil
}

// onConnectionUp runs on every connection, initial and reconnect alike.
func (s *MQTTSession) onConnectionUp(cm *autopaho.ConnectionManager, connack *paho.Connack) {
	s.connected.Store(true)
	metrics.MQTTConnectsTotal.Inc()
	s.logger.Infow("MQTT connection up",
		"host", s.cfg.Host,
		"port", s.cfg.Port,
		"session_present", connack.SessionPresent,
	)

	if len(s.opts.Subscriptions) == 0 {
		return
	}

	subs := make([]paho.SubscribeOptions, 0, len(s.opts.Subscriptions))
	topics := make([]string, 0, len(s.opts.Subscriptions))
	for _, sub := range s.opts.Subscriptions {
		subs = append(subs, paho.SubscribeOptions{Topic: sub.Topic, QoS: sub.QoS})
		topics = append(topics, sub.Topic)
	}

	subCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
	defer cancel()
	if _, err := cm.Subscribe(subCtx, &paho.Subscribe{Subscriptions: subs}); err != nil {
		s.logger.Errorw("MQTT subscribe failed",
			"error", err,
			"topics", topics,
		)
		return
	}

	s.logger.Infow("MQTT subscriptions established", "topics", topics)
}

// onPublishReceived wraps the inbound packet into a Message whose Ack
// reaches the client that received it. Acking the receiving client keeps
// manual acknowledgments on the right connection across reconnects.
func (s *MQTTSession) onPublishReceived(pr paho.PublishReceived) (bool, error) {
	pb := pr.Packet
	msg := NewMessage(pb.Topic, pb.Payload, pb.QoS, pb.PacketID, func() error {
		if pb.QoS == 0 {
			return nil
		}
		return pr.Client.Ack(pb)
	})

	s.opts.OnMessage(msg)
	return true, nil
}

func (s *MQTTSession) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	if s.cm == nil {
		return errors.ErrConnect.WithDetail("message", "session is not connected")
	}

	resp, err := s.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     qos,
		Payload: payload,
	})
	if err != nil {
		metrics.IncMQTTPublishFailure(topic)
		return errors.Wrap(err, errors.ErrConnect).AsRetryable().WithDetail("topic", topic)
	}
	if resp != nil && resp.ReasonCode >= 0x80 {
		metrics.IncMQTTPublishFailure(topic)
		return errors.ErrConnect.AsRetryable().
			WithDetail("topic", topic).
			WithDetail("reason_code", resp.ReasonCode).
			WithDetail("message", fmt.Sprintf("broker rejected publish with reason code %d", resp.ReasonCode))
	}

	metrics.IncMQTTPublished(topic)
	return nil
}

func (s *MQTTSession) Disconnect(ctx context.Context) error {
	if s.cm == nil {
		return nil
	}

	var err error
	s.discOnce.Do(func() {
		s.connected.Store(false)
		err = s.cm.Disconnect(ctx)
		if err != nil {
			return
		}
		select {
		case <-s.cm.Done():
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

func (s *MQTTSession) Connected() bool {
	return s.connected.Load()
}
