package broker

import (
	"fmt"

	"callrelay/internal/config"
	"callrelay/internal/constants"
	"callrelay/internal/logger"
)

func NewSession(cfg config.BrokerConfig, opts SessionOptions, log logger.Logger) (Session, error) {
	switch cfg.Type {
	case constants.BrokerTypeMQTT:
		return NewMQTTSession(cfg.MQTT, opts, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
