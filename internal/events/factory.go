package events

import (
	"context"
	"fmt"

	"github.com/localserve/booking-backend/internal/config"
	"github.com/sirupsen/logrus"
)

// NewPublisher builds the publisher selected by cfg.Backend
func NewPublisher(ctx context.Context, cfg config.EventsConfig, logger *logrus.Logger) (Publisher, error) {
	switch cfg.Backend {
	case "", "none":
		logger.Info("Booking event publishing disabled")
		return NoopPublisher{}, nil
	case "redis":
		p, err := NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannel)
		if err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{"addr": cfg.RedisAddr, "channel": cfg.RedisChannel}).Info("Publishing booking events to Redis")
		return p, nil
	case "rabbitmq":
		p, err := NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, err
		}
		logger.WithField("exchange", cfg.RabbitMQExchange).Info("Publishing booking events to RabbitMQ")
		return p, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
