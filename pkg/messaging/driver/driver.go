// Package driver builds the MessageSender selected by configuration.
package driver

import (
	"fmt"

	"github.com/erain9/ordercache/config"
	"github.com/erain9/ordercache/pkg/db/queue"
	"github.com/erain9/ordercache/pkg/messaging"
	"github.com/erain9/ordercache/pkg/messaging/kafka"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
)

// NewSender returns the sender for cfg.Events.Driver, or nil for DriverNone
func NewSender(cfg *config.Config, logger zerolog.Logger) (messaging.MessageSender, error) {
	events := cfg.Events

	switch events.Driver {
	case config.DriverNone, "":
		return nil, nil

	case config.DriverKafka:
		sender, err := kafka.NewKafkaMessageSender(events.Brokers, events.Topic)
		if err != nil {
			return nil, err
		}
		logger.Info().Strs("brokers", events.Brokers).Str("topic", events.Topic).Msg("Publishing events with kafka-go")
		return sender, nil

	case config.DriverSarama:
		zlog, err := newZapLogger(cfg.Log.Level, cfg.Log.Pretty)
		if err != nil {
			return nil, err
		}
		queueCfg := queue.Config{Brokers: events.Brokers, Topic: events.Topic, Logger: zlog}

		pool, err := queue.NewSenderPool(events.PoolSize, func() (messaging.MessageSender, error) {
			return queue.NewQueueMessageSender(queueCfg)
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info().
			Strs("brokers", events.Brokers).
			Str("topic", events.Topic).
			Int("pool", pool.Available()).
			Msg("Publishing events with sarama")
		return pool, nil

	default:
		return nil, fmt.Errorf("unknown events driver %q", events.Driver)
	}
}

// newZapLogger builds the logger handed to sarama
func newZapLogger(level string, development bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if development {
		zcfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zcfg.Level = lvl

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	return logger, nil
}
