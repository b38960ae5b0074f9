package kafka

import (
	"context"
	"errors"
	"io"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/qiminjie89/gatelink/pkg/config"
	"github.com/qiminjie89/gatelink/pkg/logger"
)

// MessageHandler 消息处理函数
type MessageHandler func(key, value []byte) error

// Consumer 消费命令 topic，把出站命令注入网关发送队列
type Consumer struct {
	topic  string
	reader *kafka.Reader
}

// NewConsumer 创建命令 topic 消费者；命令相关配置不完整时返回 nil
func NewConsumer(cfg config.KafkaConfig) *Consumer {
	if len(cfg.Brokers) == 0 || cfg.CommandsTopic == "" || cfg.ConsumerGroup == "" {
		logger.Warn("kafka commands consumer config incomplete, skipping",
			zap.Int("brokers", len(cfg.Brokers)),
			zap.String("topic", cfg.CommandsTopic),
			zap.String("group", cfg.ConsumerGroup),
		)
		return nil
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.CommandsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{topic: cfg.CommandsTopic, reader: reader}
}

// Run 拉取消息并逐条交给 handler，直到 ctx 结束。处理失败只记日志，不中断消费。
func (c *Consumer) Run(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := handler(msg.Key, msg.Value); err != nil {
			logger.Warn("kafka message handler failed",
				zap.Error(err),
				zap.String("topic", c.topic),
				zap.Int64("offset", msg.Offset),
			)
		}
	}
}

// Close 关闭消费者
func (c *Consumer) Close() error {
	return c.reader.Close()
}
