// Package kafka 提供网关事件到 Kafka 的桥接：生产者、消费者与记录编解码
package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/qiminjie89/gatelink/pkg/config"
	"github.com/qiminjie89/gatelink/pkg/logger"
)

// Producer 把网关事件记录生产到事件 topic
type Producer struct {
	topic  string
	writer *kafka.Writer
}

// NewProducer 按桥接配置创建生产者；确认级别、压缩与攒批均由配置决定
func NewProducer(cfg config.KafkaConfig) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.Hash{}, // 按 key 哈希分区，同名事件落同一分区保序
		RequiredAcks: parseAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
	}
	if cfg.BatchSize > 0 {
		writer.BatchSize = cfg.BatchSize
	}
	if cfg.BatchTimeout > 0 {
		writer.BatchTimeout = cfg.BatchTimeout
	}

	return &Producer{
		topic:  cfg.EventsTopic,
		writer: writer,
	}
}

// SendRecord 编码一条事件记录并以事件名为 key 发送
func (p *Producer) SendRecord(ctx context.Context, r *Record) error {
	value, err := EncodeRecord(r)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(r.Event),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error("kafka produce failed",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("event", r.Event),
			zap.Int64("seq", r.Seq),
		)
		return err
	}

	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	return p.writer.Close()
}

// parseAcks 解析确认级别，未知取值退回 one
func parseAcks(acks string) kafka.RequiredAcks {
	switch acks {
	case "none":
		return kafka.RequireNone
	case "all":
		return kafka.RequireAll
	default:
		return kafka.RequireOne
	}
}

// parseCompression 解析压缩算法，未知取值不压缩
func parseCompression(algo string) kafka.Compression {
	switch algo {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}
