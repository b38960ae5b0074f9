// bridge 把网关 Dispatch 事件转发到 Kafka，并把命令 topic 的消息注入发送队列
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qiminjie89/gatelink/internal/gateway"
	"github.com/qiminjie89/gatelink/internal/protocol"
	"github.com/qiminjie89/gatelink/pkg/config"
	"github.com/qiminjie89/gatelink/pkg/kafka"
	"github.com/qiminjie89/gatelink/pkg/logger"
	"github.com/qiminjie89/gatelink/pkg/metrics"
)

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "configs/bridge.yaml", "config file path")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadBridgeConfig(*configPath)
	if err != nil {
		panic("load config failed: " + err.Error())
	}

	// 初始化日志
	if err := logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}); err != nil {
		panic("init logger failed: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("starting gateway bridge",
		zap.String("config", *configPath),
		zap.String("events_topic", cfg.Kafka.EventsTopic),
	)

	// 监控
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	client := gateway.FromConfig(cfg.Gateway, cfg.Identify, cfg.Backoff)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- client.Run(ctx, cfg.Gateway.URL)
	}()

	// 事件流 → Kafka
	go forwardEvents(ctx, client, producer)

	// 命令 topic → 发送队列
	consumer := kafka.NewConsumer(cfg.Kafka)
	if consumer != nil {
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx, func(key, value []byte) error {
				cmd, err := kafka.DecodeCommand(value)
				if err != nil {
					return err
				}
				client.Send(&protocol.Payload{
					Op:   protocol.Opcode(cmd.Op),
					Data: json.RawMessage(cmd.Data),
				})
				return nil
			}); err != nil {
				logger.Error("command consumer error", zap.Error(err))
			}
		}()
	}

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
		client.Close(false)
		<-runErr
	case err := <-runErr:
		if err != nil {
			logger.Error("gateway client exited", zap.Error(err))
			os.Exit(1)
		}
	}
}

// forwardEvents 把开放集合的 Dispatch 事件编码为记录并生产到 Kafka，
// Ready/Resumed 与状态变更只记日志
func forwardEvents(ctx context.Context, client *gateway.Client, producer *kafka.Producer) {
	for ev := range client.Dispatch() {
		switch e := ev.(type) {
		case *gateway.StateChange:
			logger.Info("gateway state change",
				zap.String("state", e.State.String()),
			)
		case *gateway.ReadyEvent:
			logger.Info("session ready", zap.String("session_id", e.SessionID))
		case *gateway.ResumedEvent:
			logger.Info("session resumed")
		case *gateway.DispatchEvent:
			record := &kafka.Record{
				ID:         uuid.NewString(),
				Event:      e.Type,
				Seq:        e.Seq,
				SessionID:  client.SessionID(),
				ReceivedMS: time.Now().UnixMilli(),
				Data:       e.Data,
			}
			if err := producer.SendRecord(ctx, record); err != nil {
				logger.Warn("forward event failed",
					zap.String("event", e.Type),
					zap.Int64("seq", e.Seq),
				)
			}
		}
	}
}
