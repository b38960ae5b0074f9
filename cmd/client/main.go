package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/qiminjie89/gatelink/internal/gateway"
	"github.com/qiminjie89/gatelink/pkg/config"
	"github.com/qiminjie89/gatelink/pkg/logger"
	"github.com/qiminjie89/gatelink/pkg/metrics"
)

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "configs/client.yaml", "config file path")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadClientConfig(*configPath)
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

	logger.Info("starting gateway client",
		zap.String("config", *configPath),
		zap.String("url", cfg.Gateway.URL),
	)

	// 监控
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	client := gateway.FromConfig(cfg.Gateway, cfg.Identify, cfg.Backoff)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- client.Run(ctx, cfg.Gateway.URL)
	}()

	// 消费事件流
	go func() {
		for ev := range client.Dispatch() {
			switch e := ev.(type) {
			case *gateway.StateChange:
				logger.Info("gateway state change",
					zap.String("state", e.State.String()),
					zap.Int("attempt", e.Attempt),
					zap.Duration("delay", e.Delay),
				)
			case *gateway.ReadyEvent:
				logger.Info("session ready",
					zap.String("session_id", e.SessionID),
				)
			case *gateway.ResumedEvent:
				logger.Info("session resumed")
			case *gateway.DispatchEvent:
				logger.Debug("dispatch event",
					zap.String("event", e.Type),
					zap.Int64("seq", e.Seq),
				)
			}
		}
	}()

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
