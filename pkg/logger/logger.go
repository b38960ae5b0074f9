// Package logger 提供结构化日志功能
package logger

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var defaultLogger *zap.Logger

// Config 日志配置
type Config struct {
	Level    string // debug, info, warn, error
	Format   string // json, console
	Output   string // stdout, stderr, 或文件路径
	Sampling bool   // 高频日志采样（每秒首 100 条全量，其后每 100 条取 1）
}

// 采样参数
const (
	samplerTick       = time.Second
	samplerFirst      = 100
	samplerThereafter = 100
)

// Init 初始化全局 logger
func Init(cfg Config) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	writer, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), writer, level)
	if cfg.Sampling {
		core = zapcore.NewSamplerWithOptions(core, samplerTick, samplerFirst, samplerThereafter)
	}

	defaultLogger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return nil
}

// newEncoder console 格式面向终端调试，json 格式面向采集
func newEncoder(format string) zapcore.Encoder {
	if format == "console" {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

func openOutput(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	default:
		file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		return zapcore.AddSync(file), nil
	}
}

// L 返回全局 logger；未初始化时退回生产默认配置
func L() *zap.Logger {
	if defaultLogger == nil {
		defaultLogger, _ = zap.NewProduction()
	}
	return defaultLogger
}

// ForConn 返回绑定单条连接的子 logger；
// 每次连接尝试的全部日志共享同一个 conn_id，便于按连接聚合排查
func ForConn(connID string) *zap.Logger {
	return L().With(zap.String("conn_id", connID))
}

// Debug 输出 debug 日志
func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

// Info 输出 info 日志
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Warn 输出 warn 日志
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// Error 输出 error 日志
func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// With 创建带固定字段的 logger
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Named 创建带名称的子 logger
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync 刷新日志缓冲
func Sync() error {
	return L().Sync()
}
