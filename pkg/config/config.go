// Package config 提供配置加载功能
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig 网关客户端配置
type ClientConfig struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Identify IdentifyConfig `yaml:"identify"`
	Backoff  BackoffConfig  `yaml:"backoff"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// BridgeConfig 事件桥接服务配置
type BridgeConfig struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Identify IdentifyConfig `yaml:"identify"`
	Backoff  BackoffConfig  `yaml:"backoff"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// GatewayConfig 网关连接配置
type GatewayConfig struct {
	URL              string        `yaml:"url"`
	UserAgent        string        `yaml:"user_agent"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
	ReadyTimeout     time.Duration `yaml:"ready_timeout"`
}

// IdentifyConfig 握手凭证与连接属性
type IdentifyConfig struct {
	Token          string `yaml:"token"`
	OS             string `yaml:"os"`
	Browser        string `yaml:"browser"`
	Device         string `yaml:"device"`
	Compress       bool   `yaml:"compress"`
	LargeThreshold int    `yaml:"large_threshold"`
	ShardIndex     int    `yaml:"shard_index"`
	ShardCount     int    `yaml:"shard_count"`
}

// BackoffConfig 重连退避配置
type BackoffConfig struct {
	First      time.Duration `yaml:"first"`
	Max        time.Duration `yaml:"max"`
	Jitter     float64       `yaml:"jitter"`
	MaxRetries int           `yaml:"max_retries"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	EventsTopic   string        `yaml:"events_topic"`
	CommandsTopic string        `yaml:"commands_topic"`
	ConsumerGroup string        `yaml:"consumer_group"`
	RequiredAcks  string        `yaml:"required_acks"` // none, one, all；默认 one
	Compression   string        `yaml:"compression"`   // gzip, snappy, lz4, zstd；默认不压缩
	BatchSize     int           `yaml:"batch_size"`
	BatchTimeout  time.Duration `yaml:"batch_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoadClientConfig 加载客户端配置
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadBridgeConfig 加载桥接服务配置
func LoadBridgeConfig(path string) (*BridgeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg BridgeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
