package gateway

import (
	"encoding/json"
	"time"

	"github.com/qiminjie89/gatelink/internal/protocol"
	"github.com/qiminjie89/gatelink/pkg/config"
	"github.com/qiminjie89/gatelink/pkg/transport"
)

// IdentifyOptions 握手参数；Resume* 字段非空时首次连接尝试 Resume 而非 Identify
type IdentifyOptions struct {
	Properties     protocol.IdentifyProperties
	Compress       bool
	LargeThreshold int
	ShardIndex     int
	ShardCount     int
	Presence       json.RawMessage

	// 调用方注入的恢复起点（跨进程重启时由调用方持久化）
	ResumeSessionID string
	ResumeSequence  *int64
}

// shard 返回 Identify 载荷的 shard 字段，未分片时为 nil
func (o IdentifyOptions) shard() *[2]int {
	if o.ShardCount <= 0 {
		return nil
	}
	return &[2]int{o.ShardIndex, o.ShardCount}
}

// Options 客户端构造参数
type Options struct {
	Token    string
	Identify IdentifyOptions
	Retry    RetryPolicy

	Dialer transport.Dialer
	Codec  protocol.Codec

	// BufferSize 三条流的通道容量，默认 256
	BufferSize int

	// ReadyTimeout Identify 发出后等待 Ready 的时限，超时按认证失败处理；
	// 0 表示关闭检测
	ReadyTimeout time.Duration
}

// defaultUserAgent 未配置 User-Agent 时的握手头部
const defaultUserAgent = "gatelink (github.com/qiminjie89/gatelink, 1.0)"

func (o *Options) withDefaults() {
	if o.Codec == nil {
		o.Codec = protocol.JSONCodec{}
	}
	if o.Dialer == nil {
		o.Dialer = transport.NewWSDialer(transport.WSConfig{
			UserAgent:        defaultUserAgent,
			HandshakeTimeout: 30 * time.Second,
		})
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 256
	}
	if o.Retry == (RetryPolicy{}) {
		o.Retry = DefaultRetryPolicy()
	}
}

// FromConfig 从配置文件段构造客户端
func FromConfig(gw config.GatewayConfig, id config.IdentifyConfig, bo config.BackoffConfig) *Client {
	ua := gw.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return NewClient(Options{
		Token: id.Token,
		Identify: IdentifyOptions{
			Properties: protocol.IdentifyProperties{
				OS:      id.OS,
				Browser: id.Browser,
				Device:  id.Device,
			},
			Compress:       id.Compress,
			LargeThreshold: id.LargeThreshold,
			ShardIndex:     id.ShardIndex,
			ShardCount:     id.ShardCount,
		},
		Retry: RetryPolicy{
			First:      bo.First,
			Max:        bo.Max,
			Jitter:     bo.Jitter,
			MaxRetries: bo.MaxRetries,
		},
		Dialer: transport.NewWSDialer(transport.WSConfig{
			UserAgent:        ua,
			HandshakeTimeout: gw.HandshakeTimeout,
		}),
		BufferSize:   gw.BufferSize,
		ReadyTimeout: gw.ReadyTimeout,
	})
}
