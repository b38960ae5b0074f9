package gateway

import (
	"errors"

	"github.com/qiminjie89/gatelink/internal/protocol"
)

var (
	// ErrZombieConnection 心跳确认超时，连接被判定为僵尸
	ErrZombieConnection = errors.New("gateway: zombie connection detected")

	// ErrAuthenticationFailed 凭证无效，不再重试
	ErrAuthenticationFailed = errors.New("gateway: authentication failed")

	// ErrMaxRetriesExceeded 重试预算耗尽
	ErrMaxRetriesExceeded = errors.New("gateway: max retries exceeded")

	// errCloseRequested 调用方通过 Close(false) 请求永久关闭
	errCloseRequested = errors.New("gateway: close requested")

	// errReconnectRequested 调用方通过 Close(true) 请求重连
	errReconnectRequested = errors.New("gateway: reconnect requested")

	// errServerReconnect 服务端下发 Reconnect 操作码
	errServerReconnect = errors.New("gateway: server requested reconnect")

	// errInvalidSession 服务端宣告会话失效
	errInvalidSession = errors.New("gateway: session invalidated")
)

// isFatal 判断一次连接尝试的错误是否应终止监督循环
func isFatal(err error) bool {
	if errors.Is(err, ErrAuthenticationFailed) || errors.Is(err, ErrMaxRetriesExceeded) {
		return true
	}
	var ce *protocol.CloseError
	if errors.As(err, &ce) {
		return ce.Fatal()
	}
	return false
}
