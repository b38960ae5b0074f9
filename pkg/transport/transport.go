// Package transport 提供拨号侧 WebSocket 传输抽象
package transport

import (
	"context"
	"net/http"
)

// Dialer 传输层拨号接口
type Dialer interface {
	// Dial 建立一条到 url 的连接
	Dial(ctx context.Context, url string, header http.Header) (Session, error)
}

// Session 一条传输连接；关闭后读写均返回错误
type Session interface {
	// Read 读取下一帧，阻塞直到有数据或连接关闭
	Read() ([]byte, error)
	// Write 写出一帧
	Write(data []byte) error
	// Close 发送关闭帧并关闭底层连接，幂等
	Close(code int, reason string) error
}
