package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig WebSocket 拨号配置
type WSConfig struct {
	UserAgent        string
	HandshakeTimeout time.Duration
	ReadBufferSize   int
	WriteBufferSize  int
}

// WSDialer 基于 gorilla/websocket 的拨号器
type WSDialer struct {
	dialer    *websocket.Dialer
	userAgent string
}

// NewWSDialer 创建拨号器
func NewWSDialer(cfg WSConfig) *WSDialer {
	return &WSDialer{
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
		},
		userAgent: cfg.UserAgent,
	}
}

// Dial 建立 WebSocket 连接，握手头部携带配置的 User-Agent
func (d *WSDialer) Dial(ctx context.Context, url string, header http.Header) (Session, error) {
	if header == nil {
		header = http.Header{}
	}
	if d.userAgent != "" {
		header.Set("User-Agent", d.userAgent)
	}

	conn, _, err := d.dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}

	return &wsSession{conn: conn}, nil
}

// wsSession 一条 gorilla 连接
type wsSession struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *wsSession) Read() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *wsSession) Write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSession) Close(code int, reason string) error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// CloseCode 从读错误中提取对端关闭码
func CloseCode(err error) (int, bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return 0, false
}
