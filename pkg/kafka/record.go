package kafka

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Record 桥接到 Kafka 的网关事件记录
type Record struct {
	ID         string `msgpack:"id"`          // 记录 ID
	Event      string `msgpack:"event"`       // 事件名
	Seq        int64  `msgpack:"seq"`         // 网关序列号
	SessionID  string `msgpack:"session_id"`  // 所属会话
	ReceivedMS int64  `msgpack:"received_ms"` // 接收时间（毫秒时间戳）
	Data       []byte `msgpack:"data"`        // 原始事件体（JSON）
}

// Command 从 Kafka 注入网关发送队列的出站命令
type Command struct {
	Op   int    `msgpack:"op"`   // 网关操作码
	Data []byte `msgpack:"data"` // 载荷体（JSON）
}

// EncodeRecord 使用 msgpack 编码事件记录
func EncodeRecord(r *Record) ([]byte, error) {
	return msgpack.Marshal(r)
}

// DecodeRecord 使用 msgpack 解码事件记录
func DecodeRecord(data []byte) (*Record, error) {
	var r Record
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// EncodeCommand 使用 msgpack 编码出站命令
func EncodeCommand(c *Command) ([]byte, error) {
	return msgpack.Marshal(c)
}

// DecodeCommand 使用 msgpack 解码出站命令
func DecodeCommand(data []byte) (*Command, error) {
	var c Command
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
