package protocol

import (
	"encoding/json"
	"fmt"
)

// Codec 载荷编解码能力
type Codec interface {
	// Decode 解码一帧入站数据，失败返回 *DecodeError
	Decode(data []byte) (*Payload, error)
	// Encode 编码一个出站载荷
	Encode(p *Payload) ([]byte, error)
}

// JSONCodec 标准 JSON 封装编解码器
type JSONCodec struct{}

// Decode 解码入站帧；空帧、非法 JSON、未知操作码均拒绝
func (JSONCodec) Decode(data []byte) (*Payload, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty frame"}
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &DecodeError{Reason: "malformed json", Err: err}
	}

	if !p.Op.IsValid() {
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown opcode %d", p.Op)}
	}

	return &p, nil
}

// Encode 编码出站载荷
func (JSONCodec) Encode(p *Payload) ([]byte, error) {
	return json.Marshal(p)
}
