package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonUnmarshal 测试用的短别名
var jsonUnmarshal = json.Unmarshal

func TestOpcodeValues(t *testing.T) {
	// 线上整数取值与参考服务端一致
	assert.Equal(t, Opcode(0), OpDispatch)
	assert.Equal(t, Opcode(1), OpHeartbeat)
	assert.Equal(t, Opcode(2), OpIdentify)
	assert.Equal(t, Opcode(3), OpStatusUpdate)
	assert.Equal(t, Opcode(4), OpVoiceStateUpdate)
	assert.Equal(t, Opcode(6), OpResume)
	assert.Equal(t, Opcode(7), OpReconnect)
	assert.Equal(t, Opcode(8), OpRequestGuildMembers)
	assert.Equal(t, Opcode(9), OpInvalidSession)
	assert.Equal(t, Opcode(10), OpHello)
	assert.Equal(t, Opcode(11), OpHeartbeatAck)

	assert.False(t, Opcode(5).IsValid())
	assert.False(t, Opcode(12).IsValid())
}

func TestHeartbeatPayload(t *testing.T) {
	codec := JSONCodec{}

	data, err := codec.Encode(HeartbeatPayload(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":1,"d":null}`, string(data))

	seq := int64(251)
	data, err = codec.Encode(HeartbeatPayload(&seq))
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":1,"d":251}`, string(data))
}

func TestIdentifyPayloadWire(t *testing.T) {
	codec := JSONCodec{}

	p, err := IdentifyPayload(IdentifyData{
		Token: "tok",
		Properties: IdentifyProperties{
			OS:      "linux",
			Browser: "gatelink",
			Device:  "gatelink",
		},
		Compress:       false,
		LargeThreshold: 250,
		Shard:          &[2]int{0, 2},
	})
	require.NoError(t, err)

	data, err := codec.Encode(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"op": 2,
		"d": {
			"token": "tok",
			"properties": {"os": "linux", "browser": "gatelink", "device": "gatelink"},
			"compress": false,
			"large_threshold": 250,
			"shard": [0, 2]
		}
	}`, string(data))
}

func TestResumePayloadWire(t *testing.T) {
	codec := JSONCodec{}

	p, err := ResumePayload(ResumeData{Token: "tok", SessionID: "abc", Seq: 100})
	require.NoError(t, err)

	data, err := codec.Encode(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":6,"d":{"token":"tok","session_id":"abc","seq":100}}`, string(data))
}

func TestFatalCloseCodes(t *testing.T) {
	assert.True(t, IsFatalCloseCode(CloseAuthenticationFailed))
	for code := CloseInvalidShard; code <= CloseDisallowedIntents; code++ {
		assert.True(t, IsFatalCloseCode(code), "code %d", code)
	}

	assert.False(t, IsFatalCloseCode(1000))
	assert.False(t, IsFatalCloseCode(CloseUnknownError))
	assert.False(t, IsFatalCloseCode(CloseSessionTimedOut))
}

func TestCloseErrorFatal(t *testing.T) {
	assert.True(t, (&CloseError{Code: 4004}).Fatal())
	assert.False(t, (&CloseError{Code: 4009}).Fatal())
}
