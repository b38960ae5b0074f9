package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	in := &Record{
		ID:         "rec-1",
		Event:      "MESSAGE_CREATE",
		Seq:        42,
		SessionID:  "abc",
		ReceivedMS: 1700000000000,
		Data:       []byte(`{"content":"hi"}`),
	}

	data, err := EncodeRecord(in)
	require.NoError(t, err)

	out, err := DecodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCommandRoundTrip(t *testing.T) {
	in := &Command{
		Op:   3,
		Data: []byte(`{"status":"online"}`),
	}

	data, err := EncodeCommand(in)
	require.NoError(t, err)

	out, err := DecodeCommand(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeRecordRejectsGarbage(t *testing.T) {
	_, err := DecodeRecord([]byte("not msgpack at all"))
	assert.Error(t, err)
}
