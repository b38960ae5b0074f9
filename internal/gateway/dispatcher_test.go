package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qiminjie89/gatelink/internal/protocol"
)

// dispatcherHarness 捕获 payloadContext 的各路副作用
type dispatcherHarness struct {
	pc     *payloadContext
	sent   []*protocol.Payload
	events []Event
	errs   []error
}

func newDispatcherHarness() *dispatcherHarness {
	h := &dispatcherHarness{}
	h.pc = &payloadContext{
		state:     NewSessionState(),
		heartbeat: NewHeartbeatTimer(),
		retry:     &RetryContext{},
		token:     "tok",
		identify: IdentifyOptions{
			Properties: protocol.IdentifyProperties{OS: "linux", Browser: "gatelink", Device: "gatelink"},
		},
		send:     func(p *protocol.Payload) { h.sent = append(h.sent, p) },
		dispatch: func(ev Event) { h.events = append(h.events, ev) },
		fail:     func(err error) { h.errs = append(h.errs, err) },
		log:      zap.NewNop(),
	}
	return h
}

func helloPayload(intervalMS int64) *protocol.Payload {
	data, _ := json.Marshal(protocol.HelloData{HeartbeatInterval: intervalMS})
	return &protocol.Payload{Op: protocol.OpHello, Data: data}
}

func dispatchPayload(event string, seq int64, body string) *protocol.Payload {
	return &protocol.Payload{
		Op:   protocol.OpDispatch,
		Type: event,
		Seq:  &seq,
		Data: json.RawMessage(body),
	}
}

func TestHelloStartsHeartbeatAndIdentifies(t *testing.T) {
	h := newDispatcherHarness()
	defer h.pc.heartbeat.Stop()

	handlePayload(h.pc, helloPayload(41250))

	assert.Equal(t, 41250*time.Millisecond, h.pc.heartbeat.Period())

	require.Len(t, h.sent, 1)
	assert.Equal(t, protocol.OpIdentify, h.sent[0].Op)

	var d protocol.IdentifyData
	require.NoError(t, json.Unmarshal(h.sent[0].Data, &d))
	assert.Equal(t, "tok", d.Token)
	assert.Equal(t, "linux", d.Properties.OS)
	assert.False(t, h.pc.state.Resumable())
}

func TestHelloResumesWhenPossible(t *testing.T) {
	h := newDispatcherHarness()
	defer h.pc.heartbeat.Stop()

	h.pc.state.SetSessionID("abc")
	h.pc.state.UpdateSequence(100)
	h.pc.state.SetResumable(true)

	handlePayload(h.pc, helloPayload(41250))

	require.Len(t, h.sent, 1)
	assert.Equal(t, protocol.OpResume, h.sent[0].Op)

	var d protocol.ResumeData
	require.NoError(t, json.Unmarshal(h.sent[0].Data, &d))
	assert.Equal(t, "abc", d.SessionID)
	assert.Equal(t, int64(100), d.Seq)
	assert.Equal(t, "tok", d.Token)
}

func TestHelloInvalidIntervalFailsAttempt(t *testing.T) {
	h := newDispatcherHarness()

	handlePayload(h.pc, helloPayload(0))

	assert.Empty(t, h.sent)
	require.Len(t, h.errs, 1)
}

func TestHeartbeatRequestEchoesSequence(t *testing.T) {
	h := newDispatcherHarness()
	h.pc.state.UpdateSequence(42)

	handlePayload(h.pc, &protocol.Payload{Op: protocol.OpHeartbeat})

	require.Len(t, h.sent, 1)
	assert.Equal(t, protocol.OpHeartbeat, h.sent[0].Op)
	assert.Equal(t, "42", string(h.sent[0].Data))
}

func TestHeartbeatAckTouchesState(t *testing.T) {
	h := newDispatcherHarness()
	before := h.pc.state.LastAck()

	time.Sleep(5 * time.Millisecond)
	handlePayload(h.pc, &protocol.Payload{Op: protocol.OpHeartbeatAck})

	assert.True(t, h.pc.state.LastAck().After(before))
}

func TestDispatchAppliesSequenceBeforeDelivery(t *testing.T) {
	h := newDispatcherHarness()

	var seqAtDelivery int64
	h.pc.dispatch = func(ev Event) {
		seqAtDelivery, _ = h.pc.state.Sequence()
	}

	handlePayload(h.pc, dispatchPayload("MESSAGE_CREATE", 7, `{}`))

	assert.Equal(t, int64(7), seqAtDelivery)
}

func TestDispatchReady(t *testing.T) {
	h := newDispatcherHarness()

	handlePayload(h.pc, dispatchPayload("READY", 1,
		`{"session_id":"abc","resume_gateway_url":"wss://resume.example"}`))

	assert.Equal(t, "abc", h.pc.state.SessionID())
	assert.Equal(t, "wss://resume.example", h.pc.state.ResumeGatewayURL())
	assert.True(t, h.pc.state.Resumable())
	assert.Equal(t, 0, h.pc.retry.Attempts())
	assert.Equal(t, 1, h.pc.retry.ResetCount())

	require.Len(t, h.events, 2)
	ready, ok := h.events[0].(*ReadyEvent)
	require.True(t, ok)
	assert.Equal(t, "abc", ready.SessionID)

	sc, ok := h.events[1].(*StateChange)
	require.True(t, ok)
	assert.Equal(t, StateConnected, sc.State)
}

func TestDispatchResumedAfterRetries(t *testing.T) {
	h := newDispatcherHarness()

	// 模拟此前已成功连接过一次、随后经历两次失败重试
	h.pc.retry.Reset()
	h.pc.retry.Next()
	h.pc.retry.Next()

	handlePayload(h.pc, dispatchPayload("RESUMED", 101, `{}`))

	require.Len(t, h.events, 2)
	assert.IsType(t, &ResumedEvent{}, h.events[0])

	sc, ok := h.events[1].(*StateChange)
	require.True(t, ok)
	assert.Equal(t, StateRetrySucceeded, sc.State)
	assert.Equal(t, 2, sc.Attempt)
	assert.Equal(t, 0, h.pc.retry.Attempts())
}

func TestDispatchOpenSetEvent(t *testing.T) {
	h := newDispatcherHarness()

	handlePayload(h.pc, dispatchPayload("GUILD_CREATE", 8, `{"id":"1"}`))

	require.Len(t, h.events, 1)
	ev, ok := h.events[0].(*DispatchEvent)
	require.True(t, ok)
	assert.Equal(t, "GUILD_CREATE", ev.Type)
	assert.Equal(t, int64(8), ev.Seq)
	assert.JSONEq(t, `{"id":"1"}`, string(ev.Data))
}

func TestReconnectFailsAttemptKeepingResumeState(t *testing.T) {
	h := newDispatcherHarness()
	h.pc.state.SetSessionID("abc")
	h.pc.state.UpdateSequence(9)
	h.pc.state.SetResumable(true)

	handlePayload(h.pc, &protocol.Payload{Op: protocol.OpReconnect})

	require.Len(t, h.errs, 1)
	assert.ErrorIs(t, h.errs[0], errServerReconnect)
	assert.True(t, h.pc.state.CanResume())
}

func TestInvalidSessionNotResumable(t *testing.T) {
	h := newDispatcherHarness()
	h.pc.state.SetSessionID("abc")
	h.pc.state.UpdateSequence(9)
	h.pc.state.SetResumable(true)

	handlePayload(h.pc, &protocol.Payload{Op: protocol.OpInvalidSession, Data: json.RawMessage(`false`)})

	require.Len(t, h.errs, 1)
	assert.ErrorIs(t, h.errs[0], errInvalidSession)
	assert.Empty(t, h.pc.state.SessionID())
	assert.False(t, h.pc.state.Resumable())
	_, ok := h.pc.state.Sequence()
	assert.False(t, ok)
}

func TestInvalidSessionResumable(t *testing.T) {
	h := newDispatcherHarness()
	h.pc.state.SetSessionID("abc")
	h.pc.state.UpdateSequence(9)
	h.pc.state.SetResumable(true)

	handlePayload(h.pc, &protocol.Payload{Op: protocol.OpInvalidSession, Data: json.RawMessage(`true`)})

	require.Len(t, h.errs, 1)
	assert.ErrorIs(t, h.errs[0], errInvalidSession)
	assert.True(t, h.pc.state.CanResume())
}
