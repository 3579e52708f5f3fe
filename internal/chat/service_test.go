package chat

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fanned struct {
	kind    string // "fanout" or "broadcast"
	event   string
	payload interface{}
}

type fakeFanout struct {
	sent []fanned
}

func (f *fakeFanout) Broadcast(event string, payload interface{}) {
	f.sent = append(f.sent, fanned{kind: "broadcast", event: event, payload: payload})
}

func (f *fakeFanout) FanOut(event string, payload interface{}) {
	f.sent = append(f.sent, fanned{kind: "fanout", event: event, payload: payload})
}

func TestPrayerRecord(t *testing.T) {
	out := &fakeFanout{}
	s := NewService(out, zap.NewNop())

	s.Prayer(json.RawMessage(`{"username":"Admin","message":"🙏 pray"}`))

	require.Len(t, out.sent, 1)
	assert.Equal(t, "fanout", out.sent[0].kind)
	assert.Equal(t, "chat:prayer", out.sent[0].event)

	msg := out.sent[0].payload.(Message)
	assert.Equal(t, KindPrayer, msg.Type)
	assert.Equal(t, "Admin", msg.Username)
	assert.Equal(t, "🙏 pray", msg.Message)
	assert.True(t, strings.HasPrefix(msg.ID, "prayer-"))
	assert.NotZero(t, msg.Timestamp)
}

func TestMessageIDsAreUnique(t *testing.T) {
	out := &fakeFanout{}
	s := NewService(out, zap.NewNop())

	s.Message(json.RawMessage(`{"username":"Ann","message":"hi"}`))
	s.Message(json.RawMessage(`{"username":"Ann","message":"hi"}`))

	require.Len(t, out.sent, 2)
	first := out.sent[0].payload.(Message)
	second := out.sent[1].payload.(Message)
	assert.True(t, strings.HasPrefix(first.ID, "msg-"))
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, KindMessage, first.Type)
}

func TestMessageDefaults(t *testing.T) {
	out := &fakeFanout{}
	s := NewService(out, zap.NewNop())

	before := time.Now().UnixMilli()
	s.Message(json.RawMessage(`{"message":"hello"}`))

	require.Len(t, out.sent, 1)
	msg := out.sent[0].payload.(Message)
	assert.Equal(t, anonymousName, msg.Username)
	assert.GreaterOrEqual(t, msg.Timestamp, before)
}

func TestMessageKeepsClientTimestamp(t *testing.T) {
	out := &fakeFanout{}
	s := NewService(out, zap.NewNop())

	s.Message(json.RawMessage(`{"username":"Ann","message":"hi","timestamp":1700000000000}`))

	msg := out.sent[0].payload.(Message)
	assert.Equal(t, int64(1700000000000), msg.Timestamp)
}

func TestMalformedChatDropped(t *testing.T) {
	out := &fakeFanout{}
	s := NewService(out, zap.NewNop())

	s.Message(json.RawMessage(`{oops`))
	s.Prayer(json.RawMessage(`[1,2]`))

	assert.Empty(t, out.sent)
}

func TestSystemBroadcastsRawText(t *testing.T) {
	out := &fakeFanout{}
	s := NewService(out, zap.NewNop())

	s.System(json.RawMessage(`"Service starts soon"`))

	require.Len(t, out.sent, 1)
	assert.Equal(t, "broadcast", out.sent[0].kind)
	assert.Equal(t, "chat:system", out.sent[0].event)
	assert.Equal(t, "Service starts soon", out.sent[0].payload)
}

func TestSystemMalformedDropped(t *testing.T) {
	out := &fakeFanout{}
	s := NewService(out, zap.NewNop())

	s.System(json.RawMessage(`{"not":"a string"}`))

	assert.Empty(t, out.sent)
}
