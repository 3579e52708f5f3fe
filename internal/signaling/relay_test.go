package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type delivery struct {
	target  string
	event   string
	payload interface{}
}

// fakeSender records deliveries; ids in missing are reported unknown.
type fakeSender struct {
	deliveries []delivery
	missing    map[string]bool
}

func (f *fakeSender) SendTo(id, event string, payload interface{}) bool {
	if f.missing[id] {
		return false
	}
	f.deliveries = append(f.deliveries, delivery{target: id, event: event, payload: payload})
	return true
}

func (f *fakeSender) named(event string) []delivery {
	var out []delivery
	for _, d := range f.deliveries {
		if d.event == event {
			out = append(out, d)
		}
	}
	return out
}

func newTestRelay(missing ...string) (*Relay, *fakeSender) {
	sender := &fakeSender{missing: make(map[string]bool)}
	for _, id := range missing {
		sender.missing[id] = true
	}
	return New(sender, zap.NewNop()), sender
}

func TestOfferForwardedWithSender(t *testing.T) {
	r, sender := newTestRelay()

	r.Offer("b1", json.RawMessage(`{"targetId":"v1","sdp":{"type":"offer","sdp":"v=0"}}`))

	offers := sender.named("offer")
	require.Len(t, offers, 1)
	assert.Equal(t, "v1", offers[0].target)
	fwd := offers[0].payload.(forwarded)
	assert.Equal(t, "b1", fwd.From)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(fwd.SDP))
}

func TestOfferWithoutTargetAcked(t *testing.T) {
	r, sender := newTestRelay()

	r.Offer("b1", json.RawMessage(`{"sdp":"x","ackId":"a1"}`))

	assert.Empty(t, sender.named("offer"))
	acks := sender.named("ack")
	require.Len(t, acks, 1)
	assert.Equal(t, "b1", acks[0].target)
	ack := acks[0].payload.(ackPayload)
	assert.Equal(t, "a1", ack.AckID)
	assert.False(t, ack.Success)
	assert.NotEmpty(t, ack.Error)
}

func TestOfferUnknownTargetDroppedAndAcked(t *testing.T) {
	r, sender := newTestRelay("v9")

	r.Offer("b1", json.RawMessage(`{"targetId":"v9","sdp":"x","ackId":"a2"}`))

	assert.Empty(t, sender.named("offer"))
	acks := sender.named("ack")
	require.Len(t, acks, 1)
	assert.False(t, acks[0].payload.(ackPayload).Success)
}

func TestOfferSuccessAcked(t *testing.T) {
	r, sender := newTestRelay()

	r.Offer("b1", json.RawMessage(`{"targetId":"v1","sdp":"x","ackId":"a3"}`))

	require.Len(t, sender.named("offer"), 1)
	acks := sender.named("ack")
	require.Len(t, acks, 1)
	ack := acks[0].payload.(ackPayload)
	assert.True(t, ack.Success)
	assert.Empty(t, ack.Error)
}

func TestOfferWithoutAckIDStaysSilent(t *testing.T) {
	r, sender := newTestRelay("v9")

	r.Offer("b1", json.RawMessage(`{"targetId":"v9","sdp":"x"}`))
	r.Offer("b1", json.RawMessage(`{"sdp":"x"}`))

	assert.Empty(t, sender.deliveries)
}

func TestAnswerForwarded(t *testing.T) {
	r, sender := newTestRelay()

	r.Answer("v1", json.RawMessage(`{"targetId":"b1","sdp":"v=0"}`))

	answers := sender.named("answer")
	require.Len(t, answers, 1)
	assert.Equal(t, "b1", answers[0].target)
	assert.Equal(t, "v1", answers[0].payload.(forwarded).From)
}

func TestCandidateOrderPreserved(t *testing.T) {
	r, sender := newTestRelay()

	r.Candidate("b1", json.RawMessage(`{"targetId":"v1","candidate":"c1"}`))
	r.Candidate("b1", json.RawMessage(`{"targetId":"v1","candidate":"c2"}`))
	r.Candidate("b1", json.RawMessage(`{"targetId":"v1","candidate":"c3"}`))

	ice := sender.named("ice")
	require.Len(t, ice, 3)
	for i, want := range []string{`"c1"`, `"c2"`, `"c3"`} {
		assert.Equal(t, want, string(ice[i].payload.(forwarded).Candidate))
	}
}

func TestCandidateUnknownTargetDropped(t *testing.T) {
	r, sender := newTestRelay("v9")

	r.Candidate("b1", json.RawMessage(`{"targetId":"v9","candidate":"c1"}`))

	assert.Empty(t, sender.deliveries)
}

func TestNotifyViewerJoined(t *testing.T) {
	r, sender := newTestRelay()

	assert.True(t, r.NotifyViewerJoined("b1", "v1"))

	joins := sender.named("viewer:join")
	require.Len(t, joins, 1)
	assert.Equal(t, "b1", joins[0].target)
	assert.Equal(t, map[string]string{"viewerId": "v1"}, joins[0].payload)
}

func TestNotifyViewerJoinedUnknownBroadcaster(t *testing.T) {
	r, _ := newTestRelay("b9")

	assert.False(t, r.NotifyViewerJoined("b9", "v1"))
}
