// Package signaling forwards WebRTC handshake messages between the
// broadcaster and individually addressed viewers. Payloads are opaque:
// produced and consumed by the peers' media stacks, never parsed here.
package signaling

import (
	"encoding/json"

	"go.uber.org/zap"
)

// TargetSender delivers an event to one connection and reports whether the
// target is known. *realtime.Hub implements it.
type TargetSender interface {
	SendTo(id, event string, payload interface{}) bool
}

// Envelope is an inbound handshake message. AckID, when set on an offer,
// requests an explicit ack event back to the sender.
type Envelope struct {
	TargetID  string          `json:"targetId"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	AckID     string          `json:"ackId,omitempty"`
}

// forwarded is what the addressed peer receives.
type forwarded struct {
	From      string          `json:"from"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type ackPayload struct {
	AckID   string `json:"ackId"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Relay is stateless handshake forwarding. Delivery to a stale or unknown
// target is logged and dropped, never surfaced as a connection error.
type Relay struct {
	send   TargetSender
	logger *zap.Logger
}

// New creates a relay over the given sender.
func New(send TargetSender, logger *zap.Logger) *Relay {
	return &Relay{send: send, logger: logger}
}

// Offer forwards a broadcaster offer to the addressed viewer. When the
// envelope carries an ackId the sender gets an ack event either way.
func (r *Relay) Offer(from string, data json.RawMessage) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.logger.Debug("malformed offer dropped", zap.String("from", from), zap.Error(err))
		return
	}
	if env.TargetID == "" {
		r.ack(from, env.AckID, false, "no target ID provided")
		return
	}
	if !r.send.SendTo(env.TargetID, "offer", forwarded{From: from, SDP: env.SDP}) {
		r.logger.Warn("offer target unknown, dropped",
			zap.String("from", from),
			zap.String("target", env.TargetID),
		)
		r.ack(from, env.AckID, false, "unknown target")
		return
	}
	r.logger.Debug("offer forwarded", zap.String("from", from), zap.String("target", env.TargetID))
	r.ack(from, env.AckID, true, "")
}

// Answer forwards a viewer answer to the addressed connection, expected to
// be the broadcaster.
func (r *Relay) Answer(from string, data json.RawMessage) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.TargetID == "" {
		r.logger.Debug("malformed answer dropped", zap.String("from", from))
		return
	}
	if !r.send.SendTo(env.TargetID, "answer", forwarded{From: from, SDP: env.SDP}) {
		r.logger.Warn("answer target unknown, dropped",
			zap.String("from", from),
			zap.String("target", env.TargetID),
		)
		return
	}
	r.logger.Debug("answer forwarded", zap.String("from", from), zap.String("target", env.TargetID))
}

// Candidate forwards an ICE candidate, usable by either side. Per-target
// ordering is preserved by the sender's delivery channel.
func (r *Relay) Candidate(from string, data json.RawMessage) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.TargetID == "" {
		r.logger.Debug("malformed candidate dropped", zap.String("from", from))
		return
	}
	if !r.send.SendTo(env.TargetID, "ice", forwarded{From: from, Candidate: env.Candidate}) {
		r.logger.Debug("candidate target unknown, dropped",
			zap.String("from", from),
			zap.String("target", env.TargetID),
		)
	}
}

// NotifyViewerJoined tells the broadcaster a specific viewer joined, so its
// media stack can initiate an offer. The relay never initiates offers.
func (r *Relay) NotifyViewerJoined(broadcasterID, viewerID string) bool {
	ok := r.send.SendTo(broadcasterID, "viewer:join", map[string]string{"viewerId": viewerID})
	if !ok {
		r.logger.Debug("viewer join notification dropped, broadcaster unknown",
			zap.String("broadcaster", broadcasterID),
			zap.String("viewer", viewerID),
		)
	}
	return ok
}

func (r *Relay) ack(to, ackID string, success bool, errMsg string) {
	if ackID == "" {
		return
	}
	r.send.SendTo(to, "ack", ackPayload{AckID: ackID, Success: success, Error: errMsg})
}
