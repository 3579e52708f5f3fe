// Package chat wraps inbound chat text into uniquely identified records and
// fans them out to every connection, sender included, so all clients see a
// single ordering.
package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message kinds.
const (
	KindMessage = "message"
	KindPrayer  = "prayer"
)

const anonymousName = "Anonymous"

// Fanout is the delivery surface for chat records. *realtime.Hub implements
// it: FanOut delivers exactly once everywhere, Broadcast to local + remote.
type Fanout interface {
	Broadcast(event string, payload interface{})
	FanOut(event string, payload interface{})
}

// Message is the chat record delivered to clients.
type Message struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
}

// inbound is what clients send: username, text, optional ms timestamp.
type inbound struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Service builds and fans out chat records.
type Service struct {
	out    Fanout
	logger *zap.Logger
}

// NewService creates the chat service.
func NewService(out Fanout, logger *zap.Logger) *Service {
	return &Service{out: out, logger: logger}
}

// Message fans out a regular chat message.
func (s *Service) Message(data json.RawMessage) {
	s.fan("chat:message", "msg-", KindMessage, data)
}

// Prayer fans out a prayer request.
func (s *Service) Prayer(data json.RawMessage) {
	s.fan("chat:prayer", "prayer-", KindPrayer, data)
}

// System broadcasts a broadcaster announcement. The payload is the raw text.
func (s *Service) System(data json.RawMessage) {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		s.logger.Debug("malformed system message dropped", zap.Error(err))
		return
	}
	s.out.Broadcast("chat:system", text)
}

func (s *Service) fan(event, idPrefix, kind string, data json.RawMessage) {
	var in inbound
	if len(data) > 0 {
		if err := json.Unmarshal(data, &in); err != nil {
			s.logger.Debug("malformed chat payload dropped", zap.String("event", event), zap.Error(err))
			return
		}
	}
	if in.Username == "" {
		in.Username = anonymousName
	}
	if in.Timestamp == 0 {
		in.Timestamp = time.Now().UnixMilli()
	}
	s.out.FanOut(event, Message{
		ID:        idPrefix + uuid.New().String(),
		Username:  in.Username,
		Message:   in.Message,
		Timestamp: in.Timestamp,
		Type:      kind,
	})
}
