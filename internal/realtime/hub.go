package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Roles a connection can hold. A connection starts unassigned and is tagged
// by the coordination core when it registers.
const (
	RoleUnassigned  = "unassigned"
	RoleBroadcaster = "broadcaster"
	RoleViewer      = "viewer"
)

// Dispatcher handles inbound client events. All session, roster, signaling
// and chat logic lives behind this interface; the hub only moves bytes.
type Dispatcher interface {
	HandleEvent(clientID, event string, data json.RawMessage)
	HandleDisconnect(clientID string)
}

// Publisher publishes events to other instances (for cross-instance fan-out).
type Publisher interface {
	PublishEvent(origin, event string, payload []byte) error
}

// Subscriber subscribes to the shared event channel and invokes handler for
// incoming events. Returns a cancel function to stop the subscription.
type Subscriber interface {
	Subscribe(handler func(origin, event string, payload []byte)) (cancel func(), err error)
}

// Hub is the connection registry: every live client, its role tag, and the
// fan-out primitives. Optional Redis pub/sub extends chat and lifecycle
// announcements across instances; with a nil publisher the hub is fully
// self-contained.
type Hub struct {
	instanceID string
	mu         sync.RWMutex
	clients    map[string]*Client
	roles      map[string]string
	dispatcher Dispatcher
	pub        Publisher
	cancelSub  func()
	logger     *zap.Logger
}

// NewHub creates a hub and, when sub is non-nil, starts the cross-instance
// subscription. Events published by this instance with an origin tag are
// skipped on receipt so broadcast-and-publish is not double-delivered.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	h := &Hub{
		instanceID: uuid.New().String(),
		clients:    make(map[string]*Client),
		roles:      make(map[string]string),
		pub:        pub,
		logger:     logger,
	}
	if sub != nil {
		cancel, err := sub.Subscribe(func(origin, event string, payload []byte) {
			if origin != "" && origin == h.instanceID {
				return
			}
			h.broadcastLocal(event, json.RawMessage(payload))
		})
		if err != nil {
			logger.Warn("event bus subscribe failed, running instance-local", zap.Error(err))
		} else {
			h.cancelSub = cancel
		}
	}
	return h
}

// SetDispatcher wires the inbound event handler. Must be called before any
// client connects.
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dispatcher = d
}

// Register adds a client to the registry with an unassigned role.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.roles[c.ID] = RoleUnassigned
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID))
}

// Unregister removes a client and its role tag.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	delete(h.roles, c.ID)
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
}

// SetRole tags a registered connection with a role. Unknown ids are ignored.
func (h *Hub) SetRole(id, role string) {
	h.mu.Lock()
	if _, ok := h.clients[id]; ok {
		h.roles[id] = role
	}
	h.mu.Unlock()
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CountByRole returns the number of connections holding the given role.
func (h *Hub) CountByRole(role string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, r := range h.roles {
		if r == role {
			n++
		}
	}
	return n
}

// Broadcast sends an event to every connection, local and remote.
func (h *Hub) Broadcast(event string, payload interface{}) {
	data := marshal(payload)
	h.broadcastLocal(event, data)
	h.publish(h.instanceID, event, data)
}

// BroadcastExcept sends an event to every connection but exceptID. The
// excluded sender is always local, so remote instances deliver to all.
func (h *Hub) BroadcastExcept(exceptID, event string, payload interface{}) {
	data := marshal(payload)
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	for id, c := range h.clients {
		if id == exceptID {
			continue
		}
		c.enqueue(msg)
	}
	h.mu.RUnlock()

	h.publish(h.instanceID, event, data)
}

// SendTo sends an event to a single connection. Reports whether the target
// is registered on this instance.
func (h *Hub) SendTo(id, event string, payload interface{}) bool {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	c.enqueue(WSMessage{Event: event, Data: marshal(payload)})
	return true
}

// FanOut delivers an event exactly once to every connection on every
// instance: publish-only with no origin tag, so each instance (including
// this one) broadcasts it from its subscription. Falls back to a local
// broadcast when no publisher is configured.
func (h *Hub) FanOut(event string, payload interface{}) {
	data := marshal(payload)
	if h.pub != nil {
		if err := h.pub.PublishEvent("", event, data); err == nil {
			return
		}
		h.logger.Warn("event bus publish failed, delivering locally", zap.String("event", event))
	}
	h.broadcastLocal(event, data)
}

// Close stops the cross-instance subscription.
func (h *Hub) Close() {
	if h.cancelSub != nil {
		h.cancelSub()
	}
}

func (h *Hub) broadcastLocal(event string, data json.RawMessage) {
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	for _, c := range h.clients {
		c.enqueue(msg)
	}
	h.mu.RUnlock()
}

func (h *Hub) publish(origin, event string, data []byte) {
	if h.pub == nil {
		return
	}
	if err := h.pub.PublishEvent(origin, event, data); err != nil {
		h.logger.Warn("event bus publish failed", zap.String("event", event), zap.Error(err))
	}
}

func marshal(payload interface{}) json.RawMessage {
	switch v := payload.(type) {
	case []byte:
		return v
	case json.RawMessage:
		return v
	default:
		data, _ := json.Marshal(payload)
		return data
	}
}
