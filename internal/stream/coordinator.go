package stream

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapelcast/backend/config"
	"github.com/chapelcast/backend/internal/chat"
	"github.com/chapelcast/backend/internal/realtime"
	"github.com/chapelcast/backend/internal/signaling"
)

// DefaultTitle is used when a broadcaster registers without one.
const DefaultTitle = "Live Stream"

// Announcer is the fan-out surface the coordinator drives.
// *realtime.Hub implements it.
type Announcer interface {
	Broadcast(event string, payload interface{})
	BroadcastExcept(exceptID, event string, payload interface{})
	SendTo(id, event string, payload interface{}) bool
	FanOut(event string, payload interface{})
	SetRole(id, role string)
}

// Options configure session lifecycle behavior.
type Options struct {
	GracePeriod    time.Duration // reconnect window after broadcaster disconnect
	TakeoverPolicy string        // config.TakeoverReplace or config.TakeoverReject
}

// Coordinator owns the session state machine and viewer roster, and is the
// single dispatcher for inbound connection events. One mutex guards all
// shared state, so handlers are single-threaded-equivalent; nothing here
// blocks — every outbound interaction is a fire-and-forget send.
type Coordinator struct {
	mu     sync.Mutex
	ann    Announcer
	relay  *signaling.Relay
	chat   *chat.Service
	opts   Options
	logger *zap.Logger

	session       Session
	roster        *Roster
	graceTimer    *time.Timer
	graceStreamID string
}

// NewCoordinator creates the coordinator with an offline session.
func NewCoordinator(ann Announcer, relay *signaling.Relay, chatSvc *chat.Service, opts Options, logger *zap.Logger) *Coordinator {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 30 * time.Second
	}
	return &Coordinator{
		ann:     ann,
		relay:   relay,
		chat:    chatSvc,
		opts:    opts,
		logger:  logger,
		session: Session{State: StateOffline},
		roster:  NewRoster(),
	}
}

// HandleEvent routes one inbound client event. Malformed payloads are logged
// and dropped; unknown events are ignored. Nothing here is fatal to the
// connection or the process.
func (c *Coordinator) HandleEvent(clientID, event string, data json.RawMessage) {
	switch event {
	case "role:broadcaster":
		var info Info
		if len(data) > 0 && json.Unmarshal(data, &info) != nil {
			c.dropMalformed(clientID, event)
			return
		}
		c.registerBroadcaster(clientID, info)
	case "role:viewer":
		var p struct {
			Username string `json:"username"`
		}
		if len(data) > 0 && json.Unmarshal(data, &p) != nil {
			c.dropMalformed(clientID, event)
			return
		}
		c.addViewer(clientID, p.Username)
	case "check:stream":
		var p struct {
			StreamID string `json:"streamId"`
		}
		// guard against missing payload from new joiners
		if len(data) > 0 {
			_ = json.Unmarshal(data, &p)
		}
		c.checkStream(clientID, p.StreamID)
	case "stream:info":
		var patch InfoPatch
		if json.Unmarshal(data, &patch) != nil {
			c.dropMalformed(clientID, event)
			return
		}
		c.updateInfo(clientID, patch)
	case "stream:offline":
		c.announceOffline(clientID)
	case "stream:ended":
		c.endSession(clientID)
	case "stream:toggleLogo":
		c.toggleLogo(clientID)
	case "stream:layoutChange", "stream:visualZoom":
		c.relayPresentation(clientID, event, data)
	case "offer":
		c.relayOffer(clientID, data)
	case "answer":
		c.relay.Answer(clientID, data)
	case "ice":
		c.relay.Candidate(clientID, data)
	case "leave":
		var p struct {
			Username string `json:"username"`
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &p)
		}
		c.removeViewer(clientID, p.Username)
	case "chat:join":
		c.logger.Debug("chat join", zap.String("client_id", clientID))
	case "chat:message":
		c.chat.Message(data)
	case "chat:prayer":
		c.chat.Prayer(data)
	case "chat:system":
		c.systemMessage(clientID, data)
	default:
		c.logger.Debug("ignoring unknown event", zap.String("event", event), zap.String("client_id", clientID))
	}
}

// HandleDisconnect routes a transport-level disconnect into the state
// machine (broadcaster) or the roster (viewer).
func (c *Coordinator) HandleDisconnect(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if clientID == c.session.BroadcasterID && c.session.State == StateLive {
		c.session.State = StatePaused
		c.ann.Broadcast("broadcaster:disconnect", nil)

		if c.graceTimer != nil {
			c.graceTimer.Stop()
		}
		sid := c.session.Info.StreamID
		c.graceStreamID = sid
		c.graceTimer = time.AfterFunc(c.opts.GracePeriod, func() { c.onGraceExpiry(sid) })
		c.logger.Info("broadcaster disconnected, grace period started",
			zap.String("stream_id", sid),
			zap.Duration("grace_period", c.opts.GracePeriod),
		)
	}

	c.removeViewerLocked(clientID, "")
}

func (c *Coordinator) registerBroadcaster(id string, in Info) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resumable := in.StreamID != "" && in.StreamID == c.session.Info.StreamID &&
		(c.graceTimer != nil || c.session.State == StateLive)

	if resumable {
		// Reconnection: cancel the pending end, keep startTime and the rest
		// of the session info.
		c.cancelGraceLocked()
		if prev := c.session.BroadcasterID; prev != "" && prev != id {
			c.ann.SetRole(prev, realtime.RoleUnassigned)
		}
		c.session.BroadcasterID = id
		c.session.State = StateLive
		c.ann.SetRole(id, realtime.RoleBroadcaster)
		c.logger.Info("broadcaster reconnected within grace period",
			zap.String("client_id", id),
			zap.String("stream_id", in.StreamID),
		)
	} else {
		if c.session.State == StateLive && c.session.BroadcasterID != "" && c.session.BroadcasterID != id {
			if c.opts.TakeoverPolicy == config.TakeoverReject {
				c.logger.Warn("broadcaster registration rejected, session already live",
					zap.String("client_id", id),
					zap.String("active_broadcaster", c.session.BroadcasterID),
				)
				info := c.session.Info
				c.ann.SendTo(id, "stream:status", Status{Online: true, Info: &info})
				return
			}
			c.logger.Warn("replacing active broadcaster",
				zap.String("client_id", id),
				zap.String("replaced", c.session.BroadcasterID),
			)
			c.ann.SetRole(c.session.BroadcasterID, realtime.RoleUnassigned)
		}
		c.cancelGraceLocked()

		info := Info{
			StreamID:  in.StreamID,
			StartTime: in.StartTime,
			Title:     in.Title,
			Pastor:    in.Pastor,
			Notes:     in.Notes,
		}
		if info.StreamID == "" {
			info.StreamID = uuid.New().String()
		}
		if info.StartTime == "" {
			info.StartTime = time.Now().UTC().Format(time.RFC3339)
		}
		if info.Title == "" {
			info.Title = DefaultTitle
		}
		c.session.Info = info
		c.session.BroadcasterID = id
		c.session.State = StateLive
		c.ann.SetRole(id, realtime.RoleBroadcaster)
		c.logger.Info("broadcaster registered",
			zap.String("client_id", id),
			zap.String("stream_id", info.StreamID),
		)
	}

	info := c.session.Info
	c.ann.Broadcast("stream:status", Status{Online: true, Info: &info})
	c.ann.Broadcast("stream:started", nil)
}

func (c *Coordinator) addViewer(id, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.roster.Add(id, username)
	c.ann.SetRole(id, realtime.RoleViewer)
	c.logger.Debug("viewer registered", zap.String("client_id", id), zap.String("username", name))

	c.announceViewerCountLocked()

	online := c.session.BroadcasterID != ""
	var info *Info
	if online {
		cp := c.session.Info
		info = &cp
	}
	c.ann.SendTo(id, "stream:status", Status{Online: online, Info: info})

	if online {
		c.relay.NotifyViewerJoined(c.session.BroadcasterID, id)
	}

	c.ann.SendTo(id, "stream:logoState", c.session.LogoVisible)
	c.ann.Broadcast("chat:userJoin", name)
}

func (c *Coordinator) removeViewer(id, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeViewerLocked(id, username)
}

func (c *Coordinator) removeViewerLocked(id, username string) {
	name, ok := c.roster.Remove(id)
	if !ok {
		return
	}
	if username != "" {
		name = username
	}
	if name == "" {
		name = AnonymousName
	}
	c.ann.SetRole(id, realtime.RoleUnassigned)
	c.announceViewerCountLocked()
	c.ann.Broadcast("chat:userLeave", name)
}

func (c *Coordinator) checkStream(id, streamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	online := c.session.BroadcasterID != ""
	if streamID != "" && streamID == c.session.Info.StreamID && online {
		// A viewer rejoining after a page reload.
		info := c.session.Info
		c.ann.SendTo(id, "stream:status", Status{Online: true, Info: &info})
		return
	}
	var info *Info
	if online {
		cp := c.session.Info
		info = &cp
	}
	c.ann.SendTo(id, "stream:status", Status{Online: online, Info: info})
}

func (c *Coordinator) updateInfo(id string, patch InfoPatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Benign out-of-order message after role changes: no-op, no error.
	if id != c.session.BroadcasterID {
		c.logger.Debug("stream:info from non-broadcaster ignored", zap.String("client_id", id))
		return
	}
	c.session.Info.apply(patch)
	info := c.session.Info
	c.ann.Broadcast("stream:info", info)
}

func (c *Coordinator) announceOffline(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.session.BroadcasterID {
		return
	}
	// Soft hide: announce offline without tearing the session down.
	c.ann.Broadcast("stream:status", Status{Online: false})
}

func (c *Coordinator) endSession(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.session.BroadcasterID {
		return
	}
	c.logger.Info("stream ended by broadcaster", zap.String("stream_id", c.session.Info.StreamID))
	c.endSessionLocked()
}

func (c *Coordinator) endSessionLocked() {
	c.cancelGraceLocked()
	if prev := c.session.BroadcasterID; prev != "" {
		c.ann.SetRole(prev, realtime.RoleUnassigned)
	}
	c.session = Session{State: StateOffline}
	c.ann.Broadcast("stream:ended", nil)
}

func (c *Coordinator) onGraceExpiry(streamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Compare by streamID at fire time: a cancelled or superseded timer
	// must never end a session that has already resumed or been replaced.
	if c.session.State != StatePaused || c.graceStreamID != streamID || c.session.Info.StreamID != streamID {
		return
	}
	c.graceTimer = nil
	c.graceStreamID = ""
	c.logger.Info("grace period expired, ending stream", zap.String("stream_id", streamID))
	c.endSessionLocked()
}

func (c *Coordinator) toggleLogo(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.session.BroadcasterID {
		return
	}
	c.session.LogoVisible = !c.session.LogoVisible
	c.ann.Broadcast("stream:logoState", c.session.LogoVisible)
}

func (c *Coordinator) relayPresentation(id, event string, data json.RawMessage) {
	c.mu.Lock()
	isBroadcaster := id == c.session.BroadcasterID
	c.mu.Unlock()
	if !isBroadcaster {
		return
	}
	c.ann.BroadcastExcept(id, event, data)
}

func (c *Coordinator) relayOffer(id string, data json.RawMessage) {
	c.mu.Lock()
	isBroadcaster := id == c.session.BroadcasterID
	c.mu.Unlock()
	if !isBroadcaster {
		c.logger.Debug("offer from non-broadcaster ignored", zap.String("client_id", id))
		return
	}
	c.relay.Offer(id, data)
}

func (c *Coordinator) systemMessage(id string, data json.RawMessage) {
	c.mu.Lock()
	isBroadcaster := id == c.session.BroadcasterID
	c.mu.Unlock()
	if !isBroadcaster {
		return
	}
	c.chat.System(data)
}

func (c *Coordinator) dropMalformed(clientID, event string) {
	c.logger.Debug("malformed payload dropped", zap.String("event", event), zap.String("client_id", clientID))
}

func (c *Coordinator) announceViewerCountLocked() {
	count := c.roster.Count()
	c.ann.Broadcast("viewerCount", count)
	c.ann.Broadcast("chat:userCount", count)
}

func (c *Coordinator) cancelGraceLocked() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
	c.graceStreamID = ""
}

// Status returns the current online/offline status with session info when
// a broadcaster is attached. Used by check:stream-equivalent HTTP reads.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.BroadcasterID == "" {
		return Status{Online: false}
	}
	info := c.session.Info
	return Status{Online: true, Info: &info}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

// ViewerCount returns the roster cardinality.
func (c *Coordinator) ViewerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roster.Count()
}
