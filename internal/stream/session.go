package stream

// Lifecycle states of the singleton session.
const (
	StateOffline = "offline"
	StateLive    = "live"
	StatePaused  = "paused" // broadcaster disconnected, within the grace window
)

// Info is the descriptive session metadata shared with clients. Field names
// match the wire protocol.
type Info struct {
	StreamID  string `json:"streamId"`
	StartTime string `json:"startTime"`
	Title     string `json:"title"`
	Pastor    string `json:"pastor"`
	Notes     string `json:"notes"`
}

// InfoPatch is a partial update to Info; nil fields are left unchanged.
type InfoPatch struct {
	StreamID  *string `json:"streamId"`
	StartTime *string `json:"startTime"`
	Title     *string `json:"title"`
	Pastor    *string `json:"pastor"`
	Notes     *string `json:"notes"`
}

func (i *Info) apply(p InfoPatch) {
	if p.StreamID != nil {
		i.StreamID = *p.StreamID
	}
	if p.StartTime != nil {
		i.StartTime = *p.StartTime
	}
	if p.Title != nil {
		i.Title = *p.Title
	}
	if p.Pastor != nil {
		i.Pastor = *p.Pastor
	}
	if p.Notes != nil {
		i.Notes = *p.Notes
	}
}

// Session is the singleton record for the current (or most recent) broadcast.
// BroadcasterID stays set while paused so viewers keep seeing stale info
// during the grace window; it clears on expiry or explicit end.
type Session struct {
	State         string
	BroadcasterID string
	Info          Info
	LogoVisible   bool
}

// Status is the stream:status reply shape, also served over HTTP.
type Status struct {
	Online bool  `json:"online"`
	Info   *Info `json:"info,omitempty"`
}
