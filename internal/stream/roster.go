package stream

// AnonymousName is used when a viewer registers without a username.
const AnonymousName = "Anonymous"

// Roster is the set of connections registered as viewers, keyed by
// connection id. Its cardinality is the authoritative viewer count.
// Not self-locking: the Coordinator's mutex guards all access.
type Roster struct {
	viewers map[string]string // connection id -> display name
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{viewers: make(map[string]string)}
}

// Add upserts a viewer and returns the effective display name.
func (r *Roster) Add(id, username string) string {
	if username == "" {
		username = AnonymousName
	}
	r.viewers[id] = username
	return username
}

// Remove deletes a viewer if present and returns its display name.
func (r *Roster) Remove(id string) (string, bool) {
	name, ok := r.viewers[id]
	if ok {
		delete(r.viewers, id)
	}
	return name, ok
}

// Has reports whether the connection is a registered viewer.
func (r *Roster) Has(id string) bool {
	_, ok := r.viewers[id]
	return ok
}

// Count returns the current cardinality.
func (r *Roster) Count() int {
	return len(r.viewers)
}
