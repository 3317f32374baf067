// Package chattypes defines the read-only view the orchestrator hands to renderers.
package chattypes

// Snapshot is an immutable view of the session collection.
// Sessions are ordered newest-first. ActiveID is empty when no session is active.
// Version increases by one with every state mutation.
type Snapshot struct {
	Sessions []ChatSession
	ActiveID string
	Busy     bool
	Version  uint64
}

// ActiveSession returns the session referenced by ActiveID.
func (s Snapshot) ActiveSession() (ChatSession, bool) {
	return s.Session(s.ActiveID)
}

// Session looks up a session by id.
func (s Snapshot) Session(id string) (ChatSession, bool) {
	if id == "" {
		return ChatSession{}, false
	}
	for _, session := range s.Sessions {
		if session.ID == id {
			return session, true
		}
	}
	return ChatSession{}, false
}

// IndexOf returns the position of a session in the collection, or -1.
func (s Snapshot) IndexOf(id string) int {
	for i, session := range s.Sessions {
		if session.ID == id {
			return i
		}
	}
	return -1
}
