// Package server tracks which display name, if any, each connection has
// claimed. The registry is the source of truth for the presence list.
package server

// SessionRegistry maps connection identifiers to display names. It is
// owned by the hub and must only be mutated from the hub's run loop;
// it carries no locking of its own.
type SessionRegistry struct {
	names map[string]string
	order []string // connection ids, oldest registration first
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{names: make(map[string]string)}
}

// Join registers or overwrites the session for a connection. Duplicate
// display names are permitted; a connection that re-joins keeps its
// original position in the registration order.
func (r *SessionRegistry) Join(connID, displayName string) {
	if _, ok := r.names[connID]; !ok {
		r.order = append(r.order, connID)
	}
	r.names[connID] = displayName
}

// Remove deletes the session for a connection and returns the name it
// held. Removing a connection that never joined is a harmless no-op.
func (r *SessionRegistry) Remove(connID string) (string, bool) {
	name, ok := r.names[connID]
	if !ok {
		return "", false
	}
	delete(r.names, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return name, true
}

// Name returns the display name a connection joined with.
func (r *SessionRegistry) Name(connID string) (string, bool) {
	name, ok := r.names[connID]
	return name, ok
}

// Resolve returns the connection currently holding a display name. When
// several sessions share the name, the earliest registration wins.
func (r *SessionRegistry) Resolve(displayName string) (string, bool) {
	for _, id := range r.order {
		if r.names[id] == displayName {
			return id, true
		}
	}
	return "", false
}

// DisplayNames lists current names in registration order, duplicates
// included. The result is never nil so it encodes as a JSON array.
func (r *SessionRegistry) DisplayNames() []string {
	names := make([]string, 0, len(r.order))
	for _, id := range r.order {
		names = append(names, r.names[id])
	}
	return names
}

// Len reports the number of active sessions.
func (r *SessionRegistry) Len() int {
	return len(r.names)
}
