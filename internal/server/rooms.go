package server

// RoomMembership tracks the single active room per connection. Joining a
// room overwrites the previous choice and notifies nobody. Like the
// session registry it is mutated only from the hub's run loop.
type RoomMembership struct {
	rooms map[string]string // connection id -> room tag
}

// NewRoomMembership returns an empty membership table.
func NewRoomMembership() *RoomMembership {
	return &RoomMembership{rooms: make(map[string]string)}
}

// Join sets the connection's active room, replacing any previous one.
func (m *RoomMembership) Join(connID, room string) {
	m.rooms[connID] = room
}

// Current returns the connection's active room, if it ever joined one.
func (m *RoomMembership) Current(connID string) (string, bool) {
	room, ok := m.rooms[connID]
	return room, ok
}

// Members lists the connections whose active room is the given tag. The
// hub filters the result against live connections, so stale entries are
// inert rather than dangerous.
func (m *RoomMembership) Members(room string) []string {
	var members []string
	for id, r := range m.rooms {
		if r == room {
			members = append(members, id)
		}
	}
	return members
}

// Forget drops the membership entry for a connection.
func (m *RoomMembership) Forget(connID string) {
	delete(m.rooms, connID)
}
