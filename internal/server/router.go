// Package server routes inbound client events to their recipients. The
// routing rules are stateless: each handler reads the registry and room
// membership, then fans out through the hub's delivery primitives.
package server

import "encoding/json"

// route dispatches a single inbound event. Unknown kinds and malformed
// payloads are logged no-ops; nothing here can fail a connection.
func (h *Hub) route(c *Client, evt Event) {
	switch evt.Type {
	case EventJoin:
		h.handleJoin(c, evt.Data)
	case EventSendMessage:
		h.handleSendMessage(c, evt.Data)
	case EventSendMessageToRoom:
		h.handleSendMessageToRoom(c, evt.Data)
	case EventJoinRoom:
		h.handleJoinRoom(c, evt.Data)
	case EventTyping:
		h.handleTyping(c)
	case EventStopTyping:
		h.handleStopTyping(c)
	case EventReactToMessage:
		h.handleReactToMessage(c, evt.Data)
	case EventMessageRead:
		h.handleMessageRead(c, evt.Data)
	case EventPrivateMessage:
		h.handlePrivateMessage(c, evt.Data)
	default:
		h.logger.Warn("Dropping event of unknown type", "type", string(evt.Type), "addr", c.addr)
	}
}

func (h *Hub) decodePayload(c *Client, kind EventType, data json.RawMessage, dst any) bool {
	if err := json.Unmarshal(data, dst); err != nil {
		h.logger.Warn("Dropping event with invalid payload",
			"type", string(kind), "addr", c.addr, "error", err)
		return false
	}
	return true
}

// handleJoin registers the sender's display name, pushes the presence
// list to everyone, and announces the arrival to everyone else.
func (h *Hub) handleJoin(c *Client, data json.RawMessage) {
	var p JoinPayload
	if !h.decodePayload(c, EventJoin, data, &p) {
		return
	}

	h.registry.Join(c.id, p.Username)
	h.logger.Info("User joined", "username", p.Username, "addr", c.addr)

	h.broadcastPresence()
	h.emitOthers(c, EventUserJoined, NoticePayload{Text: p.Username + " joined the chat"})
}

// handleLeave releases the sender's session on disconnect. A connection
// that never joined leaves silently: no notice, no presence change.
func (h *Hub) handleLeave(c *Client) {
	h.rooms.Forget(c.id)

	name, ok := h.registry.Remove(c.id)
	if !ok {
		return
	}
	h.logger.Info("User left", "username", name, "addr", c.addr)

	h.emitAll(EventUserLeft, NoticePayload{Text: name + " left the chat"})
	h.broadcastPresence()
}

// broadcastPresence pushes the current display-name list to every
// connection. Runs after each registry mutation.
func (h *Hub) broadcastPresence() {
	h.emitAll(EventOnlineUsers, OnlineUsersPayload{Users: h.registry.DisplayNames()})
}

// handleSendMessage delivers a chat message to every connection,
// including the sender. Global chat is deliberately not room-scoped.
func (h *Hub) handleSendMessage(c *Client, data json.RawMessage) {
	var p ChatPayload
	if !h.decodePayload(c, EventSendMessage, data, &p) {
		return
	}

	// A session-less sender degrades to an anonymous message.
	username, _ := h.registry.Name(c.id)
	h.emitAll(EventReceiveMessage, IncomingMessagePayload{
		Username:  username,
		Message:   p.Message,
		Image:     p.Image,
		Timestamp: localTimestamp(),
	})
}

// handleSendMessageToRoom delivers a message to the members of the
// sender's active room. Without an active room the event is a no-op.
func (h *Hub) handleSendMessageToRoom(c *Client, data json.RawMessage) {
	var p RoomChatPayload
	if !h.decodePayload(c, EventSendMessageToRoom, data, &p) {
		return
	}

	room, ok := h.rooms.Current(c.id)
	if !ok {
		h.logger.Warn("Dropping room message from connection without a room", "addr", c.addr)
		return
	}

	username, _ := h.registry.Name(c.id)
	h.emitRoom(room, EventReceiveMessage, IncomingMessagePayload{
		Username:  username,
		Message:   p.Message,
		Timestamp: localTimestamp(),
	})
}

// handleJoinRoom switches the sender's active room. Other members are
// not notified; switching overwrites rather than layers.
func (h *Hub) handleJoinRoom(c *Client, data json.RawMessage) {
	var p RoomPayload
	if !h.decodePayload(c, EventJoinRoom, data, &p) {
		return
	}
	h.rooms.Join(c.id, p.Room)
	h.logger.Info("Connection joined room", "room", p.Room, "addr", c.addr)
}

func (h *Hub) handleTyping(c *Client) {
	username, _ := h.registry.Name(c.id)
	h.emitOthers(c, EventTyping, TypingPayload{Username: username})
}

func (h *Hub) handleStopTyping(c *Client) {
	h.emitOthers(c, EventStopTyping, nil)
}

// handleReactToMessage relays a reaction to every connection. The index
// addresses the recipients' local history and is relayed verbatim.
func (h *Hub) handleReactToMessage(c *Client, data json.RawMessage) {
	var p ReactionPayload
	if !h.decodePayload(c, EventReactToMessage, data, &p) {
		return
	}

	username, _ := h.registry.Name(c.id)
	h.emitAll(EventMessageReaction, ReactionNoticePayload{
		MessageIndex: p.MessageIndex,
		Reaction:     p.Reaction,
		Username:     username,
	})
}

// handleMessageRead forwards a read acknowledgment to the message
// author. If the author's name no longer resolves, the event is
// silently dropped.
func (h *Hub) handleMessageRead(c *Client, data json.RawMessage) {
	var p ReadPayload
	if !h.decodePayload(c, EventMessageRead, data, &p) {
		return
	}

	targetID, ok := h.registry.Resolve(p.From)
	if !ok {
		return
	}

	by, _ := h.registry.Name(c.id)
	h.emitTo(targetID, EventMessageReadAck, ReadAckPayload{
		MessageIndex: p.MessageIndex,
		By:           by,
	})
}

// handlePrivateMessage delivers a direct message to the single
// connection holding the target display name. An unresolvable target
// drops the event silently; no error is surfaced to the sender.
func (h *Hub) handlePrivateMessage(c *Client, data json.RawMessage) {
	var p PrivatePayload
	if !h.decodePayload(c, EventPrivateMessage, data, &p) {
		return
	}

	targetID, ok := h.registry.Resolve(p.ToUsername)
	if !ok {
		return
	}

	from, _ := h.registry.Name(c.id)
	h.emitTo(targetID, EventPrivateMessage, PrivateDeliveryPayload{
		From:      from,
		Message:   p.Message,
		Timestamp: localTimestamp(),
	})
}
