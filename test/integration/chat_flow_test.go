package integration

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulsechat/relay/internal/server"
	"github.com/pulsechat/relay/test/testhelpers"
)

const eventWait = 2 * time.Second

// startRelay brings up the shared hub behind a fresh test server with
// default configuration.
func startRelay(t *testing.T) *httptest.Server {
	t.Helper()
	server.SetConfig(nil)
	server.StartHub()

	testServer := testhelpers.CreateTestServer(server.SetupRoutes())
	t.Cleanup(testServer.Close)

	// The hub is shared between tests; give disconnects from a previous
	// test a moment to drain before new clients register.
	time.Sleep(100 * time.Millisecond)
	return testServer
}

func connect(t *testing.T, testServer *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, err := testhelpers.ConnectWebSocket(testhelpers.BuildWebSocketURL(t, testServer.URL))
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func countName(users []string, name string) int {
	n := 0
	for _, u := range users {
		if u == name {
			n++
		}
	}
	return n
}

func TestJoinPresenceAndNotice(t *testing.T) {
	testServer := startRelay(t)

	alice := connect(t, testServer)
	bob := connect(t, testServer)

	testhelpers.Join(t, alice, "it-alice")
	evt := testhelpers.WaitForEvent(t, alice, server.EventOnlineUsers, eventWait)
	var presence server.OnlineUsersPayload
	testhelpers.DecodeData(t, evt, &presence)
	if countName(presence.Users, "it-alice") != 1 {
		t.Errorf("Presence %v does not list it-alice exactly once", presence.Users)
	}

	testhelpers.Join(t, bob, "it-bob")
	evt = testhelpers.WaitForEvent(t, alice, server.EventUserJoined, eventWait)
	var notice server.NoticePayload
	testhelpers.DecodeData(t, evt, &notice)
	if notice.Text != "it-bob joined the chat" {
		t.Errorf("Notice = %q, want %q", notice.Text, "it-bob joined the chat")
	}

	evt = testhelpers.WaitForEvent(t, bob, server.EventOnlineUsers, eventWait)
	testhelpers.DecodeData(t, evt, &presence)
	if countName(presence.Users, "it-alice") != 1 || countName(presence.Users, "it-bob") != 1 {
		t.Errorf("Presence %v does not list both users", presence.Users)
	}
}

func TestGlobalBroadcastIncludesSender(t *testing.T) {
	testServer := startRelay(t)

	alice := connect(t, testServer)
	bob := connect(t, testServer)
	testhelpers.Join(t, alice, "bc-alice")
	testhelpers.Join(t, bob, "bc-bob")
	testhelpers.WaitForEvent(t, alice, server.EventUserJoined, eventWait)

	testhelpers.SendEvent(t, alice, server.EventSendMessage, server.ChatPayload{Message: "hi"})

	for name, conn := range map[string]*websocket.Conn{"sender": alice, "receiver": bob} {
		evt := testhelpers.WaitForEvent(t, conn, server.EventReceiveMessage, eventWait)
		var msg server.IncomingMessagePayload
		testhelpers.DecodeData(t, evt, &msg)
		if msg.Username != "bc-alice" || msg.Message != "hi" {
			t.Errorf("%s got %+v, want message hi from bc-alice", name, msg)
		}
		if msg.Timestamp == "" {
			t.Errorf("%s got empty timestamp", name)
		}
	}
}

func TestPrivateMessageDelivery(t *testing.T) {
	testServer := startRelay(t)

	alice := connect(t, testServer)
	bob := connect(t, testServer)
	carol := connect(t, testServer)
	testhelpers.Join(t, alice, "pm-alice")
	testhelpers.Join(t, bob, "pm-bob")
	testhelpers.Join(t, carol, "pm-carol")
	testhelpers.WaitForEvent(t, alice, server.EventOnlineUsers, eventWait)

	// A message to an offline name vanishes without a trace.
	testhelpers.SendEvent(t, alice, server.EventPrivateMessage,
		server.PrivatePayload{ToUsername: "pm-nobody", Message: "void"})

	testhelpers.SendEvent(t, alice, server.EventPrivateMessage,
		server.PrivatePayload{ToUsername: "pm-bob", Message: "secret"})

	evt := testhelpers.WaitForEvent(t, bob, server.EventPrivateMessage, eventWait)
	var dm server.PrivateDeliveryPayload
	testhelpers.DecodeData(t, evt, &dm)
	if dm.From != "pm-alice" || dm.Message != "secret" {
		t.Errorf("DM = %+v, want secret from pm-alice", dm)
	}
	if dm.Timestamp == "" {
		t.Error("DM timestamp is empty")
	}

	// Nobody else sees a private message. Last read on these conns.
	testhelpers.ExpectNoEvent(t, carol, server.EventPrivateMessage, 300*time.Millisecond)
	testhelpers.ExpectNoEvent(t, alice, server.EventPrivateMessage, 300*time.Millisecond)
}

func TestRoomScopedDelivery(t *testing.T) {
	testServer := startRelay(t)

	alice := connect(t, testServer)
	bob := connect(t, testServer)
	carol := connect(t, testServer)
	testhelpers.Join(t, alice, "rm-alice")
	testhelpers.Join(t, bob, "rm-bob")
	testhelpers.Join(t, carol, "rm-carol")
	testhelpers.WaitForEvent(t, alice, server.EventOnlineUsers, eventWait)

	testhelpers.SendEvent(t, alice, server.EventJoinRoom, server.RoomPayload{Room: "it-gophers"})
	testhelpers.SendEvent(t, bob, server.EventJoinRoom, server.RoomPayload{Room: "it-gophers"})
	testhelpers.SendEvent(t, carol, server.EventJoinRoom, server.RoomPayload{Room: "it-other"})

	// Room joins are silent; give the hub a beat to process them.
	time.Sleep(100 * time.Millisecond)

	testhelpers.SendEvent(t, alice, server.EventSendMessageToRoom,
		server.RoomChatPayload{Message: "room only"})

	for name, conn := range map[string]*websocket.Conn{"sender": alice, "member": bob} {
		evt := testhelpers.WaitForEvent(t, conn, server.EventReceiveMessage, eventWait)
		var msg server.IncomingMessagePayload
		testhelpers.DecodeData(t, evt, &msg)
		if msg.Username != "rm-alice" || msg.Message != "room only" {
			t.Errorf("%s got %+v, want room only from rm-alice", name, msg)
		}
	}

	testhelpers.ExpectNoEvent(t, carol, server.EventReceiveMessage, 300*time.Millisecond)
}

func TestTypingIndicator(t *testing.T) {
	testServer := startRelay(t)

	alice := connect(t, testServer)
	bob := connect(t, testServer)
	testhelpers.Join(t, alice, "ty-alice")
	testhelpers.Join(t, bob, "ty-bob")
	testhelpers.WaitForEvent(t, alice, server.EventUserJoined, eventWait)

	testhelpers.SendEvent(t, alice, server.EventTyping, nil)
	evt := testhelpers.WaitForEvent(t, bob, server.EventTyping, eventWait)
	var typing server.TypingPayload
	testhelpers.DecodeData(t, evt, &typing)
	if typing.Username != "ty-alice" {
		t.Errorf("Typing username = %q, want ty-alice", typing.Username)
	}

	testhelpers.SendEvent(t, alice, server.EventStopTyping, nil)
	testhelpers.WaitForEvent(t, bob, server.EventStopTyping, eventWait)

	// The typist never hears their own indicator. Last read on alice.
	testhelpers.ExpectNoEvent(t, alice, server.EventTyping, 300*time.Millisecond)
}

func TestReactionAndReadReceipt(t *testing.T) {
	testServer := startRelay(t)

	alice := connect(t, testServer)
	bob := connect(t, testServer)
	testhelpers.Join(t, alice, "rr-alice")
	testhelpers.Join(t, bob, "rr-bob")
	testhelpers.WaitForEvent(t, alice, server.EventUserJoined, eventWait)

	testhelpers.SendEvent(t, bob, server.EventReactToMessage,
		server.ReactionPayload{MessageIndex: 0, Reaction: "👍"})

	for name, conn := range map[string]*websocket.Conn{"reactor": bob, "other": alice} {
		evt := testhelpers.WaitForEvent(t, conn, server.EventMessageReaction, eventWait)
		var reaction server.ReactionNoticePayload
		testhelpers.DecodeData(t, evt, &reaction)
		if reaction.Username != "rr-bob" || reaction.Reaction != "👍" {
			t.Errorf("%s got %+v, want 👍 from rr-bob", name, reaction)
		}
	}

	testhelpers.SendEvent(t, bob, server.EventMessageRead,
		server.ReadPayload{From: "rr-alice", MessageIndex: 4})

	evt := testhelpers.WaitForEvent(t, alice, server.EventMessageReadAck, eventWait)
	var ack server.ReadAckPayload
	testhelpers.DecodeData(t, evt, &ack)
	if ack.By != "rr-bob" || ack.MessageIndex != 4 {
		t.Errorf("Ack = %+v, want index 4 by rr-bob", ack)
	}

	// The acknowledger gets nothing back. Last read on bob.
	testhelpers.ExpectNoEvent(t, bob, server.EventMessageReadAck, 300*time.Millisecond)
}

func TestDisconnectBroadcastsLeave(t *testing.T) {
	testServer := startRelay(t)

	alice := connect(t, testServer)
	testhelpers.Join(t, alice, "dc-alice")
	testhelpers.WaitForEvent(t, alice, server.EventOnlineUsers, eventWait)

	temp, err := testhelpers.ConnectWebSocket(testhelpers.BuildWebSocketURL(t, testServer.URL))
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	testhelpers.Join(t, temp, "dc-temp")
	testhelpers.WaitForEvent(t, alice, server.EventUserJoined, eventWait)

	if err := testhelpers.CloseWebSocket(temp); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	evt := testhelpers.WaitForEvent(t, alice, server.EventUserLeft, eventWait)
	var notice server.NoticePayload
	testhelpers.DecodeData(t, evt, &notice)
	if notice.Text != "dc-temp left the chat" {
		t.Errorf("Notice = %q, want %q", notice.Text, "dc-temp left the chat")
	}

	evt = testhelpers.WaitForEvent(t, alice, server.EventOnlineUsers, eventWait)
	var presence server.OnlineUsersPayload
	testhelpers.DecodeData(t, evt, &presence)
	if countName(presence.Users, "dc-temp") != 0 {
		t.Errorf("Presence %v still lists dc-temp", presence.Users)
	}
}

func TestDisconnectWithoutJoinIsSilent(t *testing.T) {
	testServer := startRelay(t)

	alice := connect(t, testServer)
	testhelpers.Join(t, alice, "sl-alice")
	testhelpers.WaitForEvent(t, alice, server.EventOnlineUsers, eventWait)

	ghost, err := testhelpers.ConnectWebSocket(testhelpers.BuildWebSocketURL(t, testServer.URL))
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := testhelpers.CloseWebSocket(ghost); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	testhelpers.ExpectNoEvent(t, alice, server.EventUserLeft, 300*time.Millisecond)
}

func TestDuplicateNamesBothListed(t *testing.T) {
	testServer := startRelay(t)

	eve1 := connect(t, testServer)
	eve2 := connect(t, testServer)
	observer := connect(t, testServer)

	testhelpers.Join(t, eve1, "dup-eve")
	testhelpers.Join(t, eve2, "dup-eve")

	// Presence updates arrive once per join; read until the list carries
	// the name twice.
	deadline := time.Now().Add(eventWait)
	for {
		evt := testhelpers.WaitForEvent(t, observer, server.EventOnlineUsers, time.Until(deadline))
		var presence server.OnlineUsersPayload
		testhelpers.DecodeData(t, evt, &presence)
		if countName(presence.Users, "dup-eve") == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Presence %v never listed dup-eve twice", presence.Users)
		}
	}
}
