// Package testhelpers provides common utilities for testing the chat
// relay: HTTP assertions, WebSocket dialing, and event-protocol helpers
// shared across unit and integration tests.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulsechat/relay/internal/server"
)

// DefaultOrigin is an origin accepted by the default configuration.
const DefaultOrigin = "http://localhost:8080"

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// MakeRequest creates and executes an HTTP request, returning the
// response. It fails the test if the request cannot be executed.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// BuildWebSocketURL converts an httptest server URL into the relay's
// WebSocket endpoint URL.
func BuildWebSocketURL(t *testing.T, serverURL string) string {
	t.Helper()
	if !strings.HasPrefix(serverURL, "http") {
		t.Fatalf("Unexpected test server URL: %s", serverURL)
	}
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// ConnectWebSocket dials the relay with an origin the default
// configuration accepts.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(url, DefaultOrigin)
}

// ConnectWebSocketWithOrigin dials the relay with an explicit origin.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	headers.Set("Origin", origin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendEvent writes one event-protocol envelope to the connection.
func SendEvent(t *testing.T, conn *websocket.Conn, kind server.EventType, payload any) {
	t.Helper()

	evt := server.Event{Type: kind}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal %s payload: %v", kind, err)
		}
		evt.Data = data
	}
	if err := conn.WriteJSON(evt); err != nil {
		t.Fatalf("Failed to send %s event: %v", kind, err)
	}
}

// Join announces a display name on the connection.
func Join(t *testing.T, conn *websocket.Conn, username string) {
	t.Helper()
	SendEvent(t, conn, server.EventJoin, server.JoinPayload{Username: username})
}

// WaitForEvent reads events until one of the wanted kind arrives,
// discarding others. It fails the test when the timeout expires first.
func WaitForEvent(t *testing.T, conn *websocket.Conn, kind server.EventType, timeout time.Duration) server.Event {
	t.Helper()

	deadline := time.Now().Add(timeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	for {
		var evt server.Event
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("Did not receive %s event: %v", kind, err)
		}
		if evt.Type == kind {
			return evt
		}
	}
}

// ExpectNoEvent asserts that no event of the given kind arrives within
// the window. Other event kinds are discarded.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, kind server.EventType, window time.Duration) {
	t.Helper()

	deadline := time.Now().Add(window)
	if err := conn.SetReadDeadline(deadline); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	for {
		var evt server.Event
		if err := conn.ReadJSON(&evt); err != nil {
			// Timing out is the expected outcome.
			return
		}
		if evt.Type == kind {
			t.Fatalf("Received unexpected %s event: %s", kind, evt.Data)
		}
	}
}

// DecodeData unmarshals an event's payload into dst.
func DecodeData(t *testing.T, evt server.Event, dst any) {
	t.Helper()
	if err := json.Unmarshal(evt.Data, dst); err != nil {
		t.Fatalf("Failed to decode %s payload: %v", evt.Type, err)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
