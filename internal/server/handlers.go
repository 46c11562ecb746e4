// Package server exposes HTTP handlers, including WebSocket upgrades,
// the liveness check, and the built-in test page.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler handles WebSocket upgrade requests and hands the
// resulting connection to the hub, which launches the read/write pumps.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, hub, r.RemoteAddr)
	client.hub.register <- client
}

// HealthHandler is the liveness endpoint: a plain-text string confirming
// the relay is up.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat relay server is running!")
}

// TestPageHandler serves a small HTML page speaking the event protocol,
// useful for poking at the relay without a real frontend.
func TestPageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		slog.Warn("Error writing HTML response", "addr", r.RemoteAddr, "error", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Chat Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background: #f9f9f9; }
        input[type="text"] { padding: 5px; margin-right: 5px; }
        button { padding: 5px 12px; cursor: pointer; }
        .row { margin: 6px 0; }
    </style>
</head>
<body>
    <h1>Chat Relay Test</h1>
    <div class="row">
        <input type="text" id="username" placeholder="Display name">
        <button onclick="join()">Join</button>
    </div>
    <div class="row">
        <input type="text" id="message" placeholder="Message">
        <button onclick="send('sendMessage', {message: val('message')})">Send to all</button>
    </div>
    <div class="row">
        <input type="text" id="room" placeholder="Room">
        <button onclick="send('joinRoom', {room: val('room')})">Join room</button>
        <button onclick="send('sendMessageToRoom', {message: val('message')})">Send to room</button>
    </div>
    <div class="row">
        <input type="text" id="target" placeholder="To user">
        <button onclick="send('privateMessage', {toUsername: val('target'), message: val('message')})">DM</button>
    </div>
    <div id="log"></div>
    <script>
        let ws = null;
        function val(id) { return document.getElementById(id).value; }
        function log(text) {
            const el = document.createElement('div');
            el.textContent = text;
            const box = document.getElementById('log');
            box.appendChild(el);
            box.scrollTop = box.scrollHeight;
        }
        function connect() {
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onmessage = function(e) { log(e.data); };
            ws.onclose = function() { log('-- disconnected --'); ws = null; };
            return new Promise(function(resolve) { ws.onopen = resolve; });
        }
        async function join() {
            if (!ws) { await connect(); }
            send('join', {username: val('username')});
        }
        function send(type, data) {
            if (!ws) { log('not connected'); return; }
            ws.send(JSON.stringify({type: type, data: data}));
        }
    </script>
</body>
</html>`
