// Package server implements the chat relay: session registry, room
// membership, presence broadcasting, and the event router, served over
// HTTP and WebSocket.
//
// The implementation is organized into specialized files for
// configuration, the hub, the router, clients, and HTTP plumbing to keep
// the codebase maintainable and testable as the project grows.
package server
