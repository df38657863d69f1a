// Package server implements the real-time core of the chat room.
//
// The implementation is organized into specialized files: the Registry of
// live connections, the Hub that fans messages out, the Session state machine
// each connection follows, and the Gateway with its HTTP handlers and
// WebSocket pumps.
package server
