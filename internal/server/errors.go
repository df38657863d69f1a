package server

import "errors"

var (
	// ErrUnknownConnection is returned by registry operations on a handle
	// that was already removed, typically a race with disconnect.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrInvalidJoin rejects a join with an empty or whitespace-only name.
	ErrInvalidJoin = errors.New("invalid join: username must not be empty")
	// ErrProtocolViolation rejects a message sent before a successful join.
	ErrProtocolViolation = errors.New("protocol violation: join before sending messages")
	// ErrSessionClosed is returned for events on a disconnected session.
	ErrSessionClosed = errors.New("session closed")
	// ErrOutboxFull is returned when a direct reply cannot be queued.
	ErrOutboxFull = errors.New("outbox full")
	// ErrHubClosed is returned by Publish once the hub has stopped.
	ErrHubClosed = errors.New("hub closed")
)

// Wire error codes sent to the offending client.
const (
	codeInvalidJoin       = "invalid_join"
	codeProtocolViolation = "protocol_violation"
	codeBadRequest        = "bad_request"
	codeRateLimited       = "rate_limited"
	codeUnavailable       = "unavailable"
)

// errorCode maps a session error to the code reported on the wire.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidJoin):
		return codeInvalidJoin
	case errors.Is(err, ErrProtocolViolation):
		return codeProtocolViolation
	case errors.Is(err, ErrHubClosed), errors.Is(err, ErrUnknownConnection), errors.Is(err, ErrSessionClosed):
		return codeUnavailable
	default:
		return codeBadRequest
	}
}
