package server

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// State is the position of a connection in the join/message/disconnect
// protocol.
type State int

const (
	// StateConnected means the transport is open but no name is set.
	StateConnected State = iota
	// StateJoined means the connection has a display name and may send.
	StateJoined
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Publisher is the broadcast side a session triggers.
type Publisher interface {
	Publish(ctx context.Context, msg ChatMessage) (PublishReport, error)
}

// Session drives one connection through Connected -> Joined -> Closed. Its
// methods are called from the connection's read loop and from disconnect
// handling, which may run on different goroutines.
type Session struct {
	mu        sync.Mutex
	handle    Handle
	state     State
	name      string
	registry  *Registry
	publisher Publisher
	log       *zap.Logger
}

// NewSession creates a session for a connection already registered under
// handle.
func NewSession(handle Handle, registry *Registry, publisher Publisher, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		handle:    handle,
		state:     StateConnected,
		registry:  registry,
		publisher: publisher,
		log:       log.With(zap.Stringer("handle", handle)),
	}
}

// Handle returns the registry handle of the session's connection.
func (s *Session) Handle() Handle {
	return s.handle
}

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Name returns the joined display name, empty before join.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Join records username in the registry and announces it to the room. A
// second join while joined renames the connection and announces again.
func (s *Session) Join(ctx context.Context, username string) error {
	name := strings.TrimSpace(username)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if name == "" {
		s.mu.Unlock()
		return ErrInvalidJoin
	}
	if err := s.registry.SetName(s.handle, name); err != nil {
		s.mu.Unlock()
		s.log.Warn("Join on removed connection", zap.Error(err))
		return err
	}
	s.state = StateJoined
	s.name = name
	s.mu.Unlock()

	s.log.Info("Client joined", zap.String("name", name))
	_, err := s.publisher.Publish(ctx, joinNotice(name))
	return err
}

// Message broadcasts text under the name the registry holds for this
// connection. Blank text is ignored. claimedSender is the sender field the
// client put on the frame; the recorded name always wins and a mismatch is
// only logged. A connection evicted from the registry can no longer publish.
func (s *Session) Message(ctx context.Context, text, claimedSender string) error {
	switch s.State() {
	case StateClosed:
		return ErrSessionClosed
	case StateConnected:
		return ErrProtocolViolation
	}

	member, err := s.registry.Lookup(s.handle)
	if err != nil {
		s.log.Warn("Message on removed connection", zap.Error(err))
		return err
	}
	name := member.Name

	if strings.TrimSpace(text) == "" {
		return nil
	}

	if claimedSender != "" && claimedSender != name {
		s.log.Warn("Ignoring mismatched sender field",
			zap.String("claimed", claimedSender),
			zap.String("name", name))
	}

	_, err = s.publisher.Publish(ctx, ChatMessage{Sender: name, Body: text})
	return err
}

// Disconnect removes the connection from the registry. It is safe to call
// more than once. No leave notice is broadcast.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	if s.registry.Unregister(s.handle) {
		s.log.Info("Client unregistered", zap.Int("clients", s.registry.Len()))
	}
}
