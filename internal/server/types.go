package server

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SystemSender is the sender name used for notices generated by the server.
const SystemSender = "system"

// Event names carried in the envelope. They match the socket.io event names
// used by the browser client.
const (
	EventJoin    = "join"
	EventMessage = "message"
	EventError   = "error"
)

// Handle identifies a connection inside the registry. It is assigned at
// accept time and is unrelated to the display name a client asserts.
type Handle uuid.UUID

// NewHandle returns a fresh random handle.
func NewHandle() Handle {
	return Handle(uuid.New())
}

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// ChatMessage is an immutable broadcast value. Timestamp is assigned by the
// hub at broadcast time, never by the client.
type ChatMessage struct {
	Sender    string
	Body      string
	Timestamp time.Time
}

// joinNotice builds the system message announcing a newly joined user.
func joinNotice(username string) ChatMessage {
	return ChatMessage{Sender: SystemSender, Body: username + " has joined the chat"}
}

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload is the data of an inbound join event.
type JoinPayload struct {
	Username string `json:"username"`
}

// MessagePayload is the data of a message event. Inbound frames carry Sender
// and Msg; outbound frames additionally carry the broadcast timestamp.
type MessagePayload struct {
	Sender    string     `json:"sender"`
	Msg       string     `json:"msg"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// ErrorPayload is sent only to the client whose event was rejected.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encodeEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// encodeChatMessage renders a ChatMessage as an outbound message event.
func encodeChatMessage(msg ChatMessage) ([]byte, error) {
	ts := msg.Timestamp.UTC()
	return encodeEnvelope(EventMessage, MessagePayload{
		Sender:    msg.Sender,
		Msg:       msg.Body,
		Timestamp: &ts,
	})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
