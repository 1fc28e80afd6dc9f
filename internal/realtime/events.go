package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Inbound event names.
const (
	EventVisitorConnected    = "visitor_connected"
	EventPageChange          = "page_change"
	EventVisitorAction       = "visitor_action"
	EventVisitorIdle         = "visitor_idle"
	EventVisitorLeft         = "visitor_left"
	EventAdminConnectRequest = "admin_connect_request"
	EventConnectionResponse  = "connection_response"
	EventJoinConversation    = "join_conversation"
	EventJoinVisitorChat     = "join_visitor_chat"
	EventTyping              = "typing"
	EventStopTyping          = "stop_typing"
	EventSendMessage         = "send_message"
	EventSendVisitorMessage  = "send_visitor_message"
)

// Outbound event names.
const (
	EventAck                       = "ack"
	EventNewVisitor                = "new_visitor"
	EventVisitorUpdate             = "visitor_update"
	EventConnectionRequest         = "connection_request"
	EventVisitorConnectionOffered  = "visitor_connection_offered"
	EventVisitorConnectionResponse = "visitor_connection_response"
	EventChatOpen                  = "chat_open"
	EventReceiveMessage            = "receive_message"
	EventNewConversation           = "new_conversation"
	EventConversationUpdate        = "conversation_update"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownEvent   = errors.New("unknown event")
)

// Frame is the envelope of every message on the socket, in both directions.
type Frame struct {
	Event string          `json:"event"`
	AckID string          `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is one decoded inbound event.
type Event interface {
	EventName() string
	validate() error
}

type VisitorConnected struct {
	SessionID   string `json:"sessionId"`
	VisitorID   string `json:"visitorId"`
	LandingPage string `json:"landingPage"`
	CurrentPage string `json:"currentPage"`
	Referrer    string `json:"referrer"`
	Device      string `json:"device"`
	Browser     string `json:"browser"`
	OS          string `json:"os"`
	IPAddress   string `json:"ipAddress"`
	Country     string `json:"country"`
	City        string `json:"city"`
	IsReturning bool   `json:"isReturning"`
}

type PageChange struct {
	SessionID          string `json:"sessionId"`
	NewPage            string `json:"newPage"`
	TimeOnPreviousPage int64  `json:"timeOnPreviousPage"`
}

type VisitorAction struct {
	SessionID   string `json:"sessionId"`
	Action      string `json:"action"`
	Element     string `json:"element"`
	Page        string `json:"page"`
	ScrollDepth int    `json:"scrollDepth"`
}

type VisitorIdle struct {
	SessionID string `json:"sessionId"`
}

type VisitorLeft struct {
	SessionID string `json:"sessionId"`
}

type AdminConnectRequest struct {
	VisitorSessionID string `json:"visitorSessionId"`
	Message          string `json:"message"`
}

type ConnectionResponse struct {
	VisitorSessionID string `json:"visitorSessionId"`
	Accepted         bool   `json:"accepted"`
}

type JoinConversation struct {
	ConversationID string `json:"conversationId"`
}

type JoinVisitorChat struct {
	VisitorSessionID string `json:"visitorSessionId"`
}

// Typing covers both typing and stop_typing.
type Typing struct {
	ConversationID string `json:"conversationId"`
	Sender         string `json:"sender"`
	stop           bool
}

type SendMessage struct {
	ConversationID  string `json:"conversationId"`
	SenderRole      string `json:"senderRole"`
	SenderName      string `json:"senderName"`
	Message         string `json:"message"`
	FileURL         string `json:"fileUrl"`
	FileName        string `json:"fileName"`
	ClientMessageID string `json:"clientMessageId"`
}

type SendVisitorMessage struct {
	VisitorSessionID string `json:"visitorSessionId"`
	SenderRole       string `json:"senderRole"`
	SenderName       string `json:"senderName"`
	Message          string `json:"message"`
	ClientMessageID  string `json:"clientMessageId"`
}

func (*VisitorConnected) EventName() string    { return EventVisitorConnected }
func (*PageChange) EventName() string          { return EventPageChange }
func (*VisitorAction) EventName() string       { return EventVisitorAction }
func (*VisitorIdle) EventName() string         { return EventVisitorIdle }
func (*VisitorLeft) EventName() string         { return EventVisitorLeft }
func (*AdminConnectRequest) EventName() string { return EventAdminConnectRequest }
func (*ConnectionResponse) EventName() string  { return EventConnectionResponse }
func (*JoinConversation) EventName() string    { return EventJoinConversation }
func (*JoinVisitorChat) EventName() string     { return EventJoinVisitorChat }
func (*SendMessage) EventName() string         { return EventSendMessage }
func (*SendVisitorMessage) EventName() string  { return EventSendVisitorMessage }

func (e *Typing) EventName() string {
	if e.stop {
		return EventStopTyping
	}
	return EventTyping
}

type missingFieldError struct {
	fields []string
}

func (e *missingFieldError) Error() string {
	return "missing " + strings.Join(e.fields, ", ")
}

// requireFields reports every empty field, in the order given as name/value
// pairs.
func requireFields(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &missingFieldError{fields: missing}
}

func (e *VisitorConnected) validate() error {
	return requireFields("sessionId", e.SessionID, "visitorId", e.VisitorID, "landingPage", e.LandingPage, "currentPage", e.CurrentPage)
}

func (e *PageChange) validate() error {
	return requireFields("sessionId", e.SessionID, "newPage", e.NewPage)
}

func (e *VisitorAction) validate() error {
	if e.ScrollDepth < 0 {
		return fmt.Errorf("scrollDepth must not be negative")
	}
	return requireFields("sessionId", e.SessionID, "action", e.Action)
}

func (e *VisitorIdle) validate() error { return requireFields("sessionId", e.SessionID) }
func (e *VisitorLeft) validate() error { return requireFields("sessionId", e.SessionID) }

func (e *AdminConnectRequest) validate() error {
	return requireFields("visitorSessionId", e.VisitorSessionID)
}

func (e *ConnectionResponse) validate() error {
	return requireFields("visitorSessionId", e.VisitorSessionID)
}

func (e *JoinConversation) validate() error {
	return requireFields("conversationId", e.ConversationID)
}

func (e *JoinVisitorChat) validate() error {
	return requireFields("visitorSessionId", e.VisitorSessionID)
}

func (e *Typing) validate() error {
	return requireFields("conversationId", e.ConversationID)
}

func (e *SendMessage) validate() error {
	if strings.TrimSpace(e.FileURL) != "" {
		return requireFields("conversationId", e.ConversationID)
	}
	return requireFields("conversationId", e.ConversationID, "message", e.Message)
}

func (e *SendVisitorMessage) validate() error {
	return requireFields("visitorSessionId", e.VisitorSessionID, "message", e.Message)
}

var registry = map[string]func() Event{
	EventVisitorConnected:    func() Event { return &VisitorConnected{} },
	EventPageChange:          func() Event { return &PageChange{} },
	EventVisitorAction:       func() Event { return &VisitorAction{} },
	EventVisitorIdle:         func() Event { return &VisitorIdle{} },
	EventVisitorLeft:         func() Event { return &VisitorLeft{} },
	EventAdminConnectRequest: func() Event { return &AdminConnectRequest{} },
	EventConnectionResponse:  func() Event { return &ConnectionResponse{} },
	EventJoinConversation:    func() Event { return &JoinConversation{} },
	EventJoinVisitorChat:     func() Event { return &JoinVisitorChat{} },
	EventTyping:              func() Event { return &Typing{} },
	EventStopTyping:          func() Event { return &Typing{stop: true} },
	EventSendMessage:         func() Event { return &SendMessage{} },
	EventSendVisitorMessage:  func() Event { return &SendVisitorMessage{} },
}

// Decode parses a raw frame into its envelope and typed event. The frame is
// returned even when the event fails to decode so the caller can still ack.
func Decode(raw []byte) (Frame, Event, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	newEvent, ok := registry[frame.Event]
	if !ok {
		return frame, nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event)
	}

	event := newEvent()
	data := bytes.TrimSpace(frame.Data)
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := json.Unmarshal(data, event); err != nil {
			return frame, nil, fmt.Errorf("%w: %s data: %v", ErrMalformedFrame, frame.Event, err)
		}
	}
	if err := event.validate(); err != nil {
		return frame, nil, err
	}
	return frame, event, nil
}

// Encode builds an outbound frame.
func Encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

// IsInbound reports whether name is an event clients may send.
func IsInbound(name string) bool {
	_, ok := registry[name]
	return ok
}
