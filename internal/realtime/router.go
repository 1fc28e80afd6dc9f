package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/identity"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
	"github.com/jobyojnahub-a11y/websevixof/internal/service/conversation"
	"github.com/jobyojnahub-a11y/websevixof/internal/service/presence"
)

const (
	AdminRoom = "admin-room"

	defaultConnectMessage = "Hi! Need any help?"
	defaultHandlerTimeout = 10 * time.Second
)

func ConversationRoom(conversationID string) string {
	return "conv:" + conversationID
}

func VisitorRoom(sessionID string) string {
	return identity.Identity{Role: model.RoleVisitor, SubjectID: sessionID}.Room()
}

// Message is one outbound delivery. Except names a connection that must not
// receive it.
type Message struct {
	Room    string
	Event   string
	Payload interface{}
	Except  string
}

// Emitter delivers outbound events to every member of a room, wherever that
// member is connected.
type Emitter interface {
	Emit(ctx context.Context, msg Message) error
}

// Conn is the router's view of one live connection.
type Conn interface {
	ID() string
	Identity() identity.Identity
	RemoteIP() string
	Join(room string)
	Send(event string, payload interface{}) error
}

type Presence interface {
	Connect(ctx context.Context, params presence.ConnectParams) (presence.Result, error)
	PageChange(ctx context.Context, params presence.PageChangeParams) (presence.Result, error)
	RecordAction(ctx context.Context, params presence.ActionParams) (presence.Result, error)
	MarkIdle(ctx context.Context, sessionID string) (presence.Result, error)
	MarkLeft(ctx context.Context, sessionID string) (presence.Result, error)
	OfferConnection(ctx context.Context, sessionID string) (presence.Result, error)
	RecordConnectionResponse(ctx context.Context, sessionID string, accepted bool) (presence.Result, error)
}

type Conversations interface {
	PostMessage(ctx context.Context, params conversation.PostMessageParams) (conversation.MessageResult, error)
}

// MessagePayload is the receive_message body: the stored message plus the
// visitor session for visitor threads.
type MessagePayload struct {
	model.MessageItem
	VisitorSessionID string `json:"visitorSessionId,omitempty"`
}

func NewMessagePayload(message model.MessageItem) MessagePayload {
	sessionID, _ := model.VisitorSessionFromConversation(message.ConversationKey)
	return MessagePayload{MessageItem: message, VisitorSessionID: sessionID}
}

type Router struct {
	presence      Presence
	conversations Conversations
	emitter       Emitter
	timeout       time.Duration
}

func NewRouter(presence Presence, conversations Conversations, emitter Emitter, handlerTimeout time.Duration) *Router {
	if handlerTimeout <= 0 {
		handlerTimeout = defaultHandlerTimeout
	}
	return &Router{
		presence:      presence,
		conversations: conversations,
		emitter:       emitter,
		timeout:       handlerTimeout,
	}
}

// Connected joins a new connection to its identity room and, for admins,
// the shared admin room.
func (r *Router) Connected(conn Conn) {
	id := conn.Identity()
	conn.Join(id.Room())
	if id.IsAdmin() {
		conn.Join(AdminRoom)
	}
}

// HandleFrame decodes and dispatches one inbound frame and acknowledges it.
// It never fails: every outcome is reported through the returned ack.
func (r *Router) HandleFrame(ctx context.Context, conn Conn, raw []byte) Ack {
	frame, event, err := Decode(raw)

	var ack Ack
	if err != nil {
		ack = decodeFailure(err)
	} else {
		ack = r.dispatchSafely(ctx, conn, event)
	}
	ack.AckID = frame.AckID
	ack.Event = frame.Event

	logger := log.With().
		Str("event", frame.Event).
		Str("connId", conn.ID()).
		Str("role", string(conn.Identity().Role)).
		Str("subjectId", conn.Identity().SubjectID).
		Str("status", string(ack.Status)).
		Logger()
	if ack.Status == AckOK {
		logger.Debug().Msg("event handled")
	} else {
		logger.Warn().Str("reason", ack.Reason).Str("detail", ack.Message).Msg("event not applied")
	}

	if ack.AckID != "" {
		if err := conn.Send(EventAck, ack); err != nil {
			logger.Warn().Err(err).Msg("could not deliver ack")
		}
	}
	return ack
}

func (r *Router) dispatchSafely(ctx context.Context, conn Conn, event Event) (ack Ack) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("event", event.EventName()).
				Str("connId", conn.ID()).
				Interface("panic", rec).
				Msg("event handler panicked")
			ack = serverError()
		}
	}()

	ack = r.Dispatch(ctx, conn, event)
	if ack.Status == AckError && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		ack.Reason = ReasonTimeout
	}
	return ack
}

// Dispatch applies one decoded event on behalf of conn.
func (r *Router) Dispatch(ctx context.Context, conn Conn, event Event) Ack {
	switch e := event.(type) {
	case *VisitorConnected:
		return r.visitorConnected(ctx, conn, e)
	case *PageChange:
		return r.pageChange(ctx, conn, e)
	case *VisitorAction:
		return r.visitorAction(ctx, conn, e)
	case *VisitorIdle:
		return r.visitorIdle(ctx, conn, e)
	case *VisitorLeft:
		return r.visitorLeft(ctx, conn, e)
	case *AdminConnectRequest:
		return r.adminConnectRequest(ctx, conn, e)
	case *ConnectionResponse:
		return r.connectionResponse(ctx, conn, e)
	case *JoinConversation:
		return r.joinConversation(conn, e.ConversationID)
	case *JoinVisitorChat:
		return r.joinConversation(conn, model.VisitorConversationID(e.VisitorSessionID))
	case *Typing:
		return r.typing(ctx, conn, e)
	case *SendMessage:
		return r.sendMessage(ctx, conn, e)
	case *SendVisitorMessage:
		return r.sendMessage(ctx, conn, &SendMessage{
			ConversationID:  model.VisitorConversationID(e.VisitorSessionID),
			SenderRole:      e.SenderRole,
			SenderName:      e.SenderName,
			Message:         e.Message,
			ClientMessageID: e.ClientMessageID,
		})
	default:
		return rejected(ReasonUnknownEvent, fmt.Sprintf("unsupported event %T", event))
	}
}

func (r *Router) visitorConnected(ctx context.Context, conn Conn, e *VisitorConnected) Ack {
	if ack, allowed := ownSession(conn, e.SessionID); !allowed {
		return ack
	}

	ip := e.IPAddress
	if ip == "" {
		ip = conn.RemoteIP()
	}
	res, err := r.presence.Connect(ctx, presence.ConnectParams{
		SessionID:   e.SessionID,
		VisitorID:   e.VisitorID,
		LandingPage: e.LandingPage,
		CurrentPage: e.CurrentPage,
		Referrer:    e.Referrer,
		Device:      e.Device,
		Browser:     e.Browser,
		OS:          e.OS,
		IPAddress:   ip,
		Country:     e.Country,
		City:        e.City,
		IsReturning: e.IsReturning,
	})
	if err != nil {
		return r.fail(conn, EventVisitorConnected, err)
	}

	r.emit(ctx, Message{Room: AdminRoom, Event: EventNewVisitor, Payload: res.Session})
	r.emit(ctx, Message{Room: AdminRoom, Event: EventVisitorUpdate, Payload: res.Session})
	return ok(sessionAck(res))
}

func (r *Router) pageChange(ctx context.Context, conn Conn, e *PageChange) Ack {
	if ack, allowed := ownSession(conn, e.SessionID); !allowed {
		return ack
	}
	res, err := r.presence.PageChange(ctx, presence.PageChangeParams{
		SessionID:          e.SessionID,
		NewPage:            e.NewPage,
		TimeOnPreviousPage: e.TimeOnPreviousPage,
	})
	return r.presenceUpdate(ctx, conn, EventPageChange, res, err)
}

func (r *Router) visitorAction(ctx context.Context, conn Conn, e *VisitorAction) Ack {
	if ack, allowed := ownSession(conn, e.SessionID); !allowed {
		return ack
	}
	res, err := r.presence.RecordAction(ctx, presence.ActionParams{
		SessionID:   e.SessionID,
		Action:      e.Action,
		Element:     e.Element,
		Page:        e.Page,
		ScrollDepth: e.ScrollDepth,
	})
	return r.presenceUpdate(ctx, conn, EventVisitorAction, res, err)
}

func (r *Router) visitorIdle(ctx context.Context, conn Conn, e *VisitorIdle) Ack {
	if ack, allowed := ownSession(conn, e.SessionID); !allowed {
		return ack
	}
	res, err := r.presence.MarkIdle(ctx, e.SessionID)
	return r.presenceUpdate(ctx, conn, EventVisitorIdle, res, err)
}

func (r *Router) visitorLeft(ctx context.Context, conn Conn, e *VisitorLeft) Ack {
	if ack, allowed := ownSession(conn, e.SessionID); !allowed {
		return ack
	}
	res, err := r.presence.MarkLeft(ctx, e.SessionID)
	if err != nil {
		return r.fail(conn, EventVisitorLeft, err)
	}
	r.emit(ctx, Message{Room: AdminRoom, Event: EventVisitorLeft, Payload: map[string]string{"sessionId": e.SessionID}})
	return ok(sessionAck(res))
}

// presenceUpdate broadcasts the stored record after a change. Late events
// on a session that has left change nothing and broadcast nothing.
func (r *Router) presenceUpdate(ctx context.Context, conn Conn, event string, res presence.Result, err error) Ack {
	if err != nil {
		return r.fail(conn, event, err)
	}
	if res.Changed {
		r.emit(ctx, Message{Room: AdminRoom, Event: EventVisitorUpdate, Payload: res.Session})
	}
	return ok(sessionAck(res))
}

func (r *Router) adminConnectRequest(ctx context.Context, conn Conn, e *AdminConnectRequest) Ack {
	if !conn.Identity().IsAdmin() {
		return forbidden("admin_connect_request requires the admin role")
	}
	if _, err := r.presence.OfferConnection(ctx, e.VisitorSessionID); err != nil {
		return r.fail(conn, EventAdminConnectRequest, err)
	}

	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = defaultConnectMessage
	}
	r.emit(ctx, Message{Room: VisitorRoom(e.VisitorSessionID), Event: EventConnectionRequest, Payload: map[string]string{
		"visitorSessionId": e.VisitorSessionID,
		"message":          message,
	}})
	r.emit(ctx, Message{Room: AdminRoom, Event: EventVisitorConnectionOffered, Payload: map[string]string{
		"sessionId": e.VisitorSessionID,
	}})
	return ok(nil)
}

func (r *Router) connectionResponse(ctx context.Context, conn Conn, e *ConnectionResponse) Ack {
	if ack, allowed := ownSession(conn, e.VisitorSessionID); !allowed {
		return ack
	}
	if _, err := r.presence.RecordConnectionResponse(ctx, e.VisitorSessionID, e.Accepted); err != nil {
		return r.fail(conn, EventConnectionResponse, err)
	}

	r.emit(ctx, Message{Room: AdminRoom, Event: EventVisitorConnectionResponse, Payload: map[string]interface{}{
		"sessionId": e.VisitorSessionID,
		"accepted":  e.Accepted,
	}})
	if e.Accepted {
		r.emit(ctx, Message{Room: VisitorRoom(e.VisitorSessionID), Event: EventChatOpen, Payload: map[string]string{
			"visitorSessionId": e.VisitorSessionID,
			"conversationId":   model.VisitorConversationID(e.VisitorSessionID),
		}})
	}
	return ok(nil)
}

func (r *Router) joinConversation(conn Conn, conversationID string) Ack {
	if ack, allowed := canAddress(conn, conversationID); !allowed {
		return ack
	}
	conn.Join(ConversationRoom(conversationID))
	return ok(map[string]string{"conversationId": conversationID})
}

func (r *Router) typing(ctx context.Context, conn Conn, e *Typing) Ack {
	if ack, allowed := canAddress(conn, e.ConversationID); !allowed {
		return ack
	}
	sender := strings.TrimSpace(e.Sender)
	if sender == "" {
		sender = conn.Identity().DisplayName
	}
	r.emit(ctx, Message{
		Room:  ConversationRoom(e.ConversationID),
		Event: e.EventName(),
		Payload: map[string]string{
			"conversationId": e.ConversationID,
			"sender":         sender,
		},
		Except: conn.ID(),
	})
	return ok(nil)
}

func (r *Router) sendMessage(ctx context.Context, conn Conn, e *SendMessage) Ack {
	id := conn.Identity()
	if ack, allowed := canAddress(conn, e.ConversationID); !allowed {
		return ack
	}
	if e.SenderRole != "" && model.Role(e.SenderRole) != id.Role {
		return forbidden("senderRole does not match the connection identity")
	}
	senderName := strings.TrimSpace(e.SenderName)
	if senderName == "" {
		senderName = id.DisplayName
	}
	senderID := ""
	if id.Role != model.RoleVisitor {
		senderID = id.SubjectID
	}

	res, err := r.conversations.PostMessage(ctx, conversation.PostMessageParams{
		ConversationKey: e.ConversationID,
		SenderRole:      id.Role,
		SenderName:      senderName,
		SenderID:        senderID,
		Body:            e.Message,
		FileURL:         e.FileURL,
		FileName:        e.FileName,
		ClientMessageID: e.ClientMessageID,
	})
	if err != nil {
		return r.fail(conn, EventSendMessage, err)
	}

	// The sender receives the stored copy like everyone else in the room.
	conn.Join(ConversationRoom(res.Conversation.ConversationID))
	if res.Created {
		r.emit(ctx, Message{Room: AdminRoom, Event: EventNewConversation, Payload: res.Conversation})
	}
	r.emit(ctx, Message{
		Room:    ConversationRoom(res.Conversation.ConversationID),
		Event:   EventReceiveMessage,
		Payload: NewMessagePayload(res.Message),
	})

	return ok(map[string]string{
		"id":              res.Message.MessageID,
		"conversationId":  res.Conversation.ConversationID,
		"clientMessageId": res.Message.ClientMessageID,
		"timestamp":       res.Message.Timestamp,
	})
}

// emit delivers best effort: the store already holds the change, so a
// failed broadcast is logged and does not fail the event.
func (r *Router) emit(ctx context.Context, msg Message) {
	if err := r.emitter.Emit(ctx, msg); err != nil {
		log.Error().Err(err).Str("room", msg.Room).Str("event", msg.Event).Msg("broadcast failed")
	}
}

func (r *Router) fail(conn Conn, event string, err error) Ack {
	ack := failure(err)
	if ack.Status == AckError {
		log.Error().Err(err).Str("event", event).Str("connId", conn.ID()).Msg("event handler failed")
	}
	return ack
}

// ownSession admits visitor events only from the visitor the session
// belongs to.
func ownSession(conn Conn, sessionID string) (Ack, bool) {
	id := conn.Identity()
	if id.Role != model.RoleVisitor {
		return forbidden("visitor events require the visitor role"), false
	}
	if sessionID != id.SubjectID {
		return forbidden("session does not belong to this connection"), false
	}
	return Ack{}, true
}

// canAddress limits visitors to their own conversation; other roles may
// address any conversation.
func canAddress(conn Conn, conversationID string) (Ack, bool) {
	id := conn.Identity()
	if id.Role != model.RoleVisitor {
		return Ack{}, true
	}
	if conversationID != model.VisitorConversationID(id.SubjectID) {
		return forbidden("visitors may only use their own conversation"), false
	}
	return Ack{}, true
}

func sessionAck(res presence.Result) map[string]interface{} {
	return map[string]interface{}{
		"sessionId": res.Session.SessionID,
		"status":    res.Session.Status,
		"changed":   res.Changed,
	}
}
