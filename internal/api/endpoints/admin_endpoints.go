package endpoints

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/api"
	"github.com/jobyojnahub-a11y/websevixof/internal/api/middleware"
	"github.com/jobyojnahub-a11y/websevixof/internal/config"
	"github.com/jobyojnahub-a11y/websevixof/internal/dto"
	"github.com/jobyojnahub-a11y/websevixof/internal/identity"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
	"github.com/jobyojnahub-a11y/websevixof/internal/realtime"
	conversationservice "github.com/jobyojnahub-a11y/websevixof/internal/service/conversation"
)

const (
	maxVisitorWindowMinutes = 24 * 60
	maxMessagesLimit        = 1000
)

type VisitorService interface {
	ListRecent(ctx context.Context, window time.Duration, limit int) ([]model.VisitorSessionItem, error)
	Count(ctx context.Context) (int, error)
}

type ConversationService interface {
	GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error)
	ListConversations(ctx context.Context, limit int) ([]model.ConversationItem, error)
	ListMessages(ctx context.Context, conversationID string, limit int) (conversationservice.ListMessagesResult, error)
	PostMessage(ctx context.Context, params conversationservice.PostMessageParams) (conversationservice.MessageResult, error)
	MarkRead(ctx context.Context, conversationID string, reader model.Role) (conversationservice.ReadResult, error)
	UpdateConversation(ctx context.Context, conversationID string, changes conversationservice.Changes) (model.ConversationItem, error)
	ConnectVisitor(ctx context.Context, sessionID, adminID string) (conversationservice.ConnectResult, error)
	Stats(ctx context.Context) (conversationservice.Stats, error)
}

type AdminEndpoints interface {
	Visitors(http.ResponseWriter, *http.Request) error
	ConnectVisitor(http.ResponseWriter, *http.Request) error
	Conversations(http.ResponseWriter, *http.Request) error
	UpdateConversation(http.ResponseWriter, *http.Request) error
	Messages(http.ResponseWriter, *http.Request) error
	PostMessage(http.ResponseWriter, *http.Request) error
	MarkRead(http.ResponseWriter, *http.Request) error
	Stats(http.ResponseWriter, *http.Request) error
}

type adminEndpoints struct {
	visitors      VisitorService
	conversations ConversationService
	emitter       realtime.Emitter
}

// NewAdminEndpoints serves the admin dashboard. Changes made here reach
// connected sockets through emitter.
func NewAdminEndpoints(visitors VisitorService, conversations ConversationService, emitter realtime.Emitter) AdminEndpoints {
	return &adminEndpoints{
		visitors:      visitors,
		conversations: conversations,
		emitter:       emitter,
	}
}

func (h *adminEndpoints) Visitors(w http.ResponseWriter, r *http.Request) error {
	minutes, err := intQuery(r, "windowMinutes", int(config.DefaultVisitorWindow/time.Minute), maxVisitorWindowMinutes)
	if err != nil {
		return err
	}
	limit, err := intQuery(r, "limit", config.DefaultListLimit, config.MaxListLimit)
	if err != nil {
		return err
	}

	visitors, err := h.visitors.ListRecent(r.Context(), time.Duration(minutes)*time.Minute, limit)
	if err != nil {
		return api.FromServiceError(err)
	}
	if visitors == nil {
		visitors = []model.VisitorSessionItem{}
	}
	return WriteJSON(w, http.StatusOK, visitors)
}

func (h *adminEndpoints) ConnectVisitor(w http.ResponseWriter, r *http.Request) error {
	var req dto.ConnectVisitorRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	req.VisitorSessionID = strings.TrimSpace(req.VisitorSessionID)
	if req.VisitorSessionID == "" {
		return api.BadRequest("Visitor session ID required", nil)
	}

	admin := adminIdentity(r)
	res, err := h.conversations.ConnectVisitor(r.Context(), req.VisitorSessionID, admin.SubjectID)
	if err != nil {
		return api.FromServiceError(err)
	}

	h.emit(r.Context(), realtime.Message{
		Room:  realtime.VisitorRoom(req.VisitorSessionID),
		Event: realtime.EventChatOpen,
		Payload: map[string]string{
			"visitorSessionId": req.VisitorSessionID,
			"conversationId":   res.Conversation.ConversationID,
		},
	})
	h.emit(r.Context(), realtime.Message{Room: realtime.AdminRoom, Event: realtime.EventVisitorUpdate, Payload: res.Session})
	if res.Created {
		h.emit(r.Context(), realtime.Message{Room: realtime.AdminRoom, Event: realtime.EventNewConversation, Payload: res.Conversation})
	}

	return WriteJSON(w, http.StatusOK, dto.ConnectVisitorResponse{
		Success:        true,
		ConversationID: res.Conversation.ConversationID,
		Message:        "Connected with visitor successfully",
	})
}

func (h *adminEndpoints) Conversations(w http.ResponseWriter, r *http.Request) error {
	limit, err := intQuery(r, "limit", config.DefaultListLimit, config.MaxListLimit)
	if err != nil {
		return err
	}

	conversations, err := h.conversations.ListConversations(r.Context(), limit)
	if err != nil {
		return api.FromServiceError(err)
	}
	if conversations == nil {
		conversations = []model.ConversationItem{}
	}
	return WriteJSON(w, http.StatusOK, conversations)
}

func (h *adminEndpoints) UpdateConversation(w http.ResponseWriter, r *http.Request) error {
	var req dto.UpdateConversationRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	conversation, err := h.conversations.UpdateConversation(r.Context(), chi.URLParam(r, "conversationId"), conversationservice.Changes{
		Status:   req.Status,
		Priority: req.Priority,
		Tags:     req.Tags,
	})
	if err != nil {
		return api.FromServiceError(err)
	}

	h.emit(r.Context(), realtime.Message{Room: realtime.AdminRoom, Event: realtime.EventConversationUpdate, Payload: conversation})
	return WriteJSON(w, http.StatusOK, conversation)
}

func (h *adminEndpoints) Messages(w http.ResponseWriter, r *http.Request) error {
	limit, err := intQuery(r, "limit", 0, maxMessagesLimit)
	if err != nil {
		return err
	}

	res, err := h.conversations.ListMessages(r.Context(), chi.URLParam(r, "conversationId"), limit)
	if err != nil {
		return api.FromServiceError(err)
	}
	messages := res.Messages
	if messages == nil {
		messages = []model.MessageItem{}
	}
	return WriteJSON(w, http.StatusOK, messages)
}

// PostMessage sends an admin reply into an existing conversation.
func (h *adminEndpoints) PostMessage(w http.ResponseWriter, r *http.Request) error {
	var req dto.PostMessageRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Content) == "" && req.FileURL == "" {
		return api.BadRequest("Message content required", nil)
	}

	conversationID := chi.URLParam(r, "conversationId")
	if _, err := h.conversations.GetConversation(r.Context(), conversationID); err != nil {
		return api.FromServiceError(err)
	}

	admin := adminIdentity(r)
	res, err := h.conversations.PostMessage(r.Context(), conversationservice.PostMessageParams{
		ConversationKey: conversationID,
		SenderRole:      model.RoleAdmin,
		SenderName:      admin.DisplayName,
		SenderID:        admin.SubjectID,
		Body:            req.Content,
		FileURL:         req.FileURL,
		FileName:        req.FileName,
	})
	if err != nil {
		return api.FromServiceError(err)
	}

	h.emit(r.Context(), realtime.Message{
		Room:    realtime.ConversationRoom(res.Conversation.ConversationID),
		Event:   realtime.EventReceiveMessage,
		Payload: realtime.NewMessagePayload(res.Message),
	})

	return WriteJSON(w, http.StatusCreated, dto.PostMessageResponse{Success: true, Message: res.Message})
}

func (h *adminEndpoints) MarkRead(w http.ResponseWriter, r *http.Request) error {
	res, err := h.conversations.MarkRead(r.Context(), chi.URLParam(r, "conversationId"), model.RoleAdmin)
	if err != nil {
		return api.FromServiceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.MarkReadResponse{Conversation: res.Conversation, MarkedRead: res.MarkedRead})
}

func (h *adminEndpoints) Stats(w http.ResponseWriter, r *http.Request) error {
	visitors, err := h.visitors.Count(r.Context())
	if err != nil {
		return api.FromServiceError(err)
	}
	stats, err := h.conversations.Stats(r.Context())
	if err != nil {
		return api.FromServiceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.StatsResponse{
		TotalVisitors:       visitors,
		ActiveConversations: stats.ActiveConversations,
		TotalOrders:         stats.TotalOrders,
	})
}

// emit is best effort: the store already holds the change.
func (h *adminEndpoints) emit(ctx context.Context, msg realtime.Message) {
	if h.emitter == nil {
		return
	}
	if err := h.emitter.Emit(ctx, msg); err != nil {
		log.Warn().Err(err).Str("room", msg.Room).Str("event", msg.Event).Msg("admin broadcast failed")
	}
}

func adminIdentity(r *http.Request) identity.Identity {
	if ident, ok := middleware.IdentityFrom(r.Context()); ok {
		return ident
	}
	return identity.Identity{Role: model.RoleAdmin, DisplayName: "Admin"}
}
