package conversation

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/apperr"
	"github.com/jobyojnahub-a11y/websevixof/internal/database"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

// maxMessageLength is measured in characters.
const maxMessageLength = 5000

// Sessions is the slice of the presence store that conversations touch.
type Sessions interface {
	MarkChatInitiated(ctx context.Context, sessionID, conversationID string) error
	AcceptConnection(ctx context.Context, sessionID, conversationID string) (model.VisitorSessionItem, error)
}

type PostMessageParams struct {
	ConversationKey string
	SenderRole      model.Role
	SenderName      string
	SenderID        string
	Body            string
	FileURL         string
	FileName        string
	ClientMessageID string
}

type MessageResult struct {
	Conversation model.ConversationItem
	Message      model.MessageItem
	// Created is set when this message opened the conversation.
	Created bool
}

type ConnectResult struct {
	Conversation model.ConversationItem
	Session      model.VisitorSessionItem
	Created      bool
}

type ListMessagesResult struct {
	Conversation model.ConversationItem
	Messages     []model.MessageItem
}

type ReadResult struct {
	Conversation model.ConversationItem
	MarkedRead   int
}

type Stats struct {
	ActiveConversations int
	TotalOrders         int
}

type Service struct {
	repo     Repository
	sessions Sessions
	now      func() time.Time
}

func New(db *database.Database, sessions Sessions) *Service {
	return NewWithRepository(NewDynamoRepository(db), sessions, time.Now)
}

func NewWithRepository(repo Repository, sessions Sessions, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, sessions: sessions, now: now}
}

func (s *Service) timestamp() string {
	return model.Timestamp(s.now())
}

// PostMessage stores a message, creating its conversation on first use, and
// bumps the receiving side's unread counter. Fan-out is left to the caller.
func (s *Service) PostMessage(ctx context.Context, params PostMessageParams) (MessageResult, error) {
	params.ConversationKey = strings.TrimSpace(params.ConversationKey)
	params.SenderName = strings.TrimSpace(params.SenderName)
	// The body is stored as sent; blank text only counts as absent.
	if strings.TrimSpace(params.Body) == "" {
		params.Body = ""
	}

	switch {
	case params.ConversationKey == "":
		return MessageResult{}, apperr.Validation("conversationId is required")
	case !params.SenderRole.Valid():
		return MessageResult{}, apperr.Validation("senderRole must be admin, client or visitor")
	case params.SenderName == "":
		return MessageResult{}, apperr.Validation("senderName is required")
	case params.Body == "" && params.FileURL == "":
		return MessageResult{}, apperr.Validation("message is required")
	case utf8.RuneCountInString(params.Body) > maxMessageLength:
		return MessageResult{}, apperr.Validation("message is too long")
	}

	conversation, created, err := s.ensureConversation(ctx, params.ConversationKey, "")
	if err != nil {
		return MessageResult{}, err
	}

	messageID, err := uuid.NewV7()
	if err != nil {
		return MessageResult{}, apperr.Internal("could not allocate message id", err)
	}

	now := s.timestamp()
	messageType := model.MessageTypeText
	if params.FileURL != "" {
		messageType = model.MessageTypeFile
	}
	message := model.MessageItem{
		ConversationKey: conversation.ConversationID,
		SortKey:         model.MessageSortKey(now, messageID.String()),
		MessageID:       messageID.String(),
		ConversationRef: conversation.ID,
		SenderID:        params.SenderID,
		SenderRole:      params.SenderRole,
		SenderName:      params.SenderName,
		MessageType:     messageType,
		Message:         params.Body,
		FileURL:         params.FileURL,
		FileName:        params.FileName,
		ClientMessageID: params.ClientMessageID,
		Timestamp:       now,
	}
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return MessageResult{}, apperr.Internal("could not store message", err)
	}

	updated, err := s.repo.RecordMessage(ctx, conversation.ConversationID, receivingCounter(params.SenderRole), now)
	if err != nil {
		return MessageResult{}, apperr.Internal("could not update conversation", err)
	}

	return MessageResult{Conversation: updated, Message: message, Created: created}, nil
}

// ConnectVisitor opens (or reopens) the visitor's conversation on an admin's
// initiative and marks the session as connected.
func (s *Service) ConnectVisitor(ctx context.Context, sessionID, adminID string) (ConnectResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ConnectResult{}, apperr.Validation("visitorSessionId is required")
	}

	conversationID := model.VisitorConversationID(sessionID)
	session, err := s.sessions.AcceptConnection(ctx, sessionID, conversationID)
	if err != nil {
		return ConnectResult{}, err
	}

	conversation, created, err := s.ensureConversation(ctx, conversationID, adminID)
	if err != nil {
		return ConnectResult{}, err
	}
	if !created {
		conversation, err = s.repo.AssignAdmin(ctx, conversationID, adminID, s.timestamp())
		if err != nil {
			return ConnectResult{}, s.storeError(err)
		}
	}

	return ConnectResult{Conversation: conversation, Session: session, Created: created}, nil
}

// MarkRead clears the reader's unread counter and flags the other side's
// messages as read.
func (s *Service) MarkRead(ctx context.Context, conversationID string, reader model.Role) (ReadResult, error) {
	if conversationID == "" {
		return ReadResult{}, apperr.Validation("conversationId is required")
	}
	if !reader.Valid() {
		return ReadResult{}, apperr.Validation("invalid reader role")
	}

	messages, err := s.messages(ctx, conversationID, 0)
	if err != nil {
		return ReadResult{}, err
	}

	now := s.timestamp()
	marked := 0
	for _, message := range messages.Messages {
		if message.Read || sameSide(message.SenderRole, reader) {
			continue
		}
		err := s.repo.MarkMessageRead(ctx, conversationID, message.SortKey, now)
		if errors.Is(err, ErrAlreadyRead) {
			continue
		}
		if err != nil {
			return ReadResult{}, apperr.Internal("could not mark message read", err)
		}
		marked++
	}

	counter := CounterClient
	if reader == model.RoleAdmin {
		counter = CounterAdmin
	}
	conversation, err := s.repo.ResetUnread(ctx, conversationID, counter, now)
	if err != nil {
		return ReadResult{}, s.storeError(err)
	}
	return ReadResult{Conversation: conversation, MarkedRead: marked}, nil
}

func (s *Service) UpdateConversation(ctx context.Context, conversationID string, changes Changes) (model.ConversationItem, error) {
	if conversationID == "" {
		return model.ConversationItem{}, apperr.Validation("conversationId is required")
	}
	if changes.Status == nil && changes.Priority == nil && changes.Tags == nil {
		return model.ConversationItem{}, apperr.Validation("nothing to update")
	}
	if changes.Status != nil && !changes.Status.Valid() {
		return model.ConversationItem{}, apperr.Validation("status must be active, resolved or archived")
	}
	if changes.Priority != nil && !changes.Priority.Valid() {
		return model.ConversationItem{}, apperr.Validation("priority must be low, medium, high or urgent")
	}

	conversation, err := s.repo.UpdateConversation(ctx, conversationID, changes, s.timestamp())
	if err != nil {
		return model.ConversationItem{}, s.storeError(err)
	}
	return conversation, nil
}

func (s *Service) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return model.ConversationItem{}, s.storeError(err)
	}
	return conversation, nil
}

// ListConversations orders by most recent message; conversations without
// messages follow, newest first.
func (s *Service) ListConversations(ctx context.Context, limit int) ([]model.ConversationItem, error) {
	conversations, err := s.repo.ListConversations(ctx)
	if err != nil {
		return nil, apperr.Internal("could not list conversations", err)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if a.LastMessageAt != b.LastMessageAt {
			return a.LastMessageAt > b.LastMessageAt
		}
		return a.CreatedAt > b.CreatedAt
	})
	if limit > 0 && len(conversations) > limit {
		conversations = conversations[:limit]
	}
	return conversations, nil
}

func (s *Service) ListMessages(ctx context.Context, conversationID string, limit int) (ListMessagesResult, error) {
	if conversationID == "" {
		return ListMessagesResult{}, apperr.Validation("conversationId is required")
	}
	return s.messages(ctx, conversationID, limit)
}

func (s *Service) CountActive(ctx context.Context) (int, error) {
	count, err := s.repo.CountByStatus(ctx, model.ConversationStatusActive)
	if err != nil {
		return 0, apperr.Internal("could not count conversations", err)
	}
	return count, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	active, err := s.CountActive(ctx)
	if err != nil {
		return Stats{}, err
	}
	orders, err := s.repo.CountOrders(ctx)
	if err != nil {
		return Stats{}, apperr.Internal("could not count orders", err)
	}
	return Stats{ActiveConversations: active, TotalOrders: orders}, nil
}

func (s *Service) messages(ctx context.Context, conversationID string, limit int) (ListMessagesResult, error) {
	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return ListMessagesResult{}, s.storeError(err)
	}
	messages, err := s.repo.ListMessages(ctx, conversationID, limit)
	if err != nil {
		return ListMessagesResult{}, apperr.Internal("could not list messages", err)
	}
	return ListMessagesResult{Conversation: conversation, Messages: messages}, nil
}

// ensureConversation inserts the conversation if absent. Losing a creation
// race is not an error: the winner's record is returned.
func (s *Service) ensureConversation(ctx context.Context, conversationID, adminID string) (model.ConversationItem, bool, error) {
	now := s.timestamp()
	conversation := model.ConversationItem{
		ConversationID:  conversationID,
		ID:              uuid.NewString(),
		ParticipantType: model.ParticipantClient,
		AdminID:         adminID,
		Status:          model.ConversationStatusActive,
		Priority:        model.PriorityMedium,
		Tags:            []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	sessionID, isVisitor := model.VisitorSessionFromConversation(conversationID)
	if isVisitor {
		conversation.ParticipantType = model.ParticipantVisitor
		conversation.VisitorSessionID = sessionID
	}

	err := s.repo.CreateConversation(ctx, conversation)
	if errors.Is(err, ErrAlreadyExists) {
		existing, getErr := s.repo.GetConversation(ctx, conversationID)
		if getErr != nil {
			return model.ConversationItem{}, false, apperr.Internal("could not load conversation", getErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return model.ConversationItem{}, false, apperr.Internal("could not create conversation", err)
	}

	if isVisitor && s.sessions != nil {
		if err := s.sessions.MarkChatInitiated(ctx, sessionID, conversationID); err != nil {
			log.Warn().Err(err).Str("conversationId", conversationID).Msg("could not bind conversation to visitor session")
		}
	}
	return conversation, true, nil
}

func (s *Service) storeError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("conversation not found", err)
	}
	return apperr.Internal("conversation store failure", err)
}

// receivingCounter picks the counter of the side that did not send.
func receivingCounter(sender model.Role) Counter {
	if sender == model.RoleAdmin {
		return CounterClient
	}
	return CounterAdmin
}

func sameSide(sender, reader model.Role) bool {
	return (sender == model.RoleAdmin) == (reader == model.RoleAdmin)
}
