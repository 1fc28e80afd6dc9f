package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jobyojnahub-a11y/websevixof/internal/database"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

var (
	ErrNotFound      = errors.New("conversation repository: not found")
	ErrAlreadyExists = errors.New("conversation repository: already exists")
	ErrAlreadyRead   = errors.New("conversation repository: message already read")
)

// Counter names the unread counter of one side of a conversation.
type Counter string

const (
	CounterAdmin  Counter = "unreadCountAdmin"
	CounterClient Counter = "unreadCountClient"
)

// Changes holds the admin-editable fields; nil fields are left untouched.
type Changes struct {
	Status   *model.ConversationStatus
	Priority *model.Priority
	Tags     []string
}

type Repository interface {
	CreateConversation(ctx context.Context, conversation model.ConversationItem) error
	GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error)
	AssignAdmin(ctx context.Context, conversationID, adminID, now string) (model.ConversationItem, error)
	RecordMessage(ctx context.Context, conversationID string, counter Counter, at string) (model.ConversationItem, error)
	ResetUnread(ctx context.Context, conversationID string, counter Counter, now string) (model.ConversationItem, error)
	UpdateConversation(ctx context.Context, conversationID string, changes Changes, now string) (model.ConversationItem, error)
	ListConversations(ctx context.Context) ([]model.ConversationItem, error)
	CountByStatus(ctx context.Context, status model.ConversationStatus) (int, error)
	CountOrders(ctx context.Context) (int, error)
	CreateMessage(ctx context.Context, message model.MessageItem) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error)
	MarkMessageRead(ctx context.Context, conversationID, sortKey, readAt string) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func conversationKey(conversationID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		model.ConversationKey: database.S(conversationID),
	}
}

func (r *DynamoRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	err := r.db.Client.PutItemIfAbsent(ctx, model.ConversationsTable, model.ConversationKey, conversation)
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrAlreadyExists
	}
	return err
}

func (r *DynamoRepository) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	var conversation model.ConversationItem
	err := r.db.Client.GetItem(ctx, model.ConversationsTable, conversationKey(conversationID), &conversation)
	if errors.Is(err, database.ErrItemNotFound) {
		return model.ConversationItem{}, ErrNotFound
	}
	return conversation, err
}

func (r *DynamoRepository) AssignAdmin(ctx context.Context, conversationID, adminID, now string) (model.ConversationItem, error) {
	u := database.NewUpdate().
		Set("status", model.ConversationStatusActive).
		Set("updatedAt", now)
	if adminID != "" {
		u.Set("adminId", adminID)
	}
	return r.apply(ctx, conversationID, u)
}

// RecordMessage bumps the receiving side's unread counter and the activity
// timestamps in one atomic update.
func (r *DynamoRepository) RecordMessage(ctx context.Context, conversationID string, counter Counter, at string) (model.ConversationItem, error) {
	u := database.NewUpdate().
		Set("lastMessageAt", at).
		Set("updatedAt", at).
		Add(string(counter), 1)
	return r.apply(ctx, conversationID, u)
}

func (r *DynamoRepository) ResetUnread(ctx context.Context, conversationID string, counter Counter, now string) (model.ConversationItem, error) {
	u := database.NewUpdate().
		Set(string(counter), 0).
		Set("updatedAt", now)
	return r.apply(ctx, conversationID, u)
}

func (r *DynamoRepository) UpdateConversation(ctx context.Context, conversationID string, changes Changes, now string) (model.ConversationItem, error) {
	u := database.NewUpdate().Set("updatedAt", now)
	if changes.Status != nil {
		u.Set("status", *changes.Status)
	}
	if changes.Priority != nil {
		u.Set("priority", *changes.Priority)
	}
	if changes.Tags != nil {
		u.Set("tags", changes.Tags)
	}
	return r.apply(ctx, conversationID, u)
}

func (r *DynamoRepository) ListConversations(ctx context.Context) ([]model.ConversationItem, error) {
	items, err := r.db.Client.ScanAllWithFilter(ctx, model.ConversationsTable, "", nil, nil)
	if err != nil {
		return nil, err
	}
	return database.UnmarshalItems[model.ConversationItem](items)
}

func (r *DynamoRepository) CountByStatus(ctx context.Context, status model.ConversationStatus) (int, error) {
	return r.db.Client.Count(ctx, model.ConversationsTable,
		"#status = :status",
		map[string]types.AttributeValue{":status": database.S(string(status))},
		map[string]string{"#status": "status"},
	)
}

// CountOrders counts the order workflow's table. A deployment without that
// table has no orders.
func (r *DynamoRepository) CountOrders(ctx context.Context) (int, error) {
	count, err := r.db.Client.Count(ctx, model.OrdersTable, "", nil, nil)
	if errors.Is(err, database.ErrTableNotFound) {
		return 0, nil
	}
	return count, err
}

func (r *DynamoRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	return r.db.Client.PutItem(ctx, model.MessagesTable, message)
}

// ListMessages returns messages in sort key order: server timestamp, then
// insertion order. A positive limit keeps the newest limit messages.
func (r *DynamoRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error) {
	newestFirst := limit > 0
	items, err := r.db.Client.QueryAll(
		ctx,
		model.MessagesTable,
		"#key = :key",
		map[string]types.AttributeValue{":key": database.S(conversationID)},
		map[string]string{"#key": model.MessageHashKey},
		database.QueryOptions{
			ScanIndexForward: aws.Bool(!newestFirst),
			Limit:            limit,
			ConsistentRead:   true,
		},
	)
	if err != nil {
		return nil, err
	}
	messages, err := database.UnmarshalItems[model.MessageItem](items)
	if err != nil {
		return nil, err
	}
	if newestFirst {
		slices.Reverse(messages)
	}
	return messages, nil
}

func (r *DynamoRepository) MarkMessageRead(ctx context.Context, conversationID, sortKey, readAt string) error {
	key := map[string]types.AttributeValue{
		model.MessageHashKey:  database.S(conversationID),
		model.MessageRangeKey: database.S(sortKey),
	}
	u := database.NewUpdate().
		Set("read", true).
		Set("readAt", readAt).
		IfEqual("read", false)

	err := r.db.Client.Apply(ctx, model.MessagesTable, key, u, nil)
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrAlreadyRead
	}
	return err
}

func (r *DynamoRepository) apply(ctx context.Context, conversationID string, u *database.Update) (model.ConversationItem, error) {
	u.IfExists(model.ConversationKey)

	var conversation model.ConversationItem
	err := r.db.Client.Apply(ctx, model.ConversationsTable, conversationKey(conversationID), u, &conversation)
	if errors.Is(err, database.ErrConditionFailed) {
		return model.ConversationItem{}, ErrNotFound
	}
	if err != nil {
		return model.ConversationItem{}, fmt.Errorf("update conversation %s: %w", conversationID, err)
	}
	return conversation, nil
}
