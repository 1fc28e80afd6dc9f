package conversation

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobyojnahub-a11y/websevixof/internal/apperr"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

type memoryRepository struct {
	mu            sync.Mutex
	conversations map[string]model.ConversationItem
	messages      map[string][]model.MessageItem
	orders        int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		conversations: make(map[string]model.ConversationItem),
		messages:      make(map[string][]model.MessageItem),
	}
}

func (m *memoryRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[conversation.ConversationID]; ok {
		return ErrAlreadyExists
	}
	m.conversations[conversation.ConversationID] = conversation
	return nil
}

func (m *memoryRepository) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[conversationID]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	return conversation, nil
}

func (m *memoryRepository) update(conversationID string, mutate func(*model.ConversationItem)) (model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[conversationID]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	mutate(&conversation)
	m.conversations[conversationID] = conversation
	return conversation, nil
}

func (m *memoryRepository) AssignAdmin(ctx context.Context, conversationID, adminID, now string) (model.ConversationItem, error) {
	return m.update(conversationID, func(c *model.ConversationItem) {
		c.Status = model.ConversationStatusActive
		if adminID != "" {
			c.AdminID = adminID
		}
		c.UpdatedAt = now
	})
}

func (m *memoryRepository) RecordMessage(ctx context.Context, conversationID string, counter Counter, at string) (model.ConversationItem, error) {
	return m.update(conversationID, func(c *model.ConversationItem) {
		if counter == CounterAdmin {
			c.UnreadCountAdmin++
		} else {
			c.UnreadCountClient++
		}
		c.LastMessageAt = at
		c.UpdatedAt = at
	})
}

func (m *memoryRepository) ResetUnread(ctx context.Context, conversationID string, counter Counter, now string) (model.ConversationItem, error) {
	return m.update(conversationID, func(c *model.ConversationItem) {
		if counter == CounterAdmin {
			c.UnreadCountAdmin = 0
		} else {
			c.UnreadCountClient = 0
		}
		c.UpdatedAt = now
	})
}

func (m *memoryRepository) UpdateConversation(ctx context.Context, conversationID string, changes Changes, now string) (model.ConversationItem, error) {
	return m.update(conversationID, func(c *model.ConversationItem) {
		if changes.Status != nil {
			c.Status = *changes.Status
		}
		if changes.Priority != nil {
			c.Priority = *changes.Priority
		}
		if changes.Tags != nil {
			c.Tags = changes.Tags
		}
		c.UpdatedAt = now
	})
}

func (m *memoryRepository) ListConversations(ctx context.Context) ([]model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ConversationItem, 0, len(m.conversations))
	for _, c := range m.conversations {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryRepository) CountByStatus(ctx context.Context, status model.ConversationStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.conversations {
		if c.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *memoryRepository) CountOrders(ctx context.Context) (int, error) {
	return m.orders, nil
}

func (m *memoryRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[message.ConversationKey] = append(m.messages[message.ConversationKey], message)
	return nil
}

func (m *memoryRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]model.MessageItem(nil), m.messages[conversationID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortKey < out[j].SortKey })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memoryRepository) MarkMessageRead(ctx context.Context, conversationID, sortKey, readAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, message := range m.messages[conversationID] {
		if message.SortKey != sortKey {
			continue
		}
		if message.Read {
			return ErrAlreadyRead
		}
		m.messages[conversationID][i].Read = true
		m.messages[conversationID][i].ReadAt = readAt
		return nil
	}
	return ErrNotFound
}

type fakeSessions struct {
	mu        sync.Mutex
	initiated map[string]int
	known     map[string]bool
}

func newFakeSessions(known ...string) *fakeSessions {
	f := &fakeSessions{initiated: make(map[string]int), known: make(map[string]bool)}
	for _, id := range known {
		f.known[id] = true
	}
	return f
}

func (f *fakeSessions) MarkChatInitiated(ctx context.Context, sessionID, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiated[sessionID]++
	return nil
}

func (f *fakeSessions) AcceptConnection(ctx context.Context, sessionID, conversationID string) (model.VisitorSessionItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.known[sessionID] {
		return model.VisitorSessionItem{}, apperr.NotFound("session not found", nil)
	}
	return model.VisitorSessionItem{
		SessionID:               sessionID,
		ConnectedWithAdmin:      true,
		AdminConnectionResponse: model.ConnectionResponseAccepted,
		ConversationID:          conversationID,
	}, nil
}

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now advances a microsecond per call so consecutive writes get distinct
// timestamps.
func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Microsecond)
	return c.now
}

func newTestService(known ...string) (*Service, *memoryRepository, *fakeSessions) {
	repo := newMemoryRepository()
	sessions := newFakeSessions(known...)
	clk := &tickingClock{now: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)}
	return NewWithRepository(repo, sessions, clk.Now), repo, sessions
}

func visitorMessage(body string) PostMessageParams {
	return PostMessageParams{
		ConversationKey: "VISITOR-s1",
		SenderRole:      model.RoleVisitor,
		SenderName:      "Visitor",
		Body:            body,
	}
}

func TestPostMessageCreatesVisitorConversation(t *testing.T) {
	svc, repo, sessions := newTestService()

	res, err := svc.PostMessage(context.Background(), visitorMessage("hello"))
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, "VISITOR-s1", res.Conversation.ConversationID)
	assert.Equal(t, model.ParticipantVisitor, res.Conversation.ParticipantType)
	assert.Equal(t, "s1", res.Conversation.VisitorSessionID)
	assert.Equal(t, 1, res.Conversation.UnreadCountAdmin)
	assert.Equal(t, 0, res.Conversation.UnreadCountClient)
	assert.Equal(t, res.Message.Timestamp, res.Conversation.LastMessageAt)

	assert.Equal(t, model.RoleVisitor, res.Message.SenderRole)
	assert.Equal(t, "hello", res.Message.Message)
	assert.Equal(t, model.MessageTypeText, res.Message.MessageType)
	assert.Equal(t, res.Conversation.ID, res.Message.ConversationRef)
	assert.NotEmpty(t, res.Message.MessageID)

	assert.Len(t, repo.messages["VISITOR-s1"], 1)
	assert.Equal(t, 1, sessions.initiated["s1"])
}

func TestPostMessageClientConversation(t *testing.T) {
	svc, _, sessions := newTestService()

	res, err := svc.PostMessage(context.Background(), PostMessageParams{
		ConversationKey: "ORD-1001",
		SenderRole:      model.RoleClient,
		SenderName:      "Dana",
		FileURL:         "https://cdn.example.com/brief.pdf",
		FileName:        "brief.pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, model.ParticipantClient, res.Conversation.ParticipantType)
	assert.Equal(t, model.MessageTypeFile, res.Message.MessageType)
	assert.Empty(t, sessions.initiated)
}

func TestPostMessageValidation(t *testing.T) {
	svc, repo, _ := newTestService()
	cases := map[string]PostMessageParams{
		"missing key":  {SenderRole: model.RoleVisitor, SenderName: "V", Body: "hi"},
		"bad role":     {ConversationKey: "c", SenderRole: "robot", SenderName: "V", Body: "hi"},
		"missing name": {ConversationKey: "c", SenderRole: model.RoleVisitor, Body: "hi"},
		"empty body":   {ConversationKey: "c", SenderRole: model.RoleVisitor, SenderName: "V", Body: "   "},
	}

	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.PostMessage(context.Background(), params)
			assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
		})
	}
	assert.Empty(t, repo.conversations)
}

func TestConcurrentFirstMessagesCreateOneConversation(t *testing.T) {
	svc, repo, sessions := newTestService()

	var wg sync.WaitGroup
	results := make([]MessageResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.PostMessage(context.Background(), visitorMessage("first"))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Len(t, repo.conversations, 1)
	require.Len(t, repo.messages["VISITOR-s1"], 2)
	assert.Equal(t, results[0].Conversation.ID, results[1].Conversation.ID)
	assert.True(t, results[0].Created != results[1].Created, "exactly one call creates")
	for _, message := range repo.messages["VISITOR-s1"] {
		assert.Equal(t, results[0].Conversation.ID, message.ConversationRef)
	}
	assert.Equal(t, 1, sessions.initiated["s1"])
	assert.Equal(t, 2, repo.conversations["VISITOR-s1"].UnreadCountAdmin)
}

func TestUnreadCountersTrackReceivingSide(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	const visitorMessages, adminMessages = 3, 2

	for i := 0; i < visitorMessages; i++ {
		_, err := svc.PostMessage(ctx, visitorMessage("question"))
		require.NoError(t, err)
	}
	var last MessageResult
	for i := 0; i < adminMessages; i++ {
		var err error
		last, err = svc.PostMessage(ctx, PostMessageParams{
			ConversationKey: "VISITOR-s1",
			SenderRole:      model.RoleAdmin,
			SenderName:      "Admin",
			Body:            "answer",
		})
		require.NoError(t, err)
	}

	assert.Equal(t, visitorMessages, last.Conversation.UnreadCountAdmin)
	assert.Equal(t, adminMessages, last.Conversation.UnreadCountClient)
}

func TestListMessagesOrdered(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for _, body := range []string{"one", "two", "three"} {
		_, err := svc.PostMessage(ctx, visitorMessage(body))
		require.NoError(t, err)
	}

	res, err := svc.ListMessages(ctx, "VISITOR-s1", 0)
	require.NoError(t, err)
	require.Len(t, res.Messages, 3)

	bodies := make([]string, 0, 3)
	for i, message := range res.Messages {
		bodies = append(bodies, message.Message)
		if i > 0 {
			assert.LessOrEqual(t, res.Messages[i-1].Timestamp, message.Timestamp)
		}
	}
	assert.Equal(t, []string{"one", "two", "three"}, bodies)

	_, err = svc.ListMessages(ctx, "VISITOR-nobody", 0)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestListMessagesLimitKeepsNewest(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for _, body := range []string{"one", "two", "three", "four"} {
		_, err := svc.PostMessage(ctx, visitorMessage(body))
		require.NoError(t, err)
	}

	res, err := svc.ListMessages(ctx, "VISITOR-s1", 2)
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "three", res.Messages[0].Message)
	assert.Equal(t, "four", res.Messages[1].Message)
}

func TestPostMessageStoresBodyAsSent(t *testing.T) {
	svc, repo, _ := newTestService()

	res, err := svc.PostMessage(context.Background(), visitorMessage("  indented\n  code  "))
	require.NoError(t, err)
	assert.Equal(t, "  indented\n  code  ", res.Message.Message)
	assert.Equal(t, "  indented\n  code  ", repo.messages["VISITOR-s1"][0].Message)

	_, err = svc.PostMessage(context.Background(), visitorMessage(" \t\n "))
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestPostMessageLengthCountsCharacters(t *testing.T) {
	svc, _, _ := newTestService()

	// Three bytes per character in UTF-8.
	atLimit := strings.Repeat("한", maxMessageLength)
	_, err := svc.PostMessage(context.Background(), visitorMessage(atLimit))
	require.NoError(t, err)

	_, err = svc.PostMessage(context.Background(), visitorMessage(atLimit+"한"))
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestListConversationsByRecentMessage(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for _, key := range []string{"A", "B", "C"} {
		_, err := svc.PostMessage(ctx, PostMessageParams{ConversationKey: key, SenderRole: model.RoleClient, SenderName: "c", Body: "hi"})
		require.NoError(t, err)
	}
	_, err := svc.PostMessage(ctx, PostMessageParams{ConversationKey: "A", SenderRole: model.RoleAdmin, SenderName: "a", Body: "reply"})
	require.NoError(t, err)

	conversations, err := svc.ListConversations(ctx, 2)
	require.NoError(t, err)

	require.Len(t, conversations, 2)
	assert.Equal(t, "A", conversations[0].ConversationID)
	assert.Equal(t, "C", conversations[1].ConversationID)
}

func TestMarkRead(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	_, err := svc.PostMessage(ctx, visitorMessage("hi"))
	require.NoError(t, err)
	_, err = svc.PostMessage(ctx, visitorMessage("anyone?"))
	require.NoError(t, err)
	_, err = svc.PostMessage(ctx, PostMessageParams{ConversationKey: "VISITOR-s1", SenderRole: model.RoleAdmin, SenderName: "Admin", Body: "yes"})
	require.NoError(t, err)

	res, err := svc.MarkRead(ctx, "VISITOR-s1", model.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, 2, res.MarkedRead)
	assert.Equal(t, 0, res.Conversation.UnreadCountAdmin)
	assert.Equal(t, 1, res.Conversation.UnreadCountClient)
	for _, message := range repo.messages["VISITOR-s1"] {
		assert.Equal(t, message.SenderRole != model.RoleAdmin, message.Read, message.Message)
	}

	again, err := svc.MarkRead(ctx, "VISITOR-s1", model.RoleAdmin)
	require.NoError(t, err)
	assert.Zero(t, again.MarkedRead)
}

func TestUpdateConversation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.PostMessage(ctx, visitorMessage("hi"))
	require.NoError(t, err)

	resolved := model.ConversationStatusResolved
	urgent := model.PriorityUrgent
	conversation, err := svc.UpdateConversation(ctx, "VISITOR-s1", Changes{Status: &resolved, Priority: &urgent})
	require.NoError(t, err)
	assert.Equal(t, resolved, conversation.Status)
	assert.Equal(t, urgent, conversation.Priority)

	bogus := model.Priority("whenever")
	_, err = svc.UpdateConversation(ctx, "VISITOR-s1", Changes{Priority: &bogus})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = svc.UpdateConversation(ctx, "VISITOR-s1", Changes{})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = svc.UpdateConversation(ctx, "missing", Changes{Status: &resolved})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestConnectVisitor(t *testing.T) {
	svc, repo, _ := newTestService("s1")
	ctx := context.Background()

	res, err := svc.ConnectVisitor(ctx, "s1", "admin-7")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "VISITOR-s1", res.Conversation.ConversationID)
	assert.Equal(t, "admin-7", res.Conversation.AdminID)
	assert.True(t, res.Session.ConnectedWithAdmin)

	resolved := model.ConversationStatusResolved
	_, err = svc.UpdateConversation(ctx, "VISITOR-s1", Changes{Status: &resolved})
	require.NoError(t, err)

	again, err := svc.ConnectVisitor(ctx, "s1", "admin-9")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, model.ConversationStatusActive, again.Conversation.Status)
	assert.Equal(t, "admin-9", again.Conversation.AdminID)
	assert.Len(t, repo.conversations, 1)

	_, err = svc.ConnectVisitor(ctx, "ghost", "admin-7")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestStats(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	repo.orders = 4
	_, err := svc.PostMessage(ctx, visitorMessage("hi"))
	require.NoError(t, err)
	_, err = svc.PostMessage(ctx, PostMessageParams{ConversationKey: "C-2", SenderRole: model.RoleClient, SenderName: "c", Body: "hi"})
	require.NoError(t, err)
	archived := model.ConversationStatusArchived
	_, err = svc.UpdateConversation(ctx, "C-2", Changes{Status: &archived})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{ActiveConversations: 1, TotalOrders: 4}, stats)
}
