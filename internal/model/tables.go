package model

import (
	"strings"
	"time"
)

const (
	VisitorSessionsTable = "VisitorSessions"
	ConversationsTable   = "Conversations"
	MessagesTable        = "Messages"
	// OrdersTable belongs to the order workflow; it is only ever counted.
	OrdersTable = "Orders"
)

// Key attribute names.
const (
	VisitorSessionKey = "sessionId"
	ConversationKey   = "conversationId"
	MessageHashKey    = "conversationKey"
	MessageRangeKey   = "sortKey"
)

// timestampLayout is fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

const visitorConversationPrefix = "VISITOR-"

// VisitorConversationID derives the conversation key reserved for a visitor
// session.
func VisitorConversationID(sessionID string) string {
	return visitorConversationPrefix + sessionID
}

// VisitorSessionFromConversation reports the session a visitor conversation
// key was derived from.
func VisitorSessionFromConversation(conversationID string) (string, bool) {
	if !strings.HasPrefix(conversationID, visitorConversationPrefix) {
		return "", false
	}
	sessionID := strings.TrimPrefix(conversationID, visitorConversationPrefix)
	return sessionID, sessionID != ""
}

func MessageSortKey(timestamp, messageID string) string {
	return timestamp + "#" + messageID
}
