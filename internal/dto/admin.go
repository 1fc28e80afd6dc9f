package dto

import (
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

type StatsResponse struct {
	TotalVisitors       int `json:"totalVisitors"`
	ActiveConversations int `json:"activeConversations"`
	TotalOrders         int `json:"totalOrders"`
}

type ConnectVisitorRequest struct {
	VisitorSessionID string `json:"visitorSessionId"`
}

type ConnectVisitorResponse struct {
	Success        bool   `json:"success"`
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

type PostMessageRequest struct {
	Content  string `json:"content"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

type PostMessageResponse struct {
	Success bool              `json:"success"`
	Message model.MessageItem `json:"message"`
}

type MarkReadResponse struct {
	Conversation model.ConversationItem `json:"conversation"`
	MarkedRead   int                    `json:"markedRead"`
}

// UpdateConversationRequest leaves absent fields untouched.
type UpdateConversationRequest struct {
	Status   *model.ConversationStatus `json:"status,omitempty"`
	Priority *model.Priority           `json:"priority,omitempty"`
	Tags     []string                  `json:"tags,omitempty"`
}
