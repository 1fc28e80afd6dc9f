package model

type ConversationItem struct {
	ConversationID    string             `dynamodbav:"conversationId" json:"conversationId"`
	ID                string             `dynamodbav:"id" json:"id"`
	ParticipantType   ParticipantType    `dynamodbav:"participantType" json:"participantType"`
	VisitorSessionID  string             `dynamodbav:"visitorSessionId,omitempty" json:"visitorSessionId,omitempty"`
	ClientID          string             `dynamodbav:"clientId,omitempty" json:"clientId,omitempty"`
	OrderID           string             `dynamodbav:"orderId,omitempty" json:"orderId,omitempty"`
	AdminID           string             `dynamodbav:"adminId,omitempty" json:"adminId,omitempty"`
	Status            ConversationStatus `dynamodbav:"status" json:"status"`
	Priority          Priority           `dynamodbav:"priority" json:"priority"`
	LastMessageAt     string             `dynamodbav:"lastMessageAt,omitempty" json:"lastMessageAt,omitempty"`
	UnreadCountAdmin  int                `dynamodbav:"unreadCountAdmin" json:"unreadCountAdmin"`
	UnreadCountClient int                `dynamodbav:"unreadCountClient" json:"unreadCountClient"`
	Tags              []string           `dynamodbav:"tags,omitempty" json:"tags,omitempty"`
	ConvertedToOrder  bool               `dynamodbav:"convertedToOrder" json:"convertedToOrder"`
	ConversionOrderID string             `dynamodbav:"conversionOrderId,omitempty" json:"conversionOrderId,omitempty"`
	CreatedAt         string             `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt         string             `dynamodbav:"updatedAt" json:"updatedAt"`
}

type MessageItem struct {
	ConversationKey string      `dynamodbav:"conversationKey" json:"conversationKey"`
	SortKey         string      `dynamodbav:"sortKey" json:"-"`
	MessageID       string      `dynamodbav:"messageId" json:"id"`
	ConversationRef string      `dynamodbav:"conversationRef" json:"conversationRef"`
	SenderID        string      `dynamodbav:"senderId,omitempty" json:"senderId,omitempty"`
	SenderRole      Role        `dynamodbav:"senderRole" json:"senderRole"`
	SenderName      string      `dynamodbav:"senderName" json:"senderName"`
	MessageType     MessageType `dynamodbav:"messageType" json:"messageType"`
	Message         string      `dynamodbav:"message" json:"message"`
	FileURL         string      `dynamodbav:"fileUrl,omitempty" json:"fileUrl,omitempty"`
	FileName        string      `dynamodbav:"fileName,omitempty" json:"fileName,omitempty"`
	ClientMessageID string      `dynamodbav:"clientMessageId,omitempty" json:"clientMessageId,omitempty"`
	Timestamp       string      `dynamodbav:"timestamp" json:"timestamp"`
	Read            bool        `dynamodbav:"read" json:"read"`
	ReadAt          string      `dynamodbav:"readAt,omitempty" json:"readAt,omitempty"`
}
