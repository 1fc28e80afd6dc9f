package model

type Role string

const (
	RoleVisitor Role = "visitor"
	RoleClient  Role = "client"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleVisitor, RoleClient, RoleAdmin:
		return true
	}
	return false
}

type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusIdle   SessionStatus = "idle"
	SessionStatusLeft   SessionStatus = "left"
)

type ConnectionResponse string

const (
	ConnectionResponseNone     ConnectionResponse = "none"
	ConnectionResponsePending  ConnectionResponse = "pending"
	ConnectionResponseAccepted ConnectionResponse = "accepted"
	ConnectionResponseDeclined ConnectionResponse = "declined"
)

type ReferrerType string

const (
	ReferrerDirect   ReferrerType = "direct"
	ReferrerSearch   ReferrerType = "search"
	ReferrerSocial   ReferrerType = "social"
	ReferrerEmail    ReferrerType = "email"
	ReferrerReferral ReferrerType = "referral"
)

type ParticipantType string

const (
	ParticipantVisitor ParticipantType = "visitor"
	ParticipantClient  ParticipantType = "client"
	ParticipantOrder   ParticipantType = "order"
)

type ConversationStatus string

const (
	ConversationStatusActive   ConversationStatus = "active"
	ConversationStatusResolved ConversationStatus = "resolved"
	ConversationStatusArchived ConversationStatus = "archived"
)

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationStatusActive, ConversationStatusResolved, ConversationStatusArchived:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)
