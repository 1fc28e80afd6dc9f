package model

type PageVisit struct {
	Page      string `dynamodbav:"page" json:"page"`
	Timestamp string `dynamodbav:"timestamp" json:"timestamp"`
	TimeSpent int64  `dynamodbav:"timeSpent,omitempty" json:"timeSpent,omitempty"`
}

type VisitorAction struct {
	Action    string `dynamodbav:"action" json:"action"`
	Element   string `dynamodbav:"element,omitempty" json:"element,omitempty"`
	Timestamp string `dynamodbav:"timestamp" json:"timestamp"`
}

type VisitorSessionItem struct {
	SessionID string `dynamodbav:"sessionId" json:"sessionId"`
	VisitorID string `dynamodbav:"visitorId" json:"visitorId"`

	IPAddress string `dynamodbav:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	Country   string `dynamodbav:"country,omitempty" json:"country,omitempty"`
	City      string `dynamodbav:"city,omitempty" json:"city,omitempty"`
	Device    string `dynamodbav:"device,omitempty" json:"device,omitempty"`
	Browser   string `dynamodbav:"browser,omitempty" json:"browser,omitempty"`
	OS        string `dynamodbav:"os,omitempty" json:"os,omitempty"`

	LandingPage  string       `dynamodbav:"landingPage" json:"landingPage"`
	CurrentPage  string       `dynamodbav:"currentPage" json:"currentPage"`
	Referrer     string       `dynamodbav:"referrer,omitempty" json:"referrer,omitempty"`
	ReferrerType ReferrerType `dynamodbav:"referrerType" json:"referrerType"`
	SearchTerm   string       `dynamodbav:"searchTerm,omitempty" json:"searchTerm,omitempty"`

	SessionStart string        `dynamodbav:"sessionStart" json:"sessionStart"`
	LastActivity string        `dynamodbav:"lastActivity" json:"lastActivity"`
	TimeOnSite   int64         `dynamodbav:"timeOnSite" json:"timeOnSite"`
	Status       SessionStatus `dynamodbav:"status" json:"status"`

	PagesVisited    []PageVisit     `dynamodbav:"pagesVisited" json:"pagesVisited"`
	Actions         []VisitorAction `dynamodbav:"actions" json:"actions"`
	ScrollDepth     map[string]int  `dynamodbav:"scrollDepth" json:"scrollDepth"`
	EngagementScore int             `dynamodbav:"engagementScore" json:"engagementScore"`
	IsReturning     bool            `dynamodbav:"isReturning" json:"isReturning"`
	VisitCount      int             `dynamodbav:"visitCount" json:"visitCount"`

	ChatInitiated            bool               `dynamodbav:"chatInitiated" json:"chatInitiated"`
	ConnectedWithAdmin       bool               `dynamodbav:"connectedWithAdmin" json:"connectedWithAdmin"`
	AdminConnectionOffered   bool               `dynamodbav:"adminConnectionOffered" json:"adminConnectionOffered"`
	AdminConnectionResponse  ConnectionResponse `dynamodbav:"adminConnectionResponse" json:"adminConnectionResponse"`
	AdminConnectionOfferedAt string             `dynamodbav:"adminConnectionOfferedAt,omitempty" json:"adminConnectionOfferedAt,omitempty"`
	ConversationID           string             `dynamodbav:"conversationId,omitempty" json:"conversationId,omitempty"`

	OrderFormStarted    bool   `dynamodbav:"orderFormStarted" json:"orderFormStarted"`
	OrderFormStep       int    `dynamodbav:"orderFormStep" json:"orderFormStep"`
	OrderCompleted      bool   `dynamodbav:"orderCompleted" json:"orderCompleted"`
	ConvertedToClientID string `dynamodbav:"convertedToClientId,omitempty" json:"convertedToClientId,omitempty"`

	CreatedAt string `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt string `dynamodbav:"updatedAt" json:"updatedAt"`
}
