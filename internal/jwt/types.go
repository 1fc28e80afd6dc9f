package jwt

import (
	"time"

	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

// Claims is the canonical identity carried by a socket token.
type Claims struct {
	SubjectID   string     `json:"subjectId"`
	Role        model.Role `json:"role"`
	DisplayName string     `json:"displayName,omitempty"`
}

type TokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Role      model.Role `json:"role"`
}
