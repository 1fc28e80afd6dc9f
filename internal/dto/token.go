package dto

import "github.com/jobyojnahub-a11y/websevixof/internal/model"

type IssueTokenRequest struct {
	SubjectID   string     `json:"subjectId"`
	Role        model.Role `json:"role"`
	DisplayName string     `json:"displayName,omitempty"`
}
