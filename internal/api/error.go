package api

import (
	"net/http"

	"github.com/jobyojnahub-a11y/websevixof/internal/apperr"
)

type HTTPError struct {
	StatusCode int
	Message    string
	ErrorLog   error
}

func (e *HTTPError) Error() string {
	return e.Message
}

type ApiError struct {
	Error string `json:"message"`
}

// FromServiceError maps a service layer error onto its HTTP form.
func FromServiceError(err error) *HTTPError {
	return &HTTPError{
		StatusCode: statusFor(apperr.CodeOf(err)),
		Message:    apperr.MessageOf(err),
		ErrorLog:   err,
	}
}

func BadRequest(message string, err error) *HTTPError {
	return &HTTPError{StatusCode: http.StatusBadRequest, Message: message, ErrorLog: err}
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
