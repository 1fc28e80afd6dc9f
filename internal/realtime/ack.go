package realtime

import (
	"errors"

	"github.com/jobyojnahub-a11y/websevixof/internal/apperr"
)

type AckStatus string

const (
	AckOK        AckStatus = "ok"
	AckRejected  AckStatus = "rejected"
	AckForbidden AckStatus = "forbidden"
	AckError     AckStatus = "error"
)

// Ack reasons.
const (
	ReasonMalformedFrame = "malformed_frame"
	ReasonUnknownEvent   = "unknown_event"
	ReasonInvalidPayload = "invalid_payload"
	ReasonNotFound       = "not_found"
	ReasonForbidden      = "forbidden"
	ReasonServerError    = "server_error"
	ReasonTimeout        = "timeout"
	ReasonRateLimited    = "rate_limited"
)

// Ack answers one inbound event. It is sent to the sender as an "ack" event
// when the frame carried an ackId.
type Ack struct {
	AckID   string      `json:"ackId,omitempty"`
	Event   string      `json:"event"`
	Status  AckStatus   `json:"status"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(data interface{}) Ack {
	return Ack{Status: AckOK, Data: data}
}

func rejected(reason, message string) Ack {
	return Ack{Status: AckRejected, Reason: reason, Message: message}
}

func forbidden(message string) Ack {
	return Ack{Status: AckForbidden, Reason: ReasonForbidden, Message: message}
}

func serverError() Ack {
	return Ack{Status: AckError, Reason: ReasonServerError}
}

func decodeFailure(err error) Ack {
	switch {
	case errors.Is(err, ErrMalformedFrame):
		return rejected(ReasonMalformedFrame, err.Error())
	case errors.Is(err, ErrUnknownEvent):
		return rejected(ReasonUnknownEvent, err.Error())
	default:
		return rejected(ReasonInvalidPayload, err.Error())
	}
}

// failure maps a service error onto an ack. Internal details stay in the log.
func failure(err error) Ack {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation:
		return rejected(ReasonInvalidPayload, apperr.MessageOf(err))
	case apperr.CodeNotFound:
		return rejected(ReasonNotFound, apperr.MessageOf(err))
	case apperr.CodeForbidden, apperr.CodeUnauthorized:
		return forbidden(apperr.MessageOf(err))
	default:
		return serverError()
	}
}
