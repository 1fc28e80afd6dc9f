package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/api"
	"github.com/jobyojnahub-a11y/websevixof/internal/dto"
	internaljwt "github.com/jobyojnahub-a11y/websevixof/internal/jwt"
)

const IssuerKeyHeader = "X-Issuer-Key"

type TokenEndpoints interface {
	IssueToken(http.ResponseWriter, *http.Request) error
}

type tokenEndpoints struct {
	issuer  *internaljwt.Issuer
	keyHash string
}

// NewTokenEndpoints serves socket tokens to the trusted auth service. The
// caller proves itself with the key whose bcrypt hash is keyHash.
func NewTokenEndpoints(issuer *internaljwt.Issuer, keyHash string) TokenEndpoints {
	return &tokenEndpoints{issuer: issuer, keyHash: keyHash}
}

func (h *tokenEndpoints) IssueToken(w http.ResponseWriter, r *http.Request) error {
	if !internaljwt.ValidateIssuerKey(h.keyHash, r.Header.Get(IssuerKeyHeader)) {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("token issue: issuer key rejected"),
		}
	}

	var req dto.IssueTokenRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	req.SubjectID = strings.TrimSpace(req.SubjectID)
	if req.SubjectID == "" {
		return api.BadRequest("subjectId is required", nil)
	}
	if !req.Role.Valid() {
		return api.BadRequest("role must be admin, client or visitor", nil)
	}

	token, err := h.issuer.Issue(internaljwt.Claims{
		SubjectID:   req.SubjectID,
		Role:        req.Role,
		DisplayName: strings.TrimSpace(req.DisplayName),
	})
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Could not issue token",
			ErrorLog:   err,
		}
	}

	log.Info().Str("subjectId", req.SubjectID).Str("role", string(req.Role)).Msg("socket token issued")
	return WriteJSON(w, http.StatusOK, token)
}
