package identity

import (
	"strings"

	"github.com/rs/zerolog/log"

	internaljwt "github.com/jobyojnahub-a11y/websevixof/internal/jwt"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

const anonymousName = "Visitor"

type Identity struct {
	Role        model.Role `json:"role"`
	SubjectID   string     `json:"subjectId"`
	DisplayName string     `json:"displayName"`
}

// Room is the identity-scoped room every connection joins.
func (i Identity) Room() string {
	return string(i.Role) + ":" + i.SubjectID
}

func (i Identity) IsAdmin() bool {
	return i.Role == model.RoleAdmin
}

type TokenParser interface {
	Parse(token string) (internaljwt.Claims, error)
}

type Verifier struct {
	parser TokenParser
}

func NewVerifier(parser TokenParser) *Verifier {
	return &Verifier{parser: parser}
}

// Resolve never fails: anything that does not verify becomes an anonymous
// visitor keyed by the client supplied session id, or by the connection id
// when none was given.
func (v *Verifier) Resolve(token, visitorSessionID, connectionID string) Identity {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token != "" && v.parser != nil {
		claims, err := v.parser.Parse(token)
		if err == nil {
			return FromClaims(claims)
		}
		log.Debug().Err(err).Str("connId", connectionID).Msg("identity token rejected, continuing as visitor")
	}

	subject := strings.TrimSpace(visitorSessionID)
	if subject == "" {
		subject = connectionID
	}
	return Identity{
		Role:        model.RoleVisitor,
		SubjectID:   subject,
		DisplayName: anonymousName,
	}
}

// FromClaims builds the identity carried by verified claims.
func FromClaims(c internaljwt.Claims) Identity {
	return Identity{
		Role:        c.Role,
		SubjectID:   c.SubjectID,
		DisplayName: displayName(c),
	}
}

func displayName(c internaljwt.Claims) string {
	if name := strings.TrimSpace(c.DisplayName); name != "" {
		return name
	}
	switch c.Role {
	case model.RoleAdmin:
		return "Admin"
	case model.RoleClient:
		return "Client"
	default:
		return anonymousName
	}
}
