package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

var (
	ErrTokenEmpty   = errors.New("token string is empty")
	ErrTokenInvalid = errors.New("token is not valid")
	ErrTokenExpired = errors.New("token expired")
)

const DefaultTTL = 12 * time.Hour

type tokenClaims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.StandardClaims
}

// Issuer signs and verifies HS256 identity tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	clone := *i
	clone.now = now
	return &clone
}

func (i *Issuer) Issue(c Claims) (TokenResponse, error) {
	if c.SubjectID == "" {
		return TokenResponse{}, fmt.Errorf("subject id required")
	}
	if !c.Role.Valid() {
		return TokenResponse{}, fmt.Errorf("invalid role %q", c.Role)
	}

	issuedAt := i.now()
	expiresAt := issuedAt.Add(i.ttl)

	claims := tokenClaims{
		Role: string(c.Role),
		Name: c.DisplayName,
		StandardClaims: jwt.StandardClaims{
			Subject:   c.SubjectID,
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		Token:     tokenString,
		ExpiresAt: time.Unix(expiresAt.Unix(), 0).UTC(),
		Role:      c.Role,
	}, nil
}

func (i *Issuer) Parse(tokenString string) (Claims, error) {
	if len(tokenString) == 0 {
		return Claims{}, ErrTokenEmpty
	}

	// Expiry is checked below against the injected clock.
	parser := &jwt.Parser{SkipClaimsValidation: true}

	var claims tokenClaims
	token, err := parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return Claims{}, ErrTokenInvalid
	}

	if !claims.VerifyExpiresAt(i.now().Unix(), true) {
		return Claims{}, ErrTokenExpired
	}

	role := model.Role(claims.Role)
	if !role.Valid() {
		return Claims{}, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return Claims{
		SubjectID:   claims.Subject,
		Role:        role,
		DisplayName: claims.Name,
	}, nil
}
