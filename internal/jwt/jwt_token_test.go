package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := NewIssuer("secret", 0)
	require.NoError(t, err)
	issuer = issuer.WithClock(fixedClock(now))

	res, err := issuer.Issue(Claims{SubjectID: "admin-1", Role: model.RoleAdmin, DisplayName: "Ops"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(DefaultTTL), res.ExpiresAt)
	assert.Equal(t, model.RoleAdmin, res.Role)

	claims, err := issuer.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, Claims{SubjectID: "admin-1", Role: model.RoleAdmin, DisplayName: "Ops"}, claims)
}

func TestParseExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := NewIssuer("secret", time.Hour)
	require.NoError(t, err)

	res, err := issuer.WithClock(fixedClock(now)).Issue(Claims{SubjectID: "c1", Role: model.RoleClient})
	require.NoError(t, err)

	_, err = issuer.WithClock(fixedClock(now.Add(2 * time.Hour))).Parse(res.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseWrongSecret(t *testing.T) {
	a, _ := NewIssuer("secret-a", time.Hour)
	b, _ := NewIssuer("secret-b", time.Hour)

	res, err := a.Issue(Claims{SubjectID: "c1", Role: model.RoleClient})
	require.NoError(t, err)

	_, err = b.Parse(res.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsUnknownRole(t *testing.T) {
	issuer, _ := NewIssuer("secret", time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "u1",
		"role": "superuser",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = issuer.Parse(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsMissingExpiry(t *testing.T) {
	issuer, _ := NewIssuer("secret", time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "role": "admin"})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = issuer.Parse(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseEmptyAndGarbage(t *testing.T) {
	issuer, _ := NewIssuer("secret", time.Hour)

	_, err := issuer.Parse("")
	assert.ErrorIs(t, err, ErrTokenEmpty)

	_, err = issuer.Parse("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestIssueValidation(t *testing.T) {
	issuer, _ := NewIssuer("secret", time.Hour)

	_, err := issuer.Issue(Claims{Role: model.RoleAdmin})
	assert.Error(t, err)

	_, err = issuer.Issue(Claims{SubjectID: "x", Role: "guest"})
	assert.Error(t, err)

	_, err = NewIssuer("", time.Hour)
	assert.Error(t, err)
}

func TestIssuerKeyHashing(t *testing.T) {
	hash, err := HashIssuerKey("issuer-key")
	require.NoError(t, err)

	assert.True(t, ValidateIssuerKey(hash, "issuer-key"))
	assert.False(t, ValidateIssuerKey(hash, "other"))
	assert.False(t, ValidateIssuerKey("", "issuer-key"))
}
