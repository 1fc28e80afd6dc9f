package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaljwt "github.com/jobyojnahub-a11y/websevixof/internal/jwt"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"chatctl"}, args...))
	return out.String(), err
}

func TestTokenIssue(t *testing.T) {
	out, err := run(t, "token", "issue", "--secret", "cli-secret", "--subject", "admin-7", "--name", "Root")
	require.NoError(t, err)

	var token internaljwt.TokenResponse
	require.NoError(t, json.Unmarshal([]byte(out), &token))
	assert.Equal(t, model.RoleAdmin, token.Role)

	issuer, err := internaljwt.NewIssuer("cli-secret", 0)
	require.NoError(t, err)
	claims, err := issuer.Parse(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin-7", claims.SubjectID)
	assert.Equal(t, "Root", claims.DisplayName)
}

func TestTokenIssueRejectsUnknownRole(t *testing.T) {
	_, err := run(t, "token", "issue", "--secret", "cli-secret", "--subject", "x", "--role", "owner")
	assert.Error(t, err)
}

func TestHashKey(t *testing.T) {
	out, err := run(t, "token", "hash-key", "issuer-key")
	require.NoError(t, err)

	hashed := strings.TrimSpace(out)
	assert.True(t, internaljwt.ValidateIssuerKey(hashed, "issuer-key"))
	assert.False(t, internaljwt.ValidateIssuerKey(hashed, "other-key"))

	_, err = run(t, "token", "hash-key")
	assert.Error(t, err)
}

func TestChatTablesLayout(t *testing.T) {
	require.Len(t, chatTables, 3)
	assert.Equal(t, model.MessagesTable, chatTables[2].Name)
	assert.Equal(t, model.MessageRangeKey, chatTables[2].RangeKey)
}
