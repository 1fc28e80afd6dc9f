package endpoints

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jobyojnahub-a11y/websevixof/internal/api"
)

type HTTPError = api.HTTPError

type ApiMessageResponse struct {
	Message string `json:"message"`
}

const maxBodyBytes = 64 * 1024

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

func decodeBody(r *http.Request, v any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		return api.BadRequest("Invalid request body", fmt.Errorf("decode body: %w", err))
	}
	return nil
}

// intQuery reads a positive integer query parameter, falling back to def
// when absent and capping at max.
func intQuery(r *http.Request, name string, def, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, api.BadRequest(name+" must be a positive integer", fmt.Errorf("query %s=%q", name, raw))
	}
	if value > max {
		value = max
	}
	return value, nil
}
