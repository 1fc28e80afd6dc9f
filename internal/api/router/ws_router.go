package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/api"
	"github.com/jobyojnahub-a11y/websevixof/internal/api/endpoints"
	"github.com/jobyojnahub-a11y/websevixof/internal/api/middleware"
)

// WebsocketRoutes mounts the socket handshake. It bypasses the request
// queue: an upgraded connection lives far longer than one job.
func WebsocketRoutes(prefix string, socket http.HandlerFunc) api.RouteRegistrar {
	return func(r chi.Router, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		r.Get(base+"/socket", middleware.Chain(socket, middleware.Logging()))
	}
}

// TokenRoutes mounts the token endpoint, or nothing when no issuer key hash
// is configured.
func TokenRoutes(prefix string, tokens endpoints.TokenEndpoints, keyHash string) api.RouteRegistrar {
	return func(r chi.Router, s *api.APIServer) {
		if keyHash == "" {
			log.Warn().Msg("token issuer key hash not set, token endpoint disabled")
			return
		}
		base := strings.TrimRight(prefix, "/")
		r.Post(base+"/token", s.MakeHTTPHandleFunc(tokens.IssueToken))
	}
}
