package websocket

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/identity"
)

type IdentityResolver interface {
	Resolve(token, visitorSessionID, connectionID string) identity.Identity
}

type Handler struct {
	hub      *Hub
	frames   FrameHandler
	resolver IdentityResolver
	upgrader websocket.Upgrader
	opts     Options
	// ctx bounds every connection's event handling; cancelled on shutdown.
	ctx context.Context
}

func NewHandler(ctx context.Context, hub *Hub, frames FrameHandler, resolver IdentityResolver, opts Options) *Handler {
	opts = opts.withDefaults()
	return &Handler{
		hub:      hub,
		frames:   frames,
		resolver: resolver,
		opts:     opts,
		ctx:      ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

// ServeSocket resolves the caller's identity and upgrades the connection.
// A token that fails verification still connects, as an anonymous visitor.
func (h *Handler) ServeSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	connID := uuid.NewString()
	ident := h.resolver.Resolve(token, r.URL.Query().Get("visitorSessionId"), connID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(h.hub, conn, connID, ident, remoteIP(r), h.opts)
	if err := h.hub.Register(client); err != nil {
		client.close()
		return
	}
	h.frames.Connected(client)

	log.Info().
		Str("connId", connID).
		Str("role", string(ident.Role)).
		Str("subjectId", ident.SubjectID).
		Msg("client connected")

	go client.keepAlive()
	go client.writeMessage()
	go client.readMessage(h.ctx, h.frames)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	wildcard := false
	for _, origin := range allowed {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			wildcard = true
		}
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin.
		if origin == "" || wildcard {
			return true
		}
		return set[strings.TrimRight(origin, "/")]
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
