package router

import (
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jobyojnahub-a11y/websevixof/internal/api"
	"github.com/jobyojnahub-a11y/websevixof/internal/api/endpoints"
	"github.com/jobyojnahub-a11y/websevixof/internal/api/middleware"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

func AdminRoutes(prefix string, admin endpoints.AdminEndpoints, parser middleware.TokenParser) api.RouteRegistrar {
	return func(r chi.Router, s *api.APIServer) {
		auth := middleware.RequireRole(parser, model.RoleAdmin)
		base := strings.TrimRight(prefix, "/")

		r.Get(base+"/visitors", s.MakeHTTPHandleFunc(admin.Visitors, auth))
		r.Post(base+"/visitors/connect", s.MakeHTTPHandleFunc(admin.ConnectVisitor, auth))
		r.Get(base+"/conversations", s.MakeHTTPHandleFunc(admin.Conversations, auth))
		r.Patch(base+"/conversations/{conversationId}", s.MakeHTTPHandleFunc(admin.UpdateConversation, auth))
		r.Get(base+"/conversations/{conversationId}/messages", s.MakeHTTPHandleFunc(admin.Messages, auth))
		r.Post(base+"/conversations/{conversationId}/messages", s.MakeHTTPHandleFunc(admin.PostMessage, auth))
		r.Post(base+"/conversations/{conversationId}/read", s.MakeHTTPHandleFunc(admin.MarkRead, auth))
		r.Get(base+"/stats", s.MakeHTTPHandleFunc(admin.Stats, auth))
	}
}
