package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/jobyojnahub-a11y/websevixof/internal/api"
	"github.com/jobyojnahub-a11y/websevixof/internal/api/endpoints"
)

func UtilsRoutes(prefix string) api.RouteRegistrar {
	return func(r chi.Router, s *api.APIServer) {
		utilsEndpoints := endpoints.NewUtilsEndpoints()
		r.Get(prefix+"/health", s.MakeHTTPHandleFunc(utilsEndpoints.Health))
	}
}
