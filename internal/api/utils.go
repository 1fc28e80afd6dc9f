package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/api/middleware"
	"github.com/jobyojnahub-a11y/websevixof/internal/queue"
)

type apiFunc func(http.ResponseWriter, *http.Request) error

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// MakeHTTPHandleFunc runs f on the request queue behind CORS, request
// logging and the given auth middleware. Errors returned by f become JSON
// error bodies.
func (s *APIServer) MakeHTTPHandleFunc(f apiFunc, authMiddleware ...middleware.Middleware) http.HandlerFunc {
	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		errc := make(chan error, 1)

		s.requestQueueManager.EnqueueJob(queue.Job{
			Fn: func() error {
				return f(w, r)
			},
			Errc: errc,
		})

		if err := <-errc; err != nil {
			writeError(w, r, err)
		}
	}

	handler := middleware.Chain(baseHandler, authMiddleware...)
	return middleware.Chain(handler, middleware.CORS(s.cors), middleware.Logging())
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = FromServiceError(err)
	}

	if httpErr.StatusCode >= http.StatusInternalServerError {
		log.Error().Err(httpErr.ErrorLog).Str("path", r.URL.Path).Msg("request failed")
	} else if httpErr.ErrorLog != nil {
		log.Debug().Err(httpErr.ErrorLog).Str("path", r.URL.Path).Int("status", httpErr.StatusCode).Msg("request rejected")
	}
	_ = WriteJSON(w, httpErr.StatusCode, ApiError{Error: httpErr.Message})
}

// preflight answers CORS preflight requests before routing, so routes
// registered for one method still pass browser checks.
func (s *APIServer) preflight(next http.Handler) http.Handler {
	answer := middleware.Chain(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, middleware.CORS(s.cors))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			answer(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
