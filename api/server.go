/*
server.go - HTTP router and middleware configuration

ROUTER: chi

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request count / latency per route
  5. CORS:       Cross-origin requests for the frontend
  6. Auth:       Bearer token -> user on context (anonymous allowed)

  Write routes are wrapped in auth.RequireUser.

ROUTE GROUPS:
  /api/auth/*        Signup / login / logout
  /api/me            Profile
  /api/posts/*       Posts, comments, post likes
  /api/comments/*    Comment likes
  /api/leaderboard   Rolling leaderboard
  /metrics           Prometheus scrape endpoint
  /healthz           Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/karma-engine/auth"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, issuer *auth.Issuer, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(issuer.Middleware)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)
			r.With(auth.RequireUser).Post("/logout", h.Logout)
		})

		r.With(auth.RequireUser).Get("/me", h.Me)

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", h.ListPosts)
			r.With(auth.RequireUser).Post("/", h.CreatePost)
			r.Get("/{id}", h.GetPost)
			r.With(auth.RequireUser).Post("/{id}/comments", h.CreateComment)
			r.With(auth.RequireUser).Post("/{id}/like", h.LikePost)
		})

		r.Route("/comments", func(r chi.Router) {
			r.With(auth.RequireUser).Post("/{id}/like", h.LikeComment)
		})

		r.Get("/leaderboard", h.Leaderboard)
	})

	r.Handle("/metrics", h.Metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
