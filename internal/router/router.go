// Package router wires the HTTP surface: REST endpoints for posting
// and moderation, the websocket feed, media serving and metrics.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/friendlychat-dev/friendlychat/internal/middleware"
	"github.com/friendlychat-dev/friendlychat/internal/setup"
)

func New(deps *setup.Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(mw.Metrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:8081"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	h := deps.Handler
	authMw := deps.AuthMiddleware

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/media/{file}", h.ServeMedia)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)

		// the feed socket serves anonymous readers too; auth only
		// unlocks pagination and notifications
		r.With(authMw.OptionalAuth()).Get("/feed/ws", h.Feed)

		r.Group(func(r chi.Router) {
			r.Use(authMw.NeedAuth())

			r.Post("/messages", h.CreateMessage)
			r.Post("/messages/image", h.CreateImageMessage)
			r.Get("/messages", h.GetMessages)
			r.Get("/messages/favorites", h.GetFavorites)
			r.Post("/messages/{id}/favorite", h.ToggleFavorite)
			r.Delete("/messages/{id}", h.DeleteMessage)
			r.Delete("/messages", h.DeleteMessages)

			r.Post("/push/token", h.RegisterPushToken)
			r.Delete("/push/token", h.UnregisterPushToken)
		})
	})

	return r
}
