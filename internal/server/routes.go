package server

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	store := deps.Store
	sessions := NewSessions(deps.Game, deps.Registry, deps.Broker, deps.Leaderboard, deps.Landmarks, deps.Metrics, logger)
	optionalAuth := authMiddleware(logger, deps.Tokens, store, false)
	requireAuth := authMiddleware(logger, deps.Tokens, store, true)

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Campus Guess API", "/openapi.json", "/docs"))
	if deps.Health != nil {
		r.Mount("/healthz", deps.Health)
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// Auth
		r.Post("/auth/register", handleRegister(store, deps.Tokens, logger))
		r.Post("/auth/login", handleLogin(deps.Authenticator, store, deps.Tokens, logger))
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/auth/logout", handleLogout(store, logger))
			r.Get("/me", handleMe(store, logger))
		})

		// Sessions are reachable by anyone holding the ID unless a signed-in
		// player started them.
		r.Route("/sessions", func(r chi.Router) {
			r.Use(optionalAuth)
			r.Post("/", handleCreateSession(sessions))
			r.Get("/{id}", handleGetSession(sessions))
			r.Put("/{id}/marker", handlePlaceMarker(sessions))
			r.Delete("/{id}/marker", handleClearMarker(sessions))
			r.Post("/{id}/guess", handleSubmitGuess(sessions))
			r.Post("/{id}/advance", handleAdvance(sessions))
		})

		r.Post("/lobbies", handleCreateLobby(deps.PublicBaseURL))
		r.Route("/lobbies/{token}", func(r chi.Router) {
			r.Get("/", handleGetLobby(store, deps.Broker, logger))
			r.Get("/qr.png", handleLobbyQR(deps.PublicBaseURL))
			r.Get("/events", handleLobbyEvents(deps.Broker))
			r.Get("/ws", handleLobbyWS(deps.Broker, logger))
		})

		r.Route("/locations", func(r chi.Router) {
			r.Get("/", handleListLocations(store, logger))
			r.Get("/count", handleLocationCount(store, logger))
			r.Get("/{id}/image", handleLocationImage(store, deps.Images, logger))
			r.Post("/{id}/view", handleRecordView(store, logger))
			r.Post("/{id}/like", handleRecordLike(store, logger))
			r.Post("/{id}/comments", handleAddComment(store, logger))
		})

		r.Get("/leaderboard", handleLeaderboard(deps.Leaderboard, logger))
		r.Get("/users/{id}/games", handleUserGames(store, logger))

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})
	})

	if deps.SPADir != "" {
		if info, err := os.Stat(deps.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", deps.SPADir)
			r.NotFound(handleSPA(deps.SPADir))
		}
	}
}
