package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const (
	defaultGamesLimit = 20
	maxListLimit      = 100
)

// queryLimit reads ?limit=, falling back to def. ok is false when the
// value is not a positive integer.
func queryLimit(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, maxListLimit), true
}

func handleLeaderboard(board *Leaderboard, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, ok := queryLimit(r, defaultLeaderboardN)
		if !ok {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		recs, err := board.Top(r.Context(), n)
		if err != nil {
			logger.Error("loading leaderboard", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if recs == nil {
			recs = []GameRecord{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func handleUserGames(store Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, ok := queryLimit(r, defaultGamesLimit)
		if !ok {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		recs, err := store.UserGames(r.Context(), chi.URLParam(r, "id"), n)
		if err != nil {
			logger.Error("loading user games", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if recs == nil {
			recs = []GameRecord{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}
