package server

import (
	"errors"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/guessucla/campusguess/internal/campusguess"
)

const maxLobbyTokenLen = 128

type CreateSessionRequest struct {
	LobbyToken string `json:"lobbyToken,omitempty"`
}

type MarkerRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type GuessRequest struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type TargetView struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type NearestLandmarkView struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	DistanceMiles float64 `json:"distanceMiles"`
}

// RoundView never exposes the target before the round is guessed.
type RoundView struct {
	Index         int                `json:"index"`
	LocationID    string             `json:"locationId"`
	ImageURL      string             `json:"imageUrl"`
	Score         *int               `json:"score,omitempty"`
	DistanceMiles *float64           `json:"distanceMiles,omitempty"`
	Guess         *LatLon            `json:"guess,omitempty"`
	GuessPixel    *campusguess.Point `json:"guessPixel,omitempty"`
	Target        *TargetView        `json:"target,omitempty"`
}

type SessionView struct {
	ID          string             `json:"id"`
	State       campusguess.State  `json:"state"`
	Round       int                `json:"round"`
	TotalRounds int                `json:"totalRounds"`
	LobbyToken  string             `json:"lobbyToken,omitempty"`
	ImageURL    string             `json:"imageUrl"`
	Marker      *campusguess.Point `json:"marker,omitempty"`
	Current     RoundView          `json:"current"`
	Scores      []int              `json:"scores"`
	Total       int                `json:"total"`
	// Rounds is only filled once the session is finished.
	Rounds []RoundView `json:"rounds,omitempty"`
}

type GuessResponse struct {
	Score           int                  `json:"score"`
	DistanceMiles   float64              `json:"distanceMiles"`
	Guess           LatLon               `json:"guess"`
	Target          TargetView           `json:"target"`
	NearestLandmark *NearestLandmarkView `json:"nearestLandmark,omitempty"`
	Session         SessionView          `json:"session"`
}

func imageURL(locationID string) string {
	return "/api/locations/" + locationID + "/image"
}

func roundView(r campusguess.Round) RoundView {
	v := RoundView{
		Index:      r.Index,
		LocationID: r.Location.ID,
		ImageURL:   imageURL(r.Location.ID),
		Score:      r.Score,
	}
	if r.Guess != nil {
		dist := r.Guess.DistanceMiles
		pixel := r.Guess.Pixel
		v.DistanceMiles = &dist
		v.GuessPixel = &pixel
		v.Guess = &LatLon{Lat: r.Guess.Coord.Lat, Lon: r.Guess.Coord.Lon}
		v.Target = &TargetView{
			ID:   r.Location.ID,
			Name: r.Location.Name,
			Lat:  r.Location.Coord.Lat,
			Lon:  r.Location.Coord.Lon,
		}
	}
	return v
}

// sessionView must be called with the session's lock held.
func sessionView(s *campusguess.Session) SessionView {
	cur := roundView(s.Current())
	v := SessionView{
		ID:          s.ID,
		State:       s.State(),
		Round:       s.RoundIndex(),
		TotalRounds: s.TotalRounds(),
		LobbyToken:  s.LobbyToken,
		ImageURL:    cur.ImageURL,
		Marker:      s.Marker(),
		Current:     cur,
		Scores:      s.Scores(),
		Total:       s.Total(),
	}
	if s.State() == campusguess.StateFinished {
		for _, r := range s.Rounds() {
			v.Rounds = append(v.Rounds, roundView(r))
		}
	}
	return v
}

func validLobbyToken(token string) bool {
	if token == "" || len(token) > maxLobbyTokenLen {
		return false
	}
	for _, c := range token {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func handleCreateSession(svc *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.LobbyToken != "" && !validLobbyToken(req.LobbyToken) {
			writeError(w, http.StatusBadRequest, "invalid lobby token")
			return
		}

		id, authed := identityFrom(r)
		sess, err := svc.game.Start(r.Context(), campusguess.StartRequest{
			SessionID:  uuid.NewString(),
			PlayerID:   id.UserID,
			LobbyToken: req.LobbyToken,
		})
		switch {
		case errors.Is(err, campusguess.ErrDataUnavailable):
			svc.metrics.SessionStartFailed("data_unavailable")
			svc.logger.Warn("session setup failed", "error", err)
			writeRetryable(w, http.StatusServiceUnavailable, "location data unavailable, try again")
			return
		case errors.Is(err, campusguess.ErrInvalidSelection):
			svc.metrics.SessionStartFailed("invalid_selection")
			svc.logger.Warn("session setup failed", "error", err)
			writeError(w, http.StatusConflict, "not enough locations for a session")
			return
		case err != nil:
			svc.metrics.SessionStartFailed("internal")
			svc.logger.Error("starting session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		ls := svc.registry.Put(sess)
		svc.started(sess, playerName(id, authed))

		ls.mu.Lock()
		view := sessionView(ls.session)
		ls.mu.Unlock()
		writeJSON(w, http.StatusCreated, view)
	}
}

// liveSessionFrom resolves {id} and checks the caller may act on it.
// Sessions started by a signed-in player only answer to that player.
func liveSessionFrom(w http.ResponseWriter, r *http.Request, registry *Registry) (*liveSession, bool) {
	ls, ok := registry.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	// PlayerID is fixed at start, so reading it unlocked is fine.
	if owner := ls.session.PlayerID; owner != "" {
		id, authed := identityFrom(r)
		if !authed || id.UserID != owner {
			writeError(w, http.StatusForbidden, "session belongs to another player")
			return nil, false
		}
	}
	return ls, true
}

func handleGetSession(svc *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ls, ok := liveSessionFrom(w, r, svc.registry)
		if !ok {
			return
		}
		ls.mu.Lock()
		view := sessionView(ls.session)
		ls.mu.Unlock()
		writeJSON(w, http.StatusOK, view)
	}
}

func handlePlaceMarker(svc *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ls, ok := liveSessionFrom(w, r, svc.registry)
		if !ok {
			return
		}
		var req MarkerRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !finite(req.X, req.Y) {
			writeError(w, http.StatusBadRequest, "marker must be finite")
			return
		}

		ls.mu.Lock()
		defer ls.mu.Unlock()
		if !ls.session.PlaceMarker(campusguess.Point{X: req.X, Y: req.Y}) {
			writeError(w, http.StatusConflict, "round is not awaiting a guess")
			return
		}
		writeJSON(w, http.StatusOK, sessionView(ls.session))
	}
}

func handleClearMarker(svc *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ls, ok := liveSessionFrom(w, r, svc.registry)
		if !ok {
			return
		}
		ls.mu.Lock()
		defer ls.mu.Unlock()
		ls.session.ClearMarker()
		writeJSON(w, http.StatusOK, sessionView(ls.session))
	}
}

func handleSubmitGuess(svc *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ls, ok := liveSessionFrom(w, r, svc.registry)
		if !ok {
			return
		}
		var req GuessRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if (req.X == nil) != (req.Y == nil) {
			writeError(w, http.StatusBadRequest, "x and y must be given together")
			return
		}
		if req.X != nil && !finite(*req.X, *req.Y) {
			writeError(w, http.StatusBadRequest, "marker must be finite")
			return
		}

		ls.mu.Lock()
		defer ls.mu.Unlock()
		sess := ls.session

		if sess.State() != campusguess.StateAwaitingGuess {
			writeError(w, http.StatusConflict, "round already guessed")
			return
		}
		if req.X != nil {
			sess.PlaceMarker(campusguess.Point{X: *req.X, Y: *req.Y})
		}
		round, ok := sess.SubmitGuess()
		if !ok {
			writeError(w, http.StatusConflict, "no marker placed")
			return
		}
		svc.metrics.Guess(*round.Score, round.Guess.DistanceMiles)

		resp := GuessResponse{
			Score:         *round.Score,
			DistanceMiles: round.Guess.DistanceMiles,
			Guess:         LatLon{Lat: round.Guess.Coord.Lat, Lon: round.Guess.Coord.Lon},
			Target: TargetView{
				ID:   round.Location.ID,
				Name: round.Location.Name,
				Lat:  round.Location.Coord.Lat,
				Lon:  round.Location.Coord.Lon,
			},
			Session: sessionView(sess),
		}
		if lm, miles, ok := svc.landmarks.Nearest(round.Guess.Coord); ok {
			resp.NearestLandmark = &NearestLandmarkView{ID: lm.ID, Name: lm.Name, DistanceMiles: miles}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleAdvance(svc *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ls, ok := liveSessionFrom(w, r, svc.registry)
		if !ok {
			return
		}
		id, authed := identityFrom(r)
		name := playerName(id, authed)

		ls.mu.Lock()
		defer ls.mu.Unlock()
		sess := ls.session

		// A finished session whose result the sink refused earlier.
		if ls.pending != nil {
			if err := svc.game.Submit(r.Context(), *ls.pending); err != nil {
				svc.logger.Error("retrying session result", "session_id", sess.ID, "error", err)
				writeRetryable(w, http.StatusServiceUnavailable, "could not save result, try again")
				return
			}
			svc.finished(r.Context(), *ls.pending, name)
			ls.pending = nil
			writeJSON(w, http.StatusOK, sessionView(sess))
			return
		}

		res, advanced, err := svc.game.Advance(r.Context(), sess)
		if !advanced {
			if sess.State() == campusguess.StateFinished {
				writeError(w, http.StatusConflict, "session already finished")
			} else {
				writeError(w, http.StatusConflict, "round not guessed yet")
			}
			return
		}
		if err != nil {
			ls.pending = res
			svc.logger.Error("saving session result", "session_id", sess.ID, "error", err)
			writeRetryable(w, http.StatusServiceUnavailable, "could not save result, try again")
			return
		}
		if res != nil {
			svc.finished(r.Context(), *res, name)
		}
		writeJSON(w, http.StatusOK, sessionView(sess))
	}
}
