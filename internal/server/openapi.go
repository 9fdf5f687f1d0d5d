package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/guessucla/campusguess/internal/handler/health"
)

type operation struct {
	method, path, summary, description string
	req                                any
	resp                               any
	status                             int
	contentType                        string
	errors                             []int
}

var operations = []operation{
	{method: http.MethodGet, path: "/healthz", summary: "Health check",
		description: "Returns the health status of backend dependencies.",
		resp:        map[string]health.Result{}, status: http.StatusOK,
		errors: []int{http.StatusServiceUnavailable}},

	{method: http.MethodPost, path: "/api/auth/register", summary: "Register",
		description: "Creates a player account and returns an identity token.",
		req:         RegisterRequest{}, resp: AuthResponse{}, status: http.StatusCreated,
		errors: []int{http.StatusBadRequest, http.StatusConflict}},
	{method: http.MethodPost, path: "/api/auth/login", summary: "Log in",
		description: "Exchanges email and password for an identity token.",
		req:         LoginRequest{}, resp: AuthResponse{}, status: http.StatusOK,
		errors: []int{http.StatusUnauthorized}},
	{method: http.MethodPost, path: "/api/auth/logout", summary: "Log out",
		description: "Ends the auth session behind the Bearer token.",
		resp:        StatusResponse{}, status: http.StatusOK,
		errors: []int{http.StatusUnauthorized}},
	{method: http.MethodGet, path: "/api/me", summary: "Current player",
		description: "Returns the signed-in player with their game stats. Requires Bearer token.",
		resp:        MeResponse{}, status: http.StatusOK,
		errors: []int{http.StatusUnauthorized}},

	{method: http.MethodPost, path: "/api/sessions", summary: "Start session",
		description: "Selects the rounds for a new session. A lobby token makes every player in the lobby get the same rounds.",
		req:         CreateSessionRequest{}, resp: SessionView{}, status: http.StatusCreated,
		errors: []int{http.StatusBadRequest, http.StatusConflict, http.StatusServiceUnavailable}},
	{method: http.MethodGet, path: "/api/sessions/{id}", summary: "Get session",
		description: "Returns the session's current round and scores so far.",
		resp:        SessionView{}, status: http.StatusOK,
		errors: []int{http.StatusForbidden, http.StatusNotFound}},
	{method: http.MethodPut, path: "/api/sessions/{id}/marker", summary: "Place marker",
		description: "Places or moves the pending marker, in map pixels.",
		req:         MarkerRequest{}, resp: SessionView{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict}},
	{method: http.MethodDelete, path: "/api/sessions/{id}/marker", summary: "Clear marker",
		description: "Removes the pending marker.",
		resp:        SessionView{}, status: http.StatusOK,
		errors: []int{http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/sessions/{id}/guess", summary: "Submit guess",
		description: "Scores the marker against the round's location and reveals it.",
		req:         GuessRequest{}, resp: GuessResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict}},
	{method: http.MethodPost, path: "/api/sessions/{id}/advance", summary: "Next round",
		description: "Moves past the reveal. After the last round the result is saved and the session finishes.",
		resp:        SessionView{}, status: http.StatusOK,
		errors: []int{http.StatusNotFound, http.StatusConflict, http.StatusServiceUnavailable}},

	{method: http.MethodPost, path: "/api/lobbies", summary: "Create lobby",
		description: "Returns a new lobby token with its share link.",
		resp:        CreateLobbyResponse{}, status: http.StatusCreated},
	{method: http.MethodGet, path: "/api/lobbies/{token}", summary: "Get lobby",
		description: "Returns the lobby's seed and finished results.",
		resp:        LobbyResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest}},
	{method: http.MethodGet, path: "/api/lobbies/{token}/qr.png", summary: "Lobby QR code",
		description: "PNG QR code of the lobby's share link.",
		status: http.StatusOK, contentType: "image/png"},
	{method: http.MethodGet, path: "/api/lobbies/{token}/events", summary: "Lobby events (SSE)",
		description: "Server-Sent Events stream of player_started and player_finished events.",
		status: http.StatusOK, contentType: "text/event-stream"},
	{method: http.MethodGet, path: "/api/lobbies/{token}/ws", summary: "Lobby events (WebSocket)",
		description: "Upgrades to a WebSocket carrying the same events as the SSE stream.",
		status: http.StatusSwitchingProtocols, contentType: "text/plain"},

	{method: http.MethodGet, path: "/api/locations/count", summary: "Location count",
		resp: LocationCountResponse{}, status: http.StatusOK,
		errors: []int{http.StatusServiceUnavailable}},
	{method: http.MethodGet, path: "/api/locations", summary: "List locations",
		description: "All locations, or with ?indices=3,1,4 the locations at those positions in that order.",
		resp:        []LocationResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/locations/{id}/image", summary: "Location image",
		description: "Redirects to a short-lived URL for the location's photo.",
		status: http.StatusFound, contentType: "text/plain",
		errors: []int{http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/locations/{id}/view", summary: "Record view",
		resp: LocationResponse{}, status: http.StatusOK,
		errors: []int{http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/locations/{id}/like", summary: "Record like",
		description: "Counts a like, or a dislike with ?liked=false.",
		resp:        LocationResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/locations/{id}/comments", summary: "Add comment",
		req: CommentRequest{}, resp: LocationResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusNotFound}},

	{method: http.MethodGet, path: "/api/leaderboard", summary: "Leaderboard",
		description: "Top finished sessions by total score.",
		resp:        []GameRecord{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest}},
	{method: http.MethodGet, path: "/api/users/{id}/games", summary: "Player history",
		description: "A player's finished sessions, newest first.",
		resp:        []GameRecord{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest}},
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Campus Guess API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the campus geography guessing game.")

	for _, op := range operations {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		if op.description != "" {
			oc.SetDescription(op.description)
		}
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		if op.contentType != "" {
			oc.AddRespStructure(nil, openapi.WithHTTPStatus(op.status), openapi.WithContentType(op.contentType))
		} else {
			oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(op.status))
		}
		for _, status := range op.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
