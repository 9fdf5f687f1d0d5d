package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/guessucla/campusguess/internal/auth"
	"github.com/guessucla/campusguess/internal/campusguess"
	"github.com/guessucla/campusguess/internal/database"
	"github.com/guessucla/campusguess/internal/landmark"
	"github.com/guessucla/campusguess/internal/metrics"
)

var testCalibration = campusguess.Calibration{
	A: campusguess.Coord{Lat: 34.079898, Lon: -118.460099},
	B: campusguess.Coord{Lat: 34.061762, Lon: -118.432620},
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *DocStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewDocStore(ctx, db)
	if err != nil {
		t.Fatalf("init doc store: %v", err)
	}
	return store
}

type testEnv struct {
	store   *DocStore
	deps    Deps
	handler http.Handler
}

// newTestEnv builds the full router over a seeded in-memory store. opts
// run before the router is built.
func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	logger := discardLogger()
	store := newTestStore(t)
	if err := SeedDemo(context.Background(), logger, store); err != nil {
		t.Fatalf("seed: %v", err)
	}

	locs, err := store.AllLocations(context.Background())
	if err != nil {
		t.Fatalf("all locations: %v", err)
	}
	landmarks := landmark.NewIndex()
	landmarks.Load(locs)

	m := metrics.NewGame()
	deps := Deps{
		Store: store,
		Game: campusguess.NewGame(campusguess.GameConfig{
			Rounds:       3,
			Calibration:  testCalibration,
			Curve:        campusguess.DefaultScoreCurve,
			SetupTimeout: time.Second,
		}, store, store),
		Registry:      NewRegistry(time.Hour, m.SetLiveSessions),
		Broker:        NewBroker(),
		Leaderboard:   NewLeaderboard(store, nil, m, logger),
		Landmarks:     landmarks,
		Tokens:        auth.NewTokenIssuer("test-secret", "", time.Hour),
		Authenticator: auth.NewPasswordAuthenticator(store),
		Metrics:       m,
		PublicBaseURL: "https://guess.example.com",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testEnv{store: store, deps: deps, handler: newHandler(logger, deps)}
}

// do sends a request with an optional JSON body and bearer token.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

// register creates a player and returns their token.
func (e *testEnv) register(t *testing.T, name, email string) AuthResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/register", RegisterRequest{
		Name: name, Email: email, Password: "correct horse",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp AuthResponse
	decode(t, w, &resp)
	return resp
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

// targetPixel is the map position that lands exactly on the location.
func (e *testEnv) targetPixel(t *testing.T, locationID string) campusguess.Point {
	t.Helper()
	loc, err := e.store.LocationByID(context.Background(), locationID)
	if err != nil {
		t.Fatalf("location %s: %v", locationID, err)
	}
	return testCalibration.ToXY(loc.Coord)
}

type failingSink struct {
	Store
	fail bool
}

func (s *failingSink) SubmitSessionResult(ctx context.Context, res campusguess.Result) error {
	if s.fail {
		return errSinkDown
	}
	return s.Store.SubmitSessionResult(ctx, res)
}

var errSinkDown = errors.New("results store unavailable")
