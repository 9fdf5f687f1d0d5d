package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guessucla/campusguess/internal/campusguess"
)

func TestCreateLobby(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/lobbies", nil, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var resp CreateLobbyResponse
	decode(t, w, &resp)

	if !strings.HasPrefix(resp.Token, "lobby_") {
		t.Errorf("unexpected token %q", resp.Token)
	}
	if resp.ShareURL != "https://guess.example.com/lobby/"+resp.Token {
		t.Errorf("unexpected share url %q", resp.ShareURL)
	}
	if resp.QRURL != "/api/lobbies/"+resp.Token+"/qr.png" {
		t.Errorf("unexpected qr url %q", resp.QRURL)
	}
}

func TestGetLobbyResults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lobby := "lobby_1700000000000"

	for i, total := range []int{1200, 4100} {
		err := env.store.SubmitSessionResult(ctx, campusguess.Result{
			SessionID:  []string{"s1", "s2"}[i],
			LobbyToken: lobby,
			Scores:     []int{total},
			Total:      total,
			FinishedAt: time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	w := env.do(t, http.MethodGet, "/api/lobbies/"+lobby, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp LobbyResponse
	decode(t, w, &resp)

	if resp.Seed != campusguess.HashLobbyToken(lobby) {
		t.Errorf("seed %d, want %d", resp.Seed, campusguess.HashLobbyToken(lobby))
	}
	if len(resp.Results) != 2 || resp.Results[0].Total != 4100 {
		t.Fatalf("expected results best first, got %+v", resp.Results)
	}
}

func TestGetLobbyEmpty(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/lobbies/lobby_1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"results":[]`) {
		t.Errorf("expected an empty results array, got %s", w.Body.String())
	}
}

func TestLobbyQR(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/lobbies/lobby_1/qr.png", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("content-type = %q", got)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
}

func TestLobbyBadToken(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/lobbies/bad%20token", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// waitForSubscriber blocks until the lobby has a subscriber.
func waitForSubscriber(t *testing.T, b *Broker, lobby string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.Subscribers(lobby) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no subscriber appeared")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLobbyEventsSSE(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/lobbies/lobby_7/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q", got)
	}

	waitForSubscriber(t, env.deps.Broker, "lobby_7")
	env.deps.Broker.Publish("lobby_7", LobbyEvent{Type: EventPlayerFinished, SessionID: "s1", PlayerName: "Ana", Total: 9000})

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev LobbyEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Type != EventPlayerFinished || ev.Total != 9000 {
			t.Fatalf("unexpected event %+v", ev)
		}
		return
	}
	t.Fatalf("stream ended without an event: %v", sc.Err())
}

func TestLobbyEventsWebSocket(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/lobbies/lobby_8/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitForSubscriber(t, env.deps.Broker, "lobby_8")
	env.deps.Broker.Publish("lobby_8", LobbyEvent{Type: EventPlayerStarted, SessionID: "s2", PlayerName: "Ben"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev LobbyEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != EventPlayerStarted || ev.PlayerName != "Ben" {
		t.Fatalf("unexpected event %+v", ev)
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for env.deps.Broker.Subscribers("lobby_8") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
