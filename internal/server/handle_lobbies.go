package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"

	"github.com/guessucla/campusguess/internal/campusguess"
)

const (
	qrSize       = 320
	pingInterval = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Lobby feeds carry nothing private.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type CreateLobbyResponse struct {
	Token    string `json:"token"`
	ShareURL string `json:"shareUrl"`
	QRURL    string `json:"qrUrl"`
}

type LobbyResponse struct {
	Token    string       `json:"token"`
	Seed     int64        `json:"seed"`
	Watching int          `json:"watching"`
	Results  []GameRecord `json:"results"`
}

func shareURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/lobby/" + url.PathEscape(token)
}

// lobbyToken reads and validates {token}, writing 400 when it is bad.
func lobbyToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := chi.URLParam(r, "token")
	if !validLobbyToken(token) {
		writeError(w, http.StatusBadRequest, "invalid lobby token")
		return "", false
	}
	return token, true
}

func handleCreateLobby(baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := campusguess.NewLobbyToken(time.Now())
		writeJSON(w, http.StatusCreated, CreateLobbyResponse{
			Token:    token,
			ShareURL: shareURL(baseURL, token),
			QRURL:    "/api/lobbies/" + token + "/qr.png",
		})
	}
}

func handleGetLobby(store Store, broker *Broker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := lobbyToken(w, r)
		if !ok {
			return
		}
		results, err := store.LobbyResults(r.Context(), token)
		if err != nil {
			logger.Error("loading lobby results", "lobby", token, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, LobbyResponse{
			Token:    token,
			Seed:     campusguess.HashLobbyToken(token),
			Watching: broker.Subscribers(token),
			Results:  results,
		})
	}
}

func handleLobbyQR(baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := lobbyToken(w, r)
		if !ok {
			return
		}
		png, err := qrcode.Encode(shareURL(baseURL, token), qrcode.Medium, qrSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "qr generation failed")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write(png)
	}
}

func handleLobbyEvents(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := lobbyToken(w, r)
		if !ok {
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		ch := broker.Subscribe(token)
		defer broker.Unsubscribe(token, ch)

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-ch:
				fmt.Fprintf(w, "event: lobby\ndata: %s\n\n", data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}

func handleLobbyWS(broker *Broker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := lobbyToken(w, r)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "lobby", token, "error", err)
			return
		}
		defer conn.Close()

		ch := broker.Subscribe(token)
		defer broker.Unsubscribe(token, ch)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Clients never send anything; reading only notices the close.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						logger.Warn("lobby websocket closed", "lobby", token, "error", err)
					}
					return
				}
			}
		}()

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case data := <-ch:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}
}
