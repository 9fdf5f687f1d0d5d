package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/guessucla/campusguess/internal/auth"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
	maxNameLen     = 64
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *RegisterRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = auth.NormalizeEmail(req.Email)
	switch {
	case req.Name == "":
		return "name is required"
	case utf8.RuneCountInString(req.Name) > maxNameLen:
		return "name is too long"
	case !strings.Contains(req.Email, "@"):
		return "a valid email is required"
	case len(req.Password) < minPasswordLen:
		return "password must be at least 8 characters"
	case len(req.Password) > maxPasswordLen:
		return "password is too long"
	}
	return ""
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

type MeResponse struct {
	User
	UserStats
}

type StatusResponse struct {
	Status string `json:"status"`
}

// issueToken opens an auth session for the user and signs a token bound to it.
func issueToken(r *http.Request, store Store, tokens *auth.TokenIssuer, user User) (AuthResponse, error) {
	sessionID, err := store.CreateAuthSession(r.Context(), user.ID, time.Now().Add(tokens.TTL()))
	if err != nil {
		return AuthResponse{}, err
	}
	token, exp, err := tokens.Issue(user.ID, sessionID, user.Name)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{Token: token, ExpiresAt: exp, User: user}, nil
}

func handleRegister(store Store, tokens *auth.TokenIssuer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			logger.Error("hashing password", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		user, err := store.CreateUser(r.Context(), req.Name, req.Email, hash)
		if errors.Is(err, ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		if err != nil {
			logger.Error("creating user", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		resp, err := issueToken(r, store, tokens, user)
		if err != nil {
			logger.Error("issuing token", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		logger.Info("user registered", "user_id", user.ID)
		writeJSON(w, http.StatusCreated, resp)
	}
}

func handleLogin(authn auth.Authenticator, store Store, tokens *auth.TokenIssuer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		id, err := authn.Authenticate(r.Context(), auth.Credentials{Email: req.Email, Password: req.Password})
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		if err != nil {
			logger.Error("authenticating", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		user, err := store.UserByID(r.Context(), id.UserID)
		if err != nil {
			logger.Error("loading user", "user_id", id.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		resp, err := issueToken(r, store, tokens, user)
		if err != nil {
			logger.Error("issuing token", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleLogout(store Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := identityFrom(r)
		if err := store.DeleteAuthSession(r.Context(), id.SessionID); err != nil {
			logger.Error("deleting auth session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
	}
}

func handleMe(store Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := identityFrom(r)
		user, err := store.UserByID(r.Context(), id.UserID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if err != nil {
			logger.Error("loading user", "user_id", id.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		stats, err := store.UserStats(r.Context(), user.ID)
		if err != nil {
			logger.Error("loading stats", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, MeResponse{User: user, UserStats: stats})
	}
}
