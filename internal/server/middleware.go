package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/guessucla/campusguess/internal/auth"
	"github.com/guessucla/campusguess/internal/tracing"
)

type ctxKey int

const (
	ctxKeyIdentity ctxKey = iota
)

// identity is the authenticated player behind a request.
type identity struct {
	UserID    string
	SessionID string
	Name      string
}

var errNoIdentity = errors.New("no valid identity")

// identityFromRequest validates the Bearer token and its auth session.
// It returns errNoIdentity when no token is present.
func identityFromRequest(r *http.Request, tokens *auth.TokenIssuer, store Store) (identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return identity{}, errNoIdentity
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return identity{}, auth.ErrInvalidToken
	}

	claims, err := tokens.Validate(token)
	if err != nil {
		return identity{}, err
	}

	ok, err := store.AuthSessionValid(r.Context(), claims.ID, claims.Subject)
	if err != nil {
		return identity{}, err
	}
	if !ok {
		return identity{}, auth.ErrInvalidToken
	}
	return identity{UserID: claims.Subject, SessionID: claims.ID, Name: claims.Name}, nil
}

// authMiddleware puts the caller's identity into the request context. With
// required set, requests without a valid identity get 401. Otherwise
// anonymous requests pass, but a bad token is still rejected.
func authMiddleware(logger *slog.Logger, tokens *auth.TokenIssuer, store Store, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identityFromRequest(r, tokens, store)
			switch {
			case errors.Is(err, errNoIdentity) && !required:
				next.ServeHTTP(w, r)
				return
			case errors.Is(err, auth.ErrExpiredToken):
				writeError(w, http.StatusUnauthorized, "token expired")
				return
			case errors.Is(err, errNoIdentity), errors.Is(err, auth.ErrInvalidToken):
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			case err != nil:
				logger.Error("checking auth session", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identityFrom returns the request's identity, if any.
func identityFrom(r *http.Request) (identity, bool) {
	id, ok := r.Context().Value(ctxKeyIdentity).(identity)
	return id, ok
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				attrs := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				}
				if traceID := tracing.TraceID(r.Context()); traceID != "" {
					attrs = append(attrs, "trace_id", traceID)
				}
				logger.Info("http request", attrs...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
