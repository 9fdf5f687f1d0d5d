package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/guessucla/campusguess/internal/campusguess"
)

const (
	maxIndices       = 50
	maxCommentLength = 500
)

// ImageURLer turns an image object key into a URL the browser can load.
type ImageURLer interface {
	URL(ctx context.Context, key string) (string, error)
}

type LocationResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Address     string   `json:"address,omitempty"`
	Coordinates string   `json:"coordinates"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	ImageURL    string   `json:"imageUrl"`
	Views       int      `json:"views"`
	Likes       int      `json:"likes"`
	Dislikes    int      `json:"dislikes"`
	Comments    []string `json:"comments"`
}

type LocationCountResponse struct {
	Count int `json:"count"`
}

type CommentRequest struct {
	Comment string `json:"comment"`
}

func toLocationResponse(loc campusguess.Location) LocationResponse {
	comments := loc.Comments
	if comments == nil {
		comments = []string{}
	}
	return LocationResponse{
		ID:          loc.ID,
		Name:        loc.Name,
		Address:     loc.Address,
		Coordinates: loc.Coord.String(),
		Lat:         loc.Coord.Lat,
		Lon:         loc.Coord.Lon,
		ImageURL:    imageURL(loc.ID),
		Views:       loc.Views,
		Likes:       loc.Likes,
		Dislikes:    loc.Dislikes,
		Comments:    comments,
	}
}

// parseIndices reads "3,1,4". Order and duplicates are kept.
func parseIndices(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	if len(parts) > maxIndices {
		return nil, errors.New("too many indices")
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, errors.New("indices must be non-negative integers")
		}
		out = append(out, n)
	}
	return out, nil
}

func handleLocationCount(store Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := store.LocationCount(r.Context())
		if err != nil {
			logger.Error("counting locations", "error", err)
			writeRetryable(w, http.StatusServiceUnavailable, "location data unavailable")
			return
		}
		writeJSON(w, http.StatusOK, LocationCountResponse{Count: n})
	}
}

func handleListLocations(store Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			locs []campusguess.Location
			err  error
		)
		if raw := r.URL.Query().Get("indices"); raw != "" {
			indices, perr := parseIndices(raw)
			if perr != nil {
				writeError(w, http.StatusBadRequest, perr.Error())
				return
			}
			locs, err = store.LocationsByIndices(r.Context(), indices)
		} else {
			locs, err = store.AllLocations(r.Context())
		}
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "index out of range")
			return
		}
		if err != nil {
			logger.Error("listing locations", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		resp := make([]LocationResponse, len(locs))
		for i, loc := range locs {
			resp[i] = toLocationResponse(loc)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleLocationImage(store Store, images ImageURLer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if images == nil {
			writeError(w, http.StatusNotFound, "image storage not configured")
			return
		}
		loc, err := store.LocationByID(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "location not found")
			return
		}
		if err != nil {
			logger.Error("loading location", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if loc.ImageKey == "" {
			writeError(w, http.StatusNotFound, "location has no image")
			return
		}

		u, err := images.URL(r.Context(), loc.ImageKey)
		if err != nil {
			logger.Error("presigning image url", "location_id", loc.ID, "error", err)
			writeRetryable(w, http.StatusServiceUnavailable, "image unavailable")
			return
		}
		w.Header().Set("Cache-Control", "private, max-age=60")
		http.Redirect(w, r, u, http.StatusFound)
	}
}

// writeLocation answers a location mutation.
func writeLocation(w http.ResponseWriter, logger *slog.Logger, loc campusguess.Location, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}
	if err != nil {
		logger.Error("updating location", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toLocationResponse(loc))
}

func handleRecordView(store Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, err := store.RecordView(r.Context(), chi.URLParam(r, "id"))
		writeLocation(w, logger, loc, err)
	}
}

func handleRecordLike(store Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		liked := true
		if raw := r.URL.Query().Get("liked"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "liked must be a boolean")
				return
			}
			liked = v
		}
		loc, err := store.RecordLike(r.Context(), chi.URLParam(r, "id"), liked)
		writeLocation(w, logger, loc, err)
	}
}

func handleAddComment(store Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CommentRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Comment = strings.TrimSpace(req.Comment)
		if req.Comment == "" {
			writeError(w, http.StatusBadRequest, "comment is required")
			return
		}
		if utf8.RuneCountInString(req.Comment) > maxCommentLength {
			writeError(w, http.StatusBadRequest, "comment is too long")
			return
		}
		loc, err := store.AddComment(r.Context(), chi.URLParam(r, "id"), req.Comment)
		writeLocation(w, logger, loc, err)
	}
}
