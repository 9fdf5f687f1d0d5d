// Package campusguess holds the game core: map calibration, distance scoring,
// seeded round selection and the per-player session state machine.
// It has no dependencies outside the standard library.
package campusguess

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidSelection is returned when a session asks for more distinct
	// rounds than the location pool holds, or the pool is empty.
	ErrInvalidSelection = errors.New("invalid round selection")

	// ErrDataUnavailable is returned when the location provider fails or
	// returns fewer records than requested.
	ErrDataUnavailable = errors.New("location data unavailable")
)

// Location is a catalogued campus spot. The core only reads Coord and
// ImageKey; the counters belong to the store.
type Location struct {
	ID       string
	Name     string
	Address  string
	Coord    Coord
	ImageKey string
	Views    int
	Likes    int
	Dislikes int
	Comments []string
}

// Result is a finished session as handed to the results sink.
type Result struct {
	SessionID   string
	PlayerID    string
	LobbyToken  string
	Seed        int64
	Scores      []int
	LocationIDs []string
	Total       int
	FinishedAt  time.Time
}

// LocationProvider supplies location records. LocationsByIndices must
// preserve the order of indices and return one record per index.
type LocationProvider interface {
	LocationCount(ctx context.Context) (int, error)
	LocationsByIndices(ctx context.Context, indices []int) ([]Location, error)
}

// ResultSink persists finished sessions.
type ResultSink interface {
	SubmitSessionResult(ctx context.Context, res Result) error
}
