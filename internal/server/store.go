package server

import (
	"context"
	"errors"
	"time"

	"github.com/guessucla/campusguess/internal/auth"
	"github.com/guessucla/campusguess/internal/campusguess"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

// User is a registered player.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserStats summarises a player's finished sessions.
type UserStats struct {
	GamesPlayed  int     `json:"gamesPlayed"`
	BestScore    int     `json:"bestScore"`
	AverageScore float64 `json:"averageScore"`
}

// GameRecord is a persisted finished session.
type GameRecord struct {
	SessionID   string    `json:"sessionId"`
	PlayerID    string    `json:"playerId,omitempty"`
	PlayerName  string    `json:"playerName"`
	LobbyToken  string    `json:"lobbyToken,omitempty"`
	Scores      []int     `json:"scores"`
	LocationIDs []string  `json:"locationIds"`
	Total       int       `json:"total"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// Store is everything the HTTP layer needs from persistence. DocStore is
// the only implementation.
type Store interface {
	campusguess.LocationProvider
	campusguess.ResultSink
	auth.UserLookup

	LocationByID(ctx context.Context, id string) (campusguess.Location, error)
	AllLocations(ctx context.Context) ([]campusguess.Location, error)
	UpsertLocation(ctx context.Context, loc campusguess.Location) (campusguess.Location, error)
	RecordView(ctx context.Context, id string) (campusguess.Location, error)
	RecordLike(ctx context.Context, id string, liked bool) (campusguess.Location, error)
	AddComment(ctx context.Context, id, comment string) (campusguess.Location, error)

	CreateUser(ctx context.Context, name, email, passwordHash string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	UserStats(ctx context.Context, userID string) (UserStats, error)
	CreateAuthSession(ctx context.Context, userID string, expiresAt time.Time) (string, error)
	AuthSessionValid(ctx context.Context, sessionID, userID string) (bool, error)
	DeleteAuthSession(ctx context.Context, sessionID string) error

	TopResults(ctx context.Context, limit int) ([]GameRecord, error)
	LobbyResults(ctx context.Context, lobbyToken string) ([]GameRecord, error)
	UserGames(ctx context.Context, userID string, limit int) ([]GameRecord, error)
}
