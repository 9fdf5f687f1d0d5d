package server

import (
	"context"
	"log/slog"

	"github.com/guessucla/campusguess/internal/campusguess"
	"github.com/guessucla/campusguess/internal/landmark"
	"github.com/guessucla/campusguess/internal/metrics"
)

// Sessions ties the game to the live registry and everything that reacts to
// session progress: lobby subscribers, the leaderboard and metrics.
type Sessions struct {
	game      *campusguess.Game
	registry  *Registry
	broker    *Broker
	board     *Leaderboard
	landmarks *landmark.Index
	metrics   *metrics.Game
	logger    *slog.Logger
}

func NewSessions(game *campusguess.Game, registry *Registry, broker *Broker, board *Leaderboard, landmarks *landmark.Index, m *metrics.Game, logger *slog.Logger) *Sessions {
	return &Sessions{
		game:      game,
		registry:  registry,
		broker:    broker,
		board:     board,
		landmarks: landmarks,
		metrics:   m,
		logger:    logger,
	}
}

func playerName(id identity, ok bool) string {
	if ok && id.Name != "" {
		return id.Name
	}
	return guestName
}

// started announces a new session to its lobby.
func (s *Sessions) started(sess *campusguess.Session, name string) {
	s.metrics.SessionStarted(sess.LobbyToken != "")
	s.broker.Publish(sess.LobbyToken, LobbyEvent{
		Type:       EventPlayerStarted,
		SessionID:  sess.ID,
		PlayerName: name,
	})
	s.logger.Info("session started",
		"session_id", sess.ID,
		"lobby", sess.LobbyToken,
		"seed", sess.Seed,
	)
}

// finished runs once the sink has accepted res.
func (s *Sessions) finished(ctx context.Context, res campusguess.Result, name string) {
	s.metrics.SessionFinished()
	s.board.Record(ctx, GameRecord{
		SessionID:   res.SessionID,
		PlayerID:    res.PlayerID,
		PlayerName:  name,
		LobbyToken:  res.LobbyToken,
		Scores:      res.Scores,
		LocationIDs: res.LocationIDs,
		Total:       res.Total,
		FinishedAt:  res.FinishedAt,
	})
	s.broker.Publish(res.LobbyToken, LobbyEvent{
		Type:       EventPlayerFinished,
		SessionID:  res.SessionID,
		PlayerName: name,
		Total:      res.Total,
		Scores:     res.Scores,
	})
	s.logger.Info("session finished",
		"session_id", res.SessionID,
		"lobby", res.LobbyToken,
		"total", res.Total,
	)
}
