package campusguess

import (
	"context"
	"fmt"
	"time"
)

// GameConfig tunes session setup.
type GameConfig struct {
	Rounds       int
	Calibration  Calibration
	Curve        ScoreCurve
	SetupTimeout time.Duration
}

// Game starts sessions against a location provider and hands finished ones
// to a result sink.
type Game struct {
	cfg       GameConfig
	locations LocationProvider
	results   ResultSink
	now       func() time.Time
}

func NewGame(cfg GameConfig, locations LocationProvider, results ResultSink) *Game {
	if cfg.Rounds <= 0 {
		cfg.Rounds = DefaultRounds
	}
	return &Game{
		cfg:       cfg,
		locations: locations,
		results:   results,
		now:       time.Now,
	}
}

// StartRequest identifies who is playing and in which lobby. An empty
// LobbyToken starts a solo session.
type StartRequest struct {
	SessionID  string
	PlayerID   string
	LobbyToken string
}

// Start selects the session's rounds and fetches their locations. The
// session only exists once both fetches have completed.
func (g *Game) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if g.cfg.SetupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.SetupTimeout)
		defer cancel()
	}

	count, err := g.locations.LocationCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: counting locations: %v", ErrDataUnavailable, err)
	}

	seed := SeedFor(req.LobbyToken, g.now())
	indices, err := SelectRounds(seed, g.cfg.Rounds, count)
	if err != nil {
		return nil, err
	}

	locs, err := g.locations.LocationsByIndices(ctx, indices)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching locations: %v", ErrDataUnavailable, err)
	}
	if len(locs) != len(indices) {
		return nil, fmt.Errorf("%w: got %d of %d locations", ErrDataUnavailable, len(locs), len(indices))
	}

	s, err := NewSession(req.SessionID, seed, locs, g.cfg.Calibration, g.cfg.Curve)
	if err != nil {
		return nil, err
	}
	s.PlayerID = req.PlayerID
	s.LobbyToken = req.LobbyToken
	return s, nil
}

// Advance moves s past its reveal. When that finishes the session, the
// result is submitted to the sink; the returned Result is nil otherwise.
// A sink failure leaves the session Finished and is returned so the caller
// can retry with Submit.
func (g *Game) Advance(ctx context.Context, s *Session) (*Result, bool, error) {
	if !s.Advance() {
		return nil, false, nil
	}
	if s.State() != StateFinished {
		return nil, true, nil
	}
	res := g.ResultOf(s)
	if err := g.Submit(ctx, res); err != nil {
		return &res, true, err
	}
	return &res, true, nil
}

// ResultOf builds the sink payload of a finished session.
func (g *Game) ResultOf(s *Session) Result {
	return Result{
		SessionID:   s.ID,
		PlayerID:    s.PlayerID,
		LobbyToken:  s.LobbyToken,
		Seed:        s.Seed,
		Scores:      s.Scores(),
		LocationIDs: s.LocationIDs(),
		Total:       s.Total(),
		FinishedAt:  g.now().UTC(),
	}
}

// Submit hands res to the result sink.
func (g *Game) Submit(ctx context.Context, res Result) error {
	if err := g.results.SubmitSessionResult(ctx, res); err != nil {
		return fmt.Errorf("submitting session result: %w", err)
	}
	return nil
}
