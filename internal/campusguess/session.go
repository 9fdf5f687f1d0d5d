package campusguess

import (
	"errors"
	"fmt"
)

// State is the phase of a session.
type State string

const (
	StateAwaitingGuess State = "awaiting_guess"
	StateRevealed      State = "revealed"
	StateFinished      State = "finished"
)

// Guess is a scored marker placement. It is immutable once recorded.
type Guess struct {
	Pixel         Point   `json:"pixel"`
	Coord         Coord   `json:"coord"`
	DistanceMiles float64 `json:"distanceMiles"`
}

// Round is one location of a session. Guess and Score are nil until the
// round is guessed and never change afterwards.
type Round struct {
	Index    int
	Location Location
	Guess    *Guess
	Score    *int
}

// Session sequences the rounds of one player. It is not safe for concurrent
// use; callers serialize access.
type Session struct {
	ID         string
	PlayerID   string
	LobbyToken string
	Seed       int64

	calibration Calibration
	curve       ScoreCurve

	rounds  []Round
	current int
	state   State
	marker  *Point
}

var errNoRounds = errors.New("session needs at least one location")

// NewSession starts a session in AwaitingGuess for round 0 over locations,
// in the order given.
func NewSession(id string, seed int64, locations []Location, cal Calibration, curve ScoreCurve) (*Session, error) {
	if len(locations) == 0 {
		return nil, errNoRounds
	}
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}

	rounds := make([]Round, len(locations))
	for i, loc := range locations {
		rounds[i] = Round{Index: i, Location: loc}
	}
	return &Session{
		ID:          id,
		Seed:        seed,
		calibration: cal,
		curve:       curve,
		rounds:      rounds,
		state:       StateAwaitingGuess,
	}, nil
}

func (s *Session) State() State     { return s.state }
func (s *Session) RoundIndex() int  { return s.current }
func (s *Session) TotalRounds() int { return len(s.rounds) }

// Current returns the round the pointer is on. After Finished it stays on
// the last round.
func (s *Session) Current() Round {
	return s.rounds[s.current]
}

// Rounds returns a copy of all rounds.
func (s *Session) Rounds() []Round {
	out := make([]Round, len(s.rounds))
	copy(out, s.rounds)
	return out
}

// Marker returns the pending marker, or nil if none is placed.
func (s *Session) Marker() *Point {
	if s.marker == nil {
		return nil
	}
	m := *s.marker
	return &m
}

// PlaceMarker sets or moves the pending marker. It reports false outside
// AwaitingGuess.
func (s *Session) PlaceMarker(p Point) bool {
	if s.state != StateAwaitingGuess {
		return false
	}
	s.marker = &p
	return true
}

// ClearMarker removes the pending marker, as when the pointer leaves the map.
func (s *Session) ClearMarker() {
	if s.state == StateAwaitingGuess {
		s.marker = nil
	}
}

// SubmitGuess scores the pending marker against the current round's target
// and moves to Revealed. Without a marker, or outside AwaitingGuess, it does
// nothing and reports false.
func (s *Session) SubmitGuess() (Round, bool) {
	if s.state != StateAwaitingGuess || s.marker == nil {
		return Round{}, false
	}

	r := &s.rounds[s.current]
	coord := s.calibration.ToLatLon(*s.marker)
	dist := DistanceMiles(coord, r.Location.Coord)
	score := s.curve.Score(dist)

	r.Guess = &Guess{Pixel: *s.marker, Coord: coord, DistanceMiles: dist}
	r.Score = &score
	s.state = StateRevealed
	return *r, true
}

// Advance acknowledges a reveal. On the last round the session finishes;
// otherwise the pointer moves to the next round with no marker. It reports
// false outside Revealed.
func (s *Session) Advance() bool {
	if s.state != StateRevealed {
		return false
	}
	if s.current == len(s.rounds)-1 {
		s.state = StateFinished
		return true
	}
	s.current++
	s.marker = nil
	s.state = StateAwaitingGuess
	return true
}

// Scores returns the scores recorded so far, in round order.
func (s *Session) Scores() []int {
	scores := make([]int, 0, len(s.rounds))
	for _, r := range s.rounds {
		if r.Score == nil {
			break
		}
		scores = append(scores, *r.Score)
	}
	return scores
}

// Total sums the recorded scores.
func (s *Session) Total() int {
	total := 0
	for _, v := range s.Scores() {
		total += v
	}
	return total
}

// LocationIDs returns the ids of the session's locations in round order.
func (s *Session) LocationIDs() []string {
	ids := make([]string, len(s.rounds))
	for i, r := range s.rounds {
		ids[i] = r.Location.ID
	}
	return ids
}
