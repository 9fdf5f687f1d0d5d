package campusguess

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	locs     []Location
	countErr error
	fetchErr error
	short    bool
	block    bool
	asked    [][]int
}

func (p *fakeProvider) LocationCount(ctx context.Context) (int, error) {
	return len(p.locs), p.countErr
}

func (p *fakeProvider) LocationsByIndices(ctx context.Context, indices []int) ([]Location, error) {
	p.asked = append(p.asked, indices)
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	out := make([]Location, 0, len(indices))
	for _, i := range indices {
		out = append(out, p.locs[i])
	}
	if p.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

type fakeSink struct {
	results []Result
	err     error
}

func (s *fakeSink) SubmitSessionResult(_ context.Context, res Result) error {
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, res)
	return nil
}

func newTestGame(p *fakeProvider, sink *fakeSink) *Game {
	g := NewGame(GameConfig{
		Rounds:       5,
		Calibration:  uclaCalibration,
		Curve:        DefaultScoreCurve,
		SetupTimeout: time.Second,
	}, p, sink)
	g.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return g
}

func TestGameLobbySessionsMatch(t *testing.T) {
	p := &fakeProvider{locs: testLocations(20)}
	g := newTestGame(p, &fakeSink{})

	a, err := g.Start(context.Background(), StartRequest{SessionID: "a", LobbyToken: "lobby_1"})
	require.NoError(t, err)
	b, err := g.Start(context.Background(), StartRequest{SessionID: "b", LobbyToken: "lobby_1"})
	require.NoError(t, err)

	assert.Equal(t, a.LocationIDs(), b.LocationIDs())
	assert.Equal(t, HashLobbyToken("lobby_1"), a.Seed)
	assert.Equal(t, "lobby_1", a.LobbyToken)
	assert.Equal(t, p.asked[0], p.asked[1])
}

func TestGameSoloSeedIsClock(t *testing.T) {
	g := newTestGame(&fakeProvider{locs: testLocations(20)}, &fakeSink{})
	s, err := g.Start(context.Background(), StartRequest{SessionID: "solo", PlayerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), s.Seed)
	assert.Equal(t, "u1", s.PlayerID)
	assert.Equal(t, 5, s.TotalRounds())
}

func TestGameStartErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		p    *fakeProvider
		want error
	}{
		{name: "too few locations", p: &fakeProvider{locs: testLocations(3)}, want: ErrInvalidSelection},
		{name: "no locations", p: &fakeProvider{}, want: ErrInvalidSelection},
		{name: "count fails", p: &fakeProvider{locs: testLocations(9), countErr: boom}, want: ErrDataUnavailable},
		{name: "fetch fails", p: &fakeProvider{locs: testLocations(9), fetchErr: boom}, want: ErrDataUnavailable},
		{name: "short fetch", p: &fakeProvider{locs: testLocations(9), short: true}, want: ErrDataUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestGame(tt.p, &fakeSink{}).Start(context.Background(), StartRequest{SessionID: "x"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGameStartTimesOut(t *testing.T) {
	p := &fakeProvider{locs: testLocations(9), block: true}
	g := newTestGame(p, &fakeSink{})
	g.cfg.SetupTimeout = 20 * time.Millisecond

	_, err := g.Start(context.Background(), StartRequest{SessionID: "x"})
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestGameAdvanceSubmitsOnce(t *testing.T) {
	sink := &fakeSink{}
	g := newTestGame(&fakeProvider{locs: testLocations(20)}, sink)
	s, err := g.Start(context.Background(), StartRequest{SessionID: "s", PlayerID: "u", LobbyToken: "lobby_7"})
	require.NoError(t, err)

	for i := range 5 {
		s.PlaceMarker(Point{X: 0.5, Y: 0.5})
		_, ok := s.SubmitGuess()
		require.True(t, ok)

		res, advanced, err := g.Advance(context.Background(), s)
		require.NoError(t, err)
		require.True(t, advanced)
		if i < 4 {
			assert.Nil(t, res)
		} else {
			require.NotNil(t, res)
		}
	}

	_, advanced, err := g.Advance(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, advanced)

	require.Len(t, sink.results, 1)
	res := sink.results[0]
	assert.Len(t, res.Scores, 5)
	assert.Equal(t, s.LocationIDs(), res.LocationIDs)
	assert.Equal(t, s.Total(), res.Total)
	assert.Equal(t, "lobby_7", res.LobbyToken)
	assert.Equal(t, "u", res.PlayerID)
}

func TestGameAdvanceSinkFailure(t *testing.T) {
	sink := &fakeSink{err: errors.New("db down")}
	g := newTestGame(&fakeProvider{locs: testLocations(5)}, sink)
	s, err := g.Start(context.Background(), StartRequest{SessionID: "s"})
	require.NoError(t, err)

	for range 5 {
		s.PlaceMarker(Point{X: 0.5, Y: 0.5})
		s.SubmitGuess()
		res, _, err := g.Advance(context.Background(), s)
		if s.State() == StateFinished {
			require.Error(t, err)
			require.NotNil(t, res)

			sink.err = nil
			require.NoError(t, g.Submit(context.Background(), *res))
		}
	}
	assert.Len(t, sink.results, 1)
}
