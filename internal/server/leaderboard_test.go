package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/guessucla/campusguess/internal/campusguess"
	"github.com/guessucla/campusguess/internal/metrics"
)

// memCache is a LeaderboardCache kept in a slice.
type memCache struct {
	recs    []GameRecord
	warm    bool
	readErr error
	warmed  int
}

func (c *memCache) Add(_ context.Context, rec GameRecord) error {
	c.recs = append(c.recs, rec)
	return nil
}

func (c *memCache) Top(_ context.Context, n int) ([]GameRecord, bool, error) {
	if c.readErr != nil {
		return nil, false, c.readErr
	}
	if !c.warm {
		return nil, false, nil
	}
	return c.recs[:min(n, len(c.recs))], true, nil
}

func (c *memCache) Warm(_ context.Context, recs []GameRecord) error {
	c.recs = append([]GameRecord(nil), recs...)
	c.warm = true
	c.warmed++
	return nil
}

func submitTotals(t *testing.T, store *DocStore, totals ...int) {
	t.Helper()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, total := range totals {
		err := store.SubmitSessionResult(context.Background(), campusguess.Result{
			SessionID:  "s" + string(rune('a'+i)),
			Scores:     []int{total},
			Total:      total,
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestLeaderboardWarmsOnMiss(t *testing.T) {
	store := newTestStore(t)
	submitTotals(t, store, 300, 900, 600)

	cache := &memCache{}
	m := metrics.NewGame()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}
	board := NewLeaderboard(store, cache, m, discardLogger())

	top, err := board.Top(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].Total != 900 || top[1].Total != 600 {
		t.Fatalf("unexpected top %+v", top)
	}
	if cache.warmed != 1 {
		t.Fatalf("expected one warm, got %d", cache.warmed)
	}

	if _, err := board.Top(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	if cache.warmed != 1 {
		t.Errorf("warm cache was rebuilt")
	}

	n, err := testutil.GatherAndCount(reg, metrics.MetricLeaderboardCache)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected hit and miss series, got %d", n)
	}
}

func TestLeaderboardFallsBackOnCacheError(t *testing.T) {
	store := newTestStore(t)
	submitTotals(t, store, 100, 200)

	board := NewLeaderboard(store, &memCache{readErr: errors.New("redis down")}, metrics.NewGame(), discardLogger())
	top, err := board.Top(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].Total != 200 {
		t.Fatalf("unexpected top %+v", top)
	}
}

func TestLeaderboardTiesEarlierFirst(t *testing.T) {
	store := newTestStore(t)
	submitTotals(t, store, 500, 500)

	board := NewLeaderboard(store, nil, metrics.NewGame(), discardLogger())
	top, err := board.Top(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].SessionID != "sa" {
		t.Fatalf("expected the earlier finish first, got %+v", top)
	}
}

func TestRankScoreOrdering(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	if rankScore(GameRecord{Total: 10, FinishedAt: late}) <= rankScore(GameRecord{Total: 9, FinishedAt: early}) {
		t.Error("higher total must rank higher")
	}
	if rankScore(GameRecord{Total: 10, FinishedAt: early}) <= rankScore(GameRecord{Total: 10, FinishedAt: late}) {
		t.Error("earlier finish must win a tie")
	}
}

func TestLeaderboardRecordFeedsCache(t *testing.T) {
	cache := &memCache{}
	board := NewLeaderboard(newTestStore(t), cache, metrics.NewGame(), discardLogger())
	board.Record(context.Background(), GameRecord{SessionID: "x", Total: 42})
	if len(cache.recs) != 1 || cache.recs[0].SessionID != "x" {
		t.Fatalf("unexpected cache contents %+v", cache.recs)
	}
}

func TestHandleLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	submitTotals(t, env.store, 100, 300, 200)

	w := env.do(t, http.MethodGet, "/api/leaderboard?limit=2", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var recs []GameRecord
	decode(t, w, &recs)
	if len(recs) != 2 || recs[0].Total != 300 {
		t.Fatalf("unexpected leaderboard %+v", recs)
	}

	if w := env.do(t, http.MethodGet, "/api/leaderboard?limit=zero", nil, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", w.Code)
	}
}

func TestHandleUserGames(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "Ana", "ana@example.com")
	ctx := context.Background()

	for i, total := range []int{100, 200} {
		err := env.store.SubmitSessionResult(ctx, campusguess.Result{
			SessionID:  []string{"old", "new"}[i],
			PlayerID:   reg.User.ID,
			Scores:     []int{total},
			Total:      total,
			FinishedAt: time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	w := env.do(t, http.MethodGet, "/api/users/"+reg.User.ID+"/games", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var recs []GameRecord
	decode(t, w, &recs)
	if len(recs) != 2 || recs[0].SessionID != "new" || recs[0].PlayerName != "Ana" {
		t.Fatalf("expected newest first by Ana, got %+v", recs)
	}
}
