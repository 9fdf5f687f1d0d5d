package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/guessucla/campusguess/internal/metrics"
)

const (
	// The cache keeps this many top results; larger requests go to the store.
	leaderboardCacheSize = 100
	defaultLeaderboardN  = 10
)

// LeaderboardCache keeps the top results in front of the store. Top reports
// ok=false while the cache is cold.
type LeaderboardCache interface {
	Add(ctx context.Context, rec GameRecord) error
	Top(ctx context.Context, n int) (recs []GameRecord, ok bool, err error)
	Warm(ctx context.Context, recs []GameRecord) error
}

// RedisLeaderboardCache stores ranks in a sorted set and records in a hash,
// both keyed by session ID.
type RedisLeaderboardCache struct {
	rdb     redis.Cmdable
	ranks   string
	records string
	warm    string
	size    int
}

func NewRedisLeaderboardCache(rdb redis.Cmdable, prefix string) *RedisLeaderboardCache {
	return &RedisLeaderboardCache{
		rdb:     rdb,
		ranks:   prefix + ":leaderboard",
		records: prefix + ":leaderboard:records",
		warm:    prefix + ":leaderboard:warm",
		size:    leaderboardCacheSize,
	}
}

// rankScore orders by total, then earlier finish first.
func rankScore(rec GameRecord) float64 {
	return float64(rec.Total) + (1 - float64(rec.FinishedAt.UnixMilli())/1e13)
}

func (c *RedisLeaderboardCache) Add(ctx context.Context, rec GameRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, c.ranks, redis.Z{Score: rankScore(rec), Member: rec.SessionID})
		p.HSet(ctx, c.records, rec.SessionID, string(raw))
		return nil
	})
	if err != nil {
		return fmt.Errorf("caching result: %w", err)
	}
	return c.trim(ctx)
}

func (c *RedisLeaderboardCache) trim(ctx context.Context) error {
	// Everything ranked below the top size entries.
	stale, err := c.rdb.ZRange(ctx, c.ranks, 0, int64(-c.size-1)).Result()
	if err != nil {
		return fmt.Errorf("reading stale ranks: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	members := make([]any, len(stale))
	for i, id := range stale {
		members[i] = id
	}
	_, err = c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, c.ranks, members...)
		p.HDel(ctx, c.records, stale...)
		return nil
	})
	return err
}

func (c *RedisLeaderboardCache) Top(ctx context.Context, n int) ([]GameRecord, bool, error) {
	if n > c.size {
		return nil, false, nil
	}
	warm, err := c.rdb.Exists(ctx, c.warm).Result()
	if err != nil {
		return nil, false, err
	}
	if warm == 0 {
		return nil, false, nil
	}

	ids, err := c.rdb.ZRevRange(ctx, c.ranks, 0, int64(n-1)).Result()
	if err != nil {
		return nil, false, err
	}
	recs := make([]GameRecord, 0, len(ids))
	if len(ids) == 0 {
		return recs, true, nil
	}

	vals, err := c.rdb.HMGet(ctx, c.records, ids...).Result()
	if err != nil {
		return nil, false, err
	}
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// A record went missing; let the caller rebuild.
			return nil, false, nil
		}
		var rec GameRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, false, err
		}
		recs = append(recs, rec)
	}
	return recs, true, nil
}

// Warm merges recs into the cache, trims it and marks it warm. Results
// never change once stored, so entries added after recs was read stay.
func (c *RedisLeaderboardCache) Warm(ctx context.Context, recs []GameRecord) error {
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, rec := range recs {
			raw, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			p.ZAdd(ctx, c.ranks, redis.Z{Score: rankScore(rec), Member: rec.SessionID})
			p.HSet(ctx, c.records, rec.SessionID, string(raw))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("warming leaderboard cache: %w", err)
	}
	if err := c.trim(ctx); err != nil {
		return fmt.Errorf("warming leaderboard cache: %w", err)
	}
	if err := c.rdb.Set(ctx, c.warm, "1", 0).Err(); err != nil {
		return fmt.Errorf("marking leaderboard cache warm: %w", err)
	}
	return nil
}

// Leaderboard answers top-N queries from the cache when one is configured
// and from the store otherwise.
type Leaderboard struct {
	store   Store
	cache   LeaderboardCache
	metrics *metrics.Game
	logger  *slog.Logger
}

// NewLeaderboard builds a leaderboard; cache may be nil.
func NewLeaderboard(store Store, cache LeaderboardCache, m *metrics.Game, logger *slog.Logger) *Leaderboard {
	return &Leaderboard{store: store, cache: cache, metrics: m, logger: logger}
}

// Record pushes a freshly stored result into the cache. Failures are logged;
// the store remains the source of truth.
func (l *Leaderboard) Record(ctx context.Context, rec GameRecord) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Add(ctx, rec); err != nil {
		l.logger.Warn("leaderboard cache add failed", "session_id", rec.SessionID, "error", err)
	}
}

func (l *Leaderboard) Top(ctx context.Context, n int) ([]GameRecord, error) {
	if n <= 0 {
		n = defaultLeaderboardN
	}
	if n > leaderboardCacheSize {
		n = leaderboardCacheSize
	}
	if l.cache == nil {
		return l.store.TopResults(ctx, n)
	}

	recs, ok, err := l.cache.Top(ctx, n)
	switch {
	case err != nil:
		l.metrics.LeaderboardCache("error")
		l.logger.Warn("leaderboard cache read failed", "error", err)
		return l.store.TopResults(ctx, n)
	case ok:
		l.metrics.LeaderboardCache("hit")
		return recs, nil
	}

	l.metrics.LeaderboardCache("miss")
	l.logger.Info("leaderboard cache miss", "n", n)

	all, err := l.store.TopResults(ctx, leaderboardCacheSize)
	if err != nil {
		return nil, err
	}
	if err := l.cache.Warm(ctx, all); err != nil {
		l.logger.Warn("leaderboard cache warm failed", "error", err)
	}
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}
