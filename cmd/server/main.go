package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/guessucla/campusguess/internal/auth"
	"github.com/guessucla/campusguess/internal/campusguess"
	"github.com/guessucla/campusguess/internal/config"
	"github.com/guessucla/campusguess/internal/database"
	"github.com/guessucla/campusguess/internal/handler/health"
	"github.com/guessucla/campusguess/internal/imagestore"
	"github.com/guessucla/campusguess/internal/landmark"
	"github.com/guessucla/campusguess/internal/metrics"
	"github.com/guessucla/campusguess/internal/server"
	"github.com/guessucla/campusguess/internal/tracing"
)

const (
	serviceName       = "campusguess"
	evictionInterval  = time.Minute
	authPurgeInterval = time.Hour
	landmarkInterval  = 5 * time.Minute
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Tracing ---
	tp, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		Insecure:     cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	store, err := server.NewDocStore(ctx, db)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	if err := server.SeedDemo(ctx, logger, store); err != nil {
		return fmt.Errorf("seeding demo locations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	checks := map[string]health.Checker{
		"sqlite": health.CheckFunc(db.PingContext),
	}

	// --- Metrics ---
	gameMetrics := metrics.NewGame()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := gameMetrics.Register(reg); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// --- Redis (optional) ---
	var cache server.LeaderboardCache
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		cache = server.NewRedisLeaderboardCache(rdb, serviceName)
		checks["redis"] = health.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		logger.Info("connected to redis")
	}

	// --- Image storage (optional) ---
	var images server.ImageURLer
	if cfg.S3.Enabled() {
		is, err := imagestore.New(imagestore.Config{
			Bucket:          cfg.S3.Bucket,
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			URLExpiry:       cfg.ImageURLExpiry,
		})
		if err != nil {
			return fmt.Errorf("configuring image storage: %w", err)
		}
		images = is
		logger.Info("image storage enabled", "bucket", cfg.S3.Bucket)
	}

	// --- Landmarks ---
	landmarks, err := loadLandmarks(ctx, store)
	if err != nil {
		return fmt.Errorf("loading landmarks: %w", err)
	}
	logger.Info("landmark index built", "size", landmarks.Len())

	// --- Game ---
	game := campusguess.NewGame(cfg.GameConfig(), store, store)
	registry := server.NewRegistry(cfg.Game.SessionIdleTimeout, gameMetrics.SetLiveSessions)

	deps := server.Deps{
		Store:          store,
		Game:           game,
		Registry:       registry,
		Broker:         server.NewBroker(),
		Leaderboard:    server.NewLeaderboard(store, cache, gameMetrics, logger),
		Landmarks:      landmarks,
		Tokens:         auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTPreviousSecret, cfg.TokenTTL),
		Authenticator:  auth.NewPasswordAuthenticator(store),
		Metrics:        gameMetrics,
		Images:         images,
		Health:         health.NewHandler(logger, checks).Routes(),
		MetricsHandler: metrics.Handler(reg),
		PublicBaseURL:  cfg.PublicBaseURL,
		SPADir:         cfg.SPADir,
	}
	if tp.Enabled() {
		deps.TracingService = serviceName
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, deps)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return registry.Run(gctx, evictionInterval)
	})

	g.Go(func() error {
		return purgeAuthSessions(gctx, logger, store)
	})

	g.Go(func() error {
		return refreshLandmarks(gctx, logger, tp.Tracer(serviceName), store, landmarks)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

func loadLandmarks(ctx context.Context, store *server.DocStore) (*landmark.Index, error) {
	locs, err := store.AllLocations(ctx)
	if err != nil {
		return nil, err
	}
	ix := landmark.NewIndex()
	ix.Load(locs)
	return ix, nil
}

// purgeAuthSessions drops expired auth sessions every hour.
func purgeAuthSessions(ctx context.Context, logger *slog.Logger, store *server.DocStore) error {
	t := time.NewTicker(authPurgeInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := store.DeleteExpiredAuthSessions(ctx)
			if err != nil {
				logger.Warn("purging auth sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged auth sessions", "count", n)
			}
		}
	}
}

// refreshLandmarks rebuilds the index so locations added or moved by the
// importer show up without a restart.
func refreshLandmarks(ctx context.Context, logger *slog.Logger, tracer trace.Tracer, store *server.DocStore, ix *landmark.Index) error {
	t := time.NewTicker(landmarkInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			sctx, span := tracer.Start(ctx, "landmarks.refresh")
			locs, err := store.AllLocations(sctx)
			if err != nil {
				span.RecordError(err)
				span.End()
				logger.Warn("refreshing landmarks", "error", err)
				continue
			}
			if ix.Sync(locs) {
				logger.Info("landmark index rebuilt", "size", len(locs))
			}
			span.End()
		}
	}
}
