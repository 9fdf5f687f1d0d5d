package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/guessucla/campusguess/internal/campusguess"
)

type Config struct {
	HTTPAddr      string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath        string     `env:"DB_PATH" envDefault:"data/campusguess.db"`
	LogLevel      slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir        string     `env:"SPA_DIR" envDefault:"../web/dist"`
	PublicBaseURL string     `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	RedisURL      string     `env:"REDIS_URL"`

	JWTSecret         string        `env:"JWT_SECRET,required,notEmpty"`
	JWTPreviousSecret string        `env:"JWT_PREVIOUS_SECRET"`
	TokenTTL          time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	Game GameConfig

	S3 S3Config `envPrefix:"S3_"`

	ImageURLExpiry time.Duration `env:"IMAGE_URL_EXPIRY" envDefault:"15m"`

	TracingEnabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint      string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTLPInsecure      bool    `env:"OTLP_INSECURE" envDefault:"true"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
}

type GameConfig struct {
	RoundsPerSession   int           `env:"ROUNDS_PER_SESSION" envDefault:"5"`
	MaxDistanceMiles   float64       `env:"SCORE_MAX_DISTANCE_MILES" envDefault:"1.5"`
	ScoreExponent      float64       `env:"SCORE_EXPONENT" envDefault:"2.5"`
	AnchorALat         float64       `env:"MAP_ANCHOR_A_LAT" envDefault:"34.079898"`
	AnchorALon         float64       `env:"MAP_ANCHOR_A_LON" envDefault:"-118.460099"`
	AnchorBLat         float64       `env:"MAP_ANCHOR_B_LAT" envDefault:"34.061762"`
	AnchorBLon         float64       `env:"MAP_ANCHOR_B_LON" envDefault:"-118.432620"`
	SetupTimeout       time.Duration `env:"SETUP_TIMEOUT" envDefault:"10s"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"1h"`
}

// S3Config is optional; image storage is off while Bucket is empty.
type S3Config struct {
	Bucket          string `env:"BUCKET"`
	Endpoint        string `env:"ENDPOINT"`
	Region          string `env:"REGION" envDefault:"auto"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

func (s S3Config) Enabled() bool { return s.Bucket != "" }

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Game.RoundsPerSession < 1 {
		errs = append(errs, fmt.Errorf("ROUNDS_PER_SESSION must be at least 1, got %d", c.Game.RoundsPerSession))
	}
	if c.Game.MaxDistanceMiles <= 0 {
		errs = append(errs, fmt.Errorf("SCORE_MAX_DISTANCE_MILES must be positive, got %v", c.Game.MaxDistanceMiles))
	}
	if c.Game.ScoreExponent <= 0 {
		errs = append(errs, fmt.Errorf("SCORE_EXPONENT must be positive, got %v", c.Game.ScoreExponent))
	}
	if err := c.Calibration().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("map anchors: %w", err))
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, fmt.Errorf("TRACING_SAMPLE_RATE must be between 0 and 1, got %v", c.TracingSampleRate))
	}
	if c.S3.Enabled() && (c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "") {
		errs = append(errs, errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when S3_BUCKET is set"))
	}
	return errors.Join(errs...)
}

func (c *Config) Calibration() campusguess.Calibration {
	return campusguess.Calibration{
		A: campusguess.Coord{Lat: c.Game.AnchorALat, Lon: c.Game.AnchorALon},
		B: campusguess.Coord{Lat: c.Game.AnchorBLat, Lon: c.Game.AnchorBLon},
	}
}

func (c *Config) ScoreCurve() campusguess.ScoreCurve {
	return campusguess.ScoreCurve{
		MaxDistance: c.Game.MaxDistanceMiles,
		Exponent:    c.Game.ScoreExponent,
	}
}

func (c *Config) GameConfig() campusguess.GameConfig {
	return campusguess.GameConfig{
		Rounds:       c.Game.RoundsPerSession,
		Calibration:  c.Calibration(),
		Curve:        c.ScoreCurve(),
		SetupTimeout: c.Game.SetupTimeout,
	}
}
