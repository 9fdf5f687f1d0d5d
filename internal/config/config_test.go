package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected :8080, got %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("expected INFO, got %v", cfg.LogLevel)
	}
	if cfg.Game.RoundsPerSession != 5 {
		t.Errorf("expected 5 rounds, got %d", cfg.Game.RoundsPerSession)
	}
	if cfg.Game.SetupTimeout != 10*time.Second {
		t.Errorf("expected 10s setup timeout, got %v", cfg.Game.SetupTimeout)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("expected 24h token ttl, got %v", cfg.TokenTTL)
	}
	if cfg.S3.Enabled() {
		t.Error("expected image storage off by default")
	}

	curve := cfg.ScoreCurve()
	if curve.MaxDistance != 1.5 || curve.Exponent != 2.5 {
		t.Errorf("expected 1.5/2.5 curve, got %+v", curve)
	}
	cal := cfg.Calibration()
	if cal.A.Lat != 34.079898 || cal.B.Lon != -118.432620 {
		t.Errorf("unexpected calibration %+v", cal)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for an empty JWT_SECRET")
	}
	if !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Errorf("error %q does not name JWT_SECRET", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("SCORE_MAX_DISTANCE_MILES", "1.8")
	t.Setenv("SCORE_EXPONENT", "2")
	t.Setenv("ROUNDS_PER_SESSION", "3")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("S3_BUCKET", "photos")
	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	gc := cfg.GameConfig()
	if gc.Rounds != 3 {
		t.Errorf("expected 3 rounds, got %d", gc.Rounds)
	}
	if gc.Curve.MaxDistance != 1.8 || gc.Curve.Exponent != 2 {
		t.Errorf("expected 1.8/2 curve, got %+v", gc.Curve)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("expected DEBUG, got %v", cfg.LogLevel)
	}
	if !cfg.S3.Enabled() || cfg.S3.Region != "auto" {
		t.Errorf("unexpected s3 config %+v", cfg.S3)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "degenerate anchors",
			env:     map[string]string{"MAP_ANCHOR_B_LAT": "34.079898"},
			wantErr: "map anchors",
		},
		{
			name:    "zero rounds",
			env:     map[string]string{"ROUNDS_PER_SESSION": "0"},
			wantErr: "ROUNDS_PER_SESSION",
		},
		{
			name:    "negative threshold",
			env:     map[string]string{"SCORE_MAX_DISTANCE_MILES": "-1"},
			wantErr: "SCORE_MAX_DISTANCE_MILES",
		},
		{
			name:    "sample rate out of range",
			env:     map[string]string{"TRACING_SAMPLE_RATE": "2"},
			wantErr: "TRACING_SAMPLE_RATE",
		},
		{
			name:    "bucket without credentials",
			env:     map[string]string{"S3_BUCKET": "photos"},
			wantErr: "S3_ACCESS_KEY_ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "s")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
